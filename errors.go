// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package extsort implements out-of-core (external-memory) computation:
// streaming blocks of fixed-size items between disk and a bounded
// in-memory working set, and an I/O-efficient external merge sort built
// on top of that abstraction.
package extsort

import "fmt"

// Kind enumerates the taxonomy of errors a Stream, Scan, Merge, or Sort
// call can return.
type Kind int

const (
	// OK is never actually carried by an *Error; it exists so Kind's
	// zero value prints sensibly.
	OK Kind = iota
	// EndOfStream is informational: a read past the last item.
	EndOfStream
	// IOError wraps a failure reported by the host filesystem.
	IOError
	// BadHeader means a stream's on-disk header failed validation
	// (magic, version, item size, or OS block size mismatch).
	BadHeader
	// OutOfBounds means a seek or substream bound fell outside
	// the stream's logical length.
	OutOfBounds
	// ReadOnly means a write was attempted on a read-only stream.
	ReadOnly
	// OutOfSpace means the backing filesystem rejected a write.
	OutOfSpace
	// MemoryExceeded means an allocation would exceed the declared
	// Memory Manager limit.
	MemoryExceeded
	// IllegalAlias means the same backing file was used as both an
	// input and an output of a single scan, merge, or sort.
	IllegalAlias
	// InvalidState means an operation was attempted on a stream that
	// is closed or otherwise not usable.
	InvalidState
	// Permission means the stream could not be opened in the
	// requested mode.
	Permission
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case EndOfStream:
		return "end of stream"
	case IOError:
		return "io error"
	case BadHeader:
		return "bad header"
	case OutOfBounds:
		return "out of bounds"
	case ReadOnly:
		return "read only"
	case OutOfSpace:
		return "out of space"
	case MemoryExceeded:
		return "memory exceeded"
	case IllegalAlias:
		return "illegal alias"
	case InvalidState:
		return "invalid state"
	case Permission:
		return "permission denied"
	default:
		return "unknown error"
	}
}

// Error is the error type returned from every fallible operation in
// this module. Kind identifies where in the taxonomy (see §7 of the
// design) the failure falls; Msg and the wrapped cause add detail.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return e.Kind.String()
}

// Unwrap lets errors.Is/errors.As see through to the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, extsort.KindError(extsort.OutOfBounds)) works
// regardless of Msg/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindError builds a bare *Error carrying only a Kind, suitable for use
// with errors.Is as a sentinel.
func KindError(k Kind) *Error { return &Error{Kind: k} }

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping cause.
func Wrap(k Kind, cause error) *Error {
	return &Error{Kind: k, Cause: cause}
}
