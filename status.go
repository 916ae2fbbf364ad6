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

package extsort

// Status is the lifecycle state of a Stream, independent of any single
// operation's result.
type Status int

const (
	// StatusOK means the stream is open and the last operation, if
	// any, succeeded.
	StatusOK Status = iota
	// StatusInvalid means the stream failed to open (bad header,
	// permission failure) and no further operation will succeed.
	StatusInvalid
	// StatusEOSNextCall means the cursor is positioned such that the
	// very next read will report EndOfStream.
	StatusEOSNextCall
	// StatusEndOfStream means the last read returned EndOfStream.
	StatusEndOfStream
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalid:
		return "invalid"
	case StatusEOSNextCall:
		return "eos-next-call"
	case StatusEndOfStream:
		return "end-of-stream"
	default:
		return "unknown"
	}
}

// Persistence governs what happens to a Stream's backing file when the
// stream is destroyed.
type Persistence int

const (
	// Delete removes the backing file at close.
	Delete Persistence = iota
	// Persistent retains the backing file at close.
	Persistent
	// ReadOnce removes the backing file once it has been read to
	// completion; close before reaching end of stream also deletes it.
	ReadOnce
)

func (p Persistence) String() string {
	switch p {
	case Delete:
		return "delete"
	case Persistent:
		return "persistent"
	case ReadOnce:
		return "read-once"
	default:
		return "unknown"
	}
}

// Mode is the open mode a Stream was constructed with. Modes are fixed
// at construction and never change for the lifetime of the stream.
type Mode int

const (
	// Read opens an existing stream for reading only.
	Read Mode = iota
	// Write opens (creating if necessary) a stream for both reading
	// and writing at an arbitrary cursor position.
	Write
	// Append opens a stream with its cursor at its current end. Reads
	// and Seek are not restricted; a write after a Seek lands at the
	// cursor, as in Write mode.
	Append
	// WriteOnly marks a stream for strictly sequential writes. The
	// stream does not enforce this: Seek, ReadItem and WriteItem behave
	// as in Write mode, and the zero-fill fast path for pages past the
	// logical end is shared with every writable mode.
	WriteOnly
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	case Append:
		return "append"
	case WriteOnly:
		return "write-only"
	default:
		return "unknown"
	}
}
