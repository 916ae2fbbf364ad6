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

package stream

import "github.com/outofcore/extsort"

// Substream is a read-only range view [lo, hi] (inclusive item
// indices) over a parent Stream. It has its own cursor, shares the
// parent's file and block cache, cannot read outside [lo, hi], and its
// destruction never affects the parent's file: closing a Substream is
// always Delete-equivalent in the sense that it owns nothing to
// persist. There is deliberately no Persist method here -- a Substream
// cannot be given ReadOnce semantics, since what "fully consumed" would
// mean for a bounded view sharing a live parent cursor is unspecified.
type Substream[T any] struct {
	parent *Stream[T]
	lo, hi int64 // inclusive parent item indices
	cursor int64 // item index into the parent's space
	status Status
	closed bool
}

// NewSubstream returns a read-only view of the parent bounded to
// [lo, hi] inclusive. mode must be Read; any other mode is rejected,
// since a Substream never supports writes.
func (s *Stream[T]) NewSubstream(mode Mode, lo, hi int64) (*Substream[T], error) {
	if mode != Read {
		return nil, extsort.Errorf(extsort.ReadOnly, "substreams are read-only")
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if lo < 0 || hi < lo || hi >= s.logicalEOF {
		return nil, extsort.Errorf(extsort.OutOfBounds,
			"substream [%d,%d] invalid for parent of length %d", lo, hi, s.logicalEOF)
	}
	return &Substream[T]{parent: s, lo: lo, hi: hi, cursor: lo}, nil
}

// Len returns the number of items in the view.
func (v *Substream[T]) Len() int64 { return v.hi - v.lo + 1 }

// Tell returns the cursor position relative to the start of the view.
func (v *Substream[T]) Tell() int64 { return v.cursor - v.lo }

// IsValid reports whether the view is still usable.
func (v *Substream[T]) IsValid() bool { return !v.closed && v.parent.IsValid() }

// Status returns the view's current lifecycle status.
func (v *Substream[T]) Status() Status { return v.status }

func (v *Substream[T]) checkOpen() error {
	if v.closed {
		return extsort.KindError(extsort.InvalidState)
	}
	return v.parent.checkOpen()
}

// Seek moves the view's cursor to relative index i (0 <= i <= Len()).
func (v *Substream[T]) Seek(i int64) error {
	if err := v.checkOpen(); err != nil {
		return err
	}
	if i < 0 || i > v.Len() {
		return extsort.Errorf(extsort.OutOfBounds, "substream seek %d: length is %d", i, v.Len())
	}
	v.cursor = v.lo + i
	if i == v.Len() {
		v.status = StatusEOSNextCall
	} else {
		v.status = StatusOK
	}
	return nil
}

// ReadItem returns the next item in the view and advances its cursor.
// At the end of the view it returns extsort.EndOfStream, regardless of
// whether the parent stream has more data beyond hi.
func (v *Substream[T]) ReadItem() (T, error) {
	var zero T
	if err := v.checkOpen(); err != nil {
		return zero, err
	}
	if v.cursor > v.hi {
		v.status = StatusEndOfStream
		return zero, extsort.KindError(extsort.EndOfStream)
	}
	blockIndex, off := v.parent.blockFor(v.cursor)
	page, err := v.parent.cache.get(blockIndex, cacheRead, 0)
	if err != nil {
		return zero, err
	}
	item, err := v.parent.decode(page.data[off : off+v.parent.itemSize])
	relErr := v.parent.cache.release(page, false)
	if err != nil {
		return zero, extsort.Wrap(extsort.IOError, err)
	}
	if relErr != nil {
		return zero, relErr
	}
	v.cursor++
	if v.cursor > v.hi {
		v.status = StatusEOSNextCall
	} else {
		v.status = StatusOK
	}
	return item, nil
}

// Close releases the view. It never touches the parent's persistence
// policy or backing file.
func (v *Substream[T]) Close() error {
	v.closed = true
	return nil
}
