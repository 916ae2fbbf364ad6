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

// Package sort implements the sort orchestrator: external merge sort
// over a Stream, built out of run formation (heapsort, to bound
// pathological inputs the way a plain quicksort cannot), intermediate
// k-way merges, and a final merge into the caller's output stream.
package sort

import (
	"errors"

	"golang.org/x/exp/slices"

	"github.com/outofcore/extsort"
	"github.com/outofcore/extsort/heap"
	"github.com/outofcore/extsort/mem"
	"github.com/outofcore/extsort/merge"
	"github.com/outofcore/extsort/stream"
)

// Less is a strict total order over T; Sort uses it both to heapsort
// runs in Phase 2 and to drive the merger in Phases 3 and 4.
type Less[T any] func(a, b T) bool

// Sort consumes every item of in and writes them to out in order
// defined by less. n is the caller's estimate of the item count (used
// only to plan run length and fanout; an inaccurate estimate degrades
// performance, never correctness). mgr bounds the working set; Sort
// registers and releases every run buffer and merge input/output
// buffer against it as it goes.
//
// On success, out contains the sorted items and in is left fully
// consumed. On failure, every transient run stream Sort created is
// deleted and out is truncated back to empty where that is still
// possible (Phase 2/3 failures never touch out; only a Phase 4
// failure can leave partial output, and that case truncates to zero).
func Sort[T any](mgr *mem.Manager, in *stream.Stream[T], out *stream.Stream[T], n int64, less Less[T]) error {
	if err := extsort.CheckAlias([]string{in.Name()}, []string{out.Name()}); err != nil {
		return err
	}

	itemSize := in.ItemSize()
	params := Plan(mgr.Available(), itemSize, n)

	runs, err := formRuns(mgr, in, params, less)
	if err != nil {
		closeAll(runs)
		return err
	}

	for int64(len(runs)) > params.FinalFanout {
		batch := runs
		fanout := int(params.Fanout)
		if fanout < 2 {
			fanout = 2
		}
		if int64(len(batch)) > int64(fanout) {
			batch = runs[:fanout]
		}
		merged, err := mergeBatch(mgr, batch, less)
		if err != nil {
			closeAll(runs)
			return err
		}
		runs = append(slices.Clone(runs[len(batch):]), merged)
	}

	if len(runs) == 0 {
		return nil
	}

	if len(runs) == 1 {
		if err := adopt(runs[0], out); err != nil {
			closeAll(runs)
			return err
		}
		return nil
	}

	if err := merge.Merge(runs, out, less); err != nil {
		closeAll(runs)
		out.Truncate(0)
		return err
	}
	closeAll(runs)
	return nil
}

// formRuns implements Phase 2: read up to params.RunLength items at a
// time, heapsort them in memory, and spill each batch as a new
// temporary run stream. If the entire input fits in one run
// (n <= internalReportThreshold), the single resulting run is handed
// back directly and the caller's fast path is simply "there is one
// run" — Phases 3/4 degenerate naturally via the |R|==1 pass-through.
//
// A MEMORY_EXCEEDED reservation failure before any run has been
// written shrinks runLength and retries; once a run has already been
// spilled, the same error is fatal.
func formRuns[T any](mgr *mem.Manager, in *stream.Stream[T], params Parameters, less Less[T]) ([]*stream.Stream[T], error) {
	var runs []*stream.Stream[T]
	runLength := params.RunLength
	itemSize := in.ItemSize()
	buf := make([]T, 0, runLength)

	for {
		buf = buf[:0]
		var rsv *mem.Reservation
		for {
			var err error
			rsv, err = mgr.Reserve(int64(cap(buf)) * itemSize)
			if err == nil {
				break
			}
			// MEMORY_EXCEEDED while forming the very first run is
			// recoverable: shrink runLength and retry. Once a run has
			// already been spilled, the error is fatal.
			if len(runs) > 0 || !isMemoryExceeded(err) || runLength <= 1 {
				return runs, err
			}
			runLength /= 2
			if runLength < 1 {
				runLength = 1
			}
			buf = make([]T, 0, runLength)
		}
		for int64(len(buf)) < runLength {
			v, err := in.ReadItem()
			if err != nil {
				if isEOF(err) {
					break
				}
				rsv.Release()
				return runs, err
			}
			buf = append(buf, v)
		}
		n := len(buf)
		if n == 0 {
			rsv.Release()
			break
		}
		heapsort(buf, less)

		r, err := stream.NewTemp[T](mgr, nil)
		if err != nil {
			rsv.Release()
			return runs, err
		}
		r.Persist(stream.Delete)
		for _, v := range buf {
			if err := r.WriteItem(v); err != nil {
				rsv.Release()
				r.Close()
				return runs, err
			}
		}
		if err := r.Seek(0); err != nil {
			rsv.Release()
			r.Close()
			return runs, err
		}
		rsv.Release()
		runs = append(runs, r)
		if int64(n) < runLength {
			break
		}
	}
	return runs, nil
}

// heapsort orders buf ascending per less using the shared min-heap:
// heapify once, then repeatedly extract the minimum. This gives the
// O(n log n) worst case the design calls for in place of a plain
// quicksort, whose quadratic worst case an adversarial input stream
// could otherwise trigger. Equal items are ordered by their position
// in buf, so the sort is stable.
func heapsort[T any](buf []T, less Less[T]) {
	type entry struct {
		v T
		i int
	}
	eless := func(a, b entry) bool {
		if less(a.v, b.v) {
			return true
		}
		if less(b.v, a.v) {
			return false
		}
		return a.i < b.i
	}
	work := make([]entry, len(buf))
	for i, v := range buf {
		work[i] = entry{v: v, i: i}
	}
	heap.OrderSlice(work, eless)
	for i := range buf {
		buf[i] = heap.PopSlice(&work, eless).v
	}
}

func isEOF(err error) bool {
	var ke *extsort.Error
	return errors.As(err, &ke) && ke.Kind == extsort.EndOfStream
}

func isMemoryExceeded(err error) bool {
	var ke *extsort.Error
	return errors.As(err, &ke) && ke.Kind == extsort.MemoryExceeded
}

// mergeBatch merges a slice of run streams into a single new run,
// closing and deleting the inputs on success.
func mergeBatch[T any](mgr *mem.Manager, batch []*stream.Stream[T], less Less[T]) (*stream.Stream[T], error) {
	out, err := stream.NewTemp[T](mgr, nil)
	if err != nil {
		return nil, err
	}
	out.Persist(stream.Delete)
	if err := merge.Merge(batch, out, less); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Seek(0); err != nil {
		out.Close()
		return nil, err
	}
	closeAll(batch)
	return out, nil
}

// adopt implements the Phase 4 pass-through optimisation: when a
// single run remains, its contents are copied directly into the
// caller's output stream (a rename is not attempted because out may
// already be open under its own name and backend). The source run is
// deleted once fully copied.
func adopt[T any](run *stream.Stream[T], out *stream.Stream[T]) error {
	for {
		v, err := run.ReadItem()
		if err != nil {
			if isEOF(err) {
				break
			}
			out.Truncate(0)
			return err
		}
		if err := out.WriteItem(v); err != nil {
			out.Truncate(0)
			return err
		}
	}
	return run.Close()
}

func closeAll[T any](runs []*stream.Stream[T]) {
	for _, r := range runs {
		r.Close()
	}
}
