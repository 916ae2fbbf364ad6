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

// Package merge implements the k-way merge primitive: a loser tree
// (tournament tree) over N sorted input streams that emits their
// merged union, one item at a time, in O(log N) comparisons per item.
package merge

import (
	"errors"

	"golang.org/x/exp/slices"

	"github.com/outofcore/extsort"
	"github.com/outofcore/extsort/stream"
)

// source is anything the Merger can pull ordered items from. Both
// *stream.Stream[T] and *stream.Substream[T] satisfy it; Merge (and
// through it Sort) passes whole streams.
type source[T any] interface {
	ReadItem() (T, error)
}

// Merger drives a loser tree over a fixed set of sources, yielding
// their merge in sorted order. Ties are broken by input index, so
// Merger is stable whenever its inputs are.
type Merger[T any] struct {
	less func(a, b T) bool
	in   []source[T]

	// tree[1:k] holds, at each internal node, the index of the
	// input that lost the match played at that node; tree[0] is
	// unused so that parent(i) = i/2 holds for i >= 1. winner is
	// the index that currently holds the root.
	tree   []int
	cur    []T
	eof    []bool
	winner int
	k      int // padded size, power of two
	n      int // real input count

	started bool
	done    bool
}

// New builds a Merger over ins, ordering items with less. ins must be
// non-empty; a single input is accepted (the merger degenerates to a
// straight pass-through) since Sort's Phase 4 pass-through optimisation
// only avoids the merger entirely, not requires it to reject |R|=1.
func New[T any](ins []source[T], less func(a, b T) bool) (*Merger[T], error) {
	if len(ins) == 0 {
		return nil, extsort.Errorf(extsort.InvalidState, "merge: at least one input required")
	}
	n := len(ins)
	k := 1
	for k < n {
		k *= 2
	}
	m := &Merger[T]{
		less: less,
		in:   slices.Clone(ins),
		tree: make([]int, k),
		cur:  make([]T, k),
		eof:  make([]bool, k),
		k:    k,
		n:    n,
	}
	for i := n; i < k; i++ {
		m.eof[i] = true
	}
	return m, nil
}

// wins reports whether candidate beats incumbent, i.e. candidate
// should be considered the current winner of their match. An
// exhausted (eof) leaf always loses. Equal keys favour the
// lower-indexed input, which is what makes the merge stable.
func (m *Merger[T]) wins(candidate, incumbent int) bool {
	if m.eof[candidate] {
		return false
	}
	if m.eof[incumbent] {
		return true
	}
	if m.less(m.cur[candidate], m.cur[incumbent]) {
		return true
	}
	if m.less(m.cur[incumbent], m.cur[candidate]) {
		return false
	}
	return candidate < incumbent
}

// fill reads the next item from input i into m.cur, marking it eof on
// exhaustion. Any non-EndOfStream error is returned to the caller.
func (m *Merger[T]) fill(i int) error {
	if i >= m.n {
		m.eof[i] = true
		return nil
	}
	v, err := m.in[i].ReadItem()
	if err != nil {
		var e *extsort.Error
		if errors.As(err, &e) && e.Kind == extsort.EndOfStream {
			m.eof[i] = true
			return nil
		}
		return err
	}
	m.cur[i] = v
	m.eof[i] = false
	return nil
}

// build plays the initial tournament, one leaf read per input,
// establishing tree and winner from scratch.
func (m *Merger[T]) build() error {
	for i := 0; i < m.k; i++ {
		if err := m.fill(i); err != nil {
			return err
		}
	}
	// winner[j] holds the surviving index at internal node j during
	// the bottom-up build; winner[k+i] is leaf i itself.
	winner := make([]int, 2*m.k)
	for i := 0; i < m.k; i++ {
		winner[m.k+i] = i
	}
	for j := m.k - 1; j >= 1; j-- {
		l, r := winner[2*j], winner[2*j+1]
		if m.wins(l, r) {
			winner[j] = l
			m.tree[j] = r
		} else {
			winner[j] = r
			m.tree[j] = l
		}
	}
	m.winner = winner[1]
	return nil
}

// replay walks from leaf i up to the root, replaying matches against
// the losers stored at each ancestor node after leaf i's value has
// changed. This is the only work needed per output item: every other
// leaf's standing result is still valid.
func (m *Merger[T]) replay(i int) {
	cand := i
	for j := (m.k + i) / 2; j >= 1; j /= 2 {
		loser := m.tree[j]
		if m.wins(loser, cand) {
			m.tree[j], cand = cand, loser
		}
	}
	m.winner = cand
}

// Next returns the next item in merge order. It returns an
// extsort.EndOfStream error once every input is exhausted.
func (m *Merger[T]) Next() (T, error) {
	var zero T
	if m.done {
		return zero, extsort.KindError(extsort.EndOfStream)
	}
	if !m.started {
		m.started = true
		if err := m.build(); err != nil {
			return zero, err
		}
	} else {
		if err := m.fill(m.winner); err != nil {
			return zero, err
		}
		m.replay(m.winner)
	}
	if m.eof[m.winner] {
		m.done = true
		return zero, extsort.KindError(extsort.EndOfStream)
	}
	return m.cur[m.winner], nil
}

func names[T any](ss []*stream.Stream[T]) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Name()
	}
	return out
}

// Merge drains ins in sorted order (per less) into out, using a single
// Merger internally. It is the convenience entry point Sort's Phase 3
// and Phase 4 build on; callers who want to interleave merge output
// with other work should drive a Merger's Next directly instead.
func Merge[T any](ins []*stream.Stream[T], out *stream.Stream[T], less func(a, b T) bool) error {
	if err := extsort.CheckAlias(names(ins), []string{out.Name()}); err != nil {
		return err
	}
	srcs := make([]source[T], len(ins))
	for i, s := range ins {
		srcs[i] = s
	}
	m, err := New(srcs, less)
	if err != nil {
		return err
	}
	for {
		v, err := m.Next()
		if err != nil {
			var e *extsort.Error
			if errors.As(err, &e) && e.Kind == extsort.EndOfStream {
				return nil
			}
			return err
		}
		if err := out.WriteItem(v); err != nil {
			return err
		}
	}
}
