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

// Package scan implements the scan driver: it drives a user-supplied
// stateful transformation object across 0..4 input streams and 0..4
// output streams, one item per live input per call, the way the core's
// run-formation read loop and several of the external algorithms built
// on top of it are expected to.
package scan

import (
	"errors"

	"github.com/outofcore/extsort"
	"github.com/outofcore/extsort/stream"
)

// MaxArity is the largest number of inputs or outputs a single Object
// may be driven with; the external algorithms this core supports never
// exceed 4-in/3-out, so 4 is used as a round, generous ceiling on both
// sides.
const MaxArity = 4

// Result is what Object.Operate returns to indicate whether the driver
// should keep calling it after its inputs are all exhausted.
type Result int

const (
	// Continue means the object has more work to do even once inputs
	// run dry (the driver keeps calling it with all-absent input flags
	// until it returns Done).
	Continue Result = iota
	// Done means the object has nothing further to produce once every
	// input is absent on the same call.
	Done
)

// Object is a scan object: a value driven by Run across up to
// MaxArity input streams and MaxArity output streams of the same item
// type T. Operate is called once per input/output round with one item
// read from each still-live input (ins[i] is valid only if inFlags has
// bit i set) and must set outFlags bit i for each output it wrote to
// outs[i].
type Object[T any] interface {
	// Initialize is called once before the first Operate call.
	Initialize() error
	// Operate is called once per round. ins holds one item per input
	// slot (zero value if that input's flag bit is clear, meaning that
	// input has reached end of stream). The callee writes results into
	// outs and sets the corresponding bit in *outFlags for every
	// output it produced this round.
	Operate(ins [MaxArity]T, inFlags uint8, outs *[MaxArity]T, outFlags *uint8) (Result, error)
}

func kindOf(err error) extsort.Kind {
	var e *extsort.Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return extsort.OK
}

func names[T any](ss []*stream.Stream[T]) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Name()
	}
	return out
}

// Run drives obj across ins and outs until termination. Termination
// happens when, on some round, every input is absent (either the
// stream's slot is empty because all its items have been consumed, or
// there is no stream in that slot) and the previous call to Operate
// returned Done.
//
// Any I/O error from an input or output stream is propagated
// immediately and the driver stops without calling Operate again.
func Run[T any](obj Object[T], ins []*stream.Stream[T], outs []*stream.Stream[T]) error {
	if len(ins) > MaxArity {
		return extsort.Errorf(extsort.InvalidState, "scan: %d inputs exceeds max arity %d", len(ins), MaxArity)
	}
	if len(outs) > MaxArity {
		return extsort.Errorf(extsort.InvalidState, "scan: %d outputs exceeds max arity %d", len(outs), MaxArity)
	}
	if err := extsort.CheckAlias(names(ins), names(outs)); err != nil {
		return err
	}
	if err := obj.Initialize(); err != nil {
		return err
	}

	live := make([]bool, len(ins))
	for i := range live {
		live[i] = true
	}
	lastDone := false
	for {
		var inItems [MaxArity]T
		var inFlags uint8
		for i, s := range ins {
			if !live[i] {
				continue
			}
			item, err := s.ReadItem()
			if err != nil {
				if kindOf(err) == extsort.EndOfStream {
					live[i] = false
					continue
				}
				return err
			}
			inItems[i] = item
			inFlags |= 1 << uint(i)
		}
		if inFlags == 0 && lastDone {
			return nil
		}

		var outItems [MaxArity]T
		var outFlags uint8
		result, err := obj.Operate(inItems, inFlags, &outItems, &outFlags)
		if err != nil {
			return err
		}
		for i, s := range outs {
			if outFlags&(1<<uint(i)) != 0 {
				if err := s.WriteItem(outItems[i]); err != nil {
					return err
				}
			}
		}
		lastDone = result == Done
	}
}
