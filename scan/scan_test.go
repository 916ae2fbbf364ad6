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

package scan

import (
	"testing"

	"github.com/outofcore/extsort/mem"
	"github.com/outofcore/extsort/stream"
)

// minOfTwo is a scan object over two inputs and one output: it emits
// the smaller of the two current inputs and signals Done as soon as
// either side has no data on a given round.
type minOfTwo struct{}

func (minOfTwo) Initialize() error { return nil }

func (minOfTwo) Operate(ins [MaxArity]uint64, inFlags uint8, outs *[MaxArity]uint64, outFlags *uint8) (Result, error) {
	if inFlags != 0b11 {
		return Done, nil
	}
	a, b := ins[0], ins[1]
	if a < b {
		outs[0] = a
	} else {
		outs[0] = b
	}
	*outFlags = 1
	return Continue, nil
}

func fill(t *testing.T, mgr *mem.Manager, xs []uint64) *stream.Stream[uint64] {
	t.Helper()
	s, err := stream.NewTemp[uint64](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	for _, x := range xs {
		if err := s.WriteItem(x); err != nil {
			t.Fatalf("WriteItem: %s", err)
		}
	}
	if err := s.Seek(0); err != nil {
		t.Fatalf("Seek: %s", err)
	}
	return s
}

func drain(t *testing.T, s *stream.Stream[uint64]) []uint64 {
	t.Helper()
	if err := s.Seek(0); err != nil {
		t.Fatalf("Seek: %s", err)
	}
	var out []uint64
	for {
		v, err := s.ReadItem()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

// TestMinOfTwo is scenario E5.
func TestMinOfTwo(t *testing.T) {
	mgr := mem.New(1 << 20)
	a := fill(t, mgr, []uint64{1, 2, 3})
	b := fill(t, mgr, []uint64{10, 20})
	out, err := stream.NewTemp[uint64](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}

	err = Run[uint64](minOfTwo{}, []*stream.Stream[uint64]{a, b}, []*stream.Stream[uint64]{out})
	if err != nil {
		t.Fatalf("Run: %s", err)
	}

	got := drain(t, out)
	want := []uint64{1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestScanDeterminism is invariant/property 8: scanning the same input
// with a pure scan object yields the same output bytes every time.
func TestScanDeterminism(t *testing.T) {
	mgr := mem.New(1 << 20)
	a := fill(t, mgr, []uint64{5, 2, 9, 1, 7})
	b := fill(t, mgr, []uint64{4, 3, 8, 0, 6})

	run := func() []uint64 {
		a.Seek(0)
		b.Seek(0)
		out, err := stream.NewTemp[uint64](mgr, nil)
		if err != nil {
			t.Fatalf("NewTemp: %s", err)
		}
		if err := Run[uint64](minOfTwo{}, []*stream.Stream[uint64]{a, b}, []*stream.Stream[uint64]{out}); err != nil {
			t.Fatalf("Run: %s", err)
		}
		return drain(t, out)
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("nondeterministic lengths: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("nondeterministic output: %v vs %v", first, second)
		}
	}
}

func TestIllegalAlias(t *testing.T) {
	mgr := mem.New(1 << 20)
	a := fill(t, mgr, []uint64{1, 2, 3})
	// reopen the input's path as a second stream and pass it as the
	// output, which must be rejected.
	alias, err := stream.NewNamed[uint64](mgr, a.Name(), stream.Write)
	if err != nil {
		t.Fatalf("NewNamed: %s", err)
	}
	alias.Persist(stream.Persistent)

	err = Run[uint64](minOfTwo{}, []*stream.Stream[uint64]{a}, []*stream.Stream[uint64]{alias})
	if err == nil {
		t.Fatal("expected IllegalAlias error")
	}
}
