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

package merge

import (
	"sort"
	"testing"

	"github.com/outofcore/extsort/mem"
	"github.com/outofcore/extsort/stream"
)

func mkrun(t *testing.T, mgr *mem.Manager, xs []int64) *stream.Stream[int64] {
	t.Helper()
	s, err := stream.NewTemp[int64](mgr, nil)
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

func less(a, b int64) bool { return a < b }

// TestMergeSortedUnion is property 7: merging N sorted streams yields
// their sorted union.
func TestMergeSortedUnion(t *testing.T) {
	mgr := mem.New(1 << 20)
	runs := [][]int64{
		{1, 4, 9, 20},
		{2, 3, 3, 50},
		{},
		{0, 100},
		{5},
	}
	var ins []*stream.Stream[int64]
	var want []int64
	for _, r := range runs {
		ins = append(ins, mkrun(t, mgr, r))
		want = append(want, r...)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	out, err := stream.NewTemp[int64](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	if err := Merge(ins, out, less); err != nil {
		t.Fatalf("Merge: %s", err)
	}
	if out.Len() != int64(len(want)) {
		t.Fatalf("Len() = %d, want %d", out.Len(), len(want))
	}
	out.Seek(0)
	for i, w := range want {
		got, err := out.ReadItem()
		if err != nil {
			t.Fatalf("ReadItem(%d): %s", i, err)
		}
		if got != w {
			t.Fatalf("item %d: got %d, want %d", i, got, w)
		}
	}
}

// TestMergeStability confirms that equal keys from different inputs
// retain a deterministic relative order: lower input index first.
func TestMergeStability(t *testing.T) {
	mgr := mem.New(1 << 20)
	type kv struct{ Key, Tag int64 }
	keyLess := func(a, b kv) bool { return a.Key < b.Key }

	a, err := stream.NewTemp[kv](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	b, err := stream.NewTemp[kv](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	a.WriteItem(kv{1, 0})
	a.WriteItem(kv{1, 1})
	b.WriteItem(kv{1, 2})
	a.Seek(0)
	b.Seek(0)

	out, err := stream.NewTemp[kv](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	if err := Merge([]*stream.Stream[kv]{a, b}, out, keyLess); err != nil {
		t.Fatalf("Merge: %s", err)
	}
	out.Seek(0)
	wantTags := []int64{0, 1, 2}
	for i, w := range wantTags {
		got, err := out.ReadItem()
		if err != nil {
			t.Fatalf("ReadItem(%d): %s", i, err)
		}
		if got.Tag != w {
			t.Fatalf("item %d: tag = %d, want %d (stability broken)", i, got.Tag, w)
		}
	}
}

// TestMergeSingleInput exercises the degenerate N=1 case, where the
// loser tree has a single leaf and no internal nodes.
func TestMergeSingleInput(t *testing.T) {
	mgr := mem.New(1 << 20)
	a := mkrun(t, mgr, []int64{1, 2, 3})
	out, err := stream.NewTemp[int64](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	if err := Merge([]*stream.Stream[int64]{a}, out, less); err != nil {
		t.Fatalf("Merge: %s", err)
	}
	if out.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", out.Len())
	}
}

// TestIllegalAlias confirms Merge rejects a stream reopened under the
// same name as both an input and the output, the same ILLEGAL_ALIAS
// check scan.Run and sort.Sort both apply.
func TestIllegalAlias(t *testing.T) {
	mgr := mem.New(1 << 20)
	a := mkrun(t, mgr, []int64{1, 2, 3})
	alias, err := stream.NewNamed[int64](mgr, a.Name(), stream.Write)
	if err != nil {
		t.Fatalf("NewNamed: %s", err)
	}
	alias.Persist(stream.Persistent)

	err = Merge([]*stream.Stream[int64]{a}, alias, less)
	if err == nil {
		t.Fatal("expected IllegalAlias error")
	}
}

// TestMergeManyInputs exercises a non-power-of-two input count so the
// loser tree's padding leaves are exercised throughout.
func TestMergeManyInputs(t *testing.T) {
	mgr := mem.New(1 << 20)
	var ins []*stream.Stream[int64]
	var want []int64
	for i := int64(0); i < 7; i++ {
		xs := []int64{i, i + 10, i + 100}
		ins = append(ins, mkrun(t, mgr, xs))
		want = append(want, xs...)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	out, err := stream.NewTemp[int64](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	if err := Merge(ins, out, less); err != nil {
		t.Fatalf("Merge: %s", err)
	}
	out.Seek(0)
	for i, w := range want {
		got, err := out.ReadItem()
		if err != nil {
			t.Fatalf("ReadItem(%d): %s", i, err)
		}
		if got != w {
			t.Fatalf("item %d: got %d, want %d", i, got, w)
		}
	}
}
