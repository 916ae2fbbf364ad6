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

import (
	"errors"
	"os"
	"testing"

	"github.com/outofcore/extsort"
	"github.com/outofcore/extsort/mem"
)

func kindOf(err error) extsort.Kind {
	var e *extsort.Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return extsort.OK
}

// TestRoundTrip1000 is scenario E1: write 0..999 as uint64 to a fresh
// temp stream, close, and confirm the file is gone; reopening is not
// possible once deleted, so this asserts the write+read+delete path
// directly.
func TestRoundTrip1000(t *testing.T) {
	mgr := mem.New(1 << 20)
	s, err := NewTemp[uint64](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	path := s.Name()
	for i := uint64(0); i < 1000; i++ {
		if err := s.WriteItem(i); err != nil {
			t.Fatalf("WriteItem(%d): %s", i, err)
		}
	}
	if s.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", s.Len())
	}
	if err := s.Seek(0); err != nil {
		t.Fatalf("Seek: %s", err)
	}
	for i := uint64(0); i < 1000; i++ {
		got, err := s.ReadItem()
		if err != nil {
			t.Fatalf("ReadItem(%d): %s", i, err)
		}
		if got != i {
			t.Fatalf("item %d: got %d", i, got)
		}
	}
	if _, err := s.ReadItem(); kindOf(err) != extsort.EndOfStream {
		t.Fatalf("expected EndOfStream at end, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected temp file %s to be removed, stat err = %v", path, err)
	}
}

// TestSeekOutOfBounds is scenario E3.
func TestSeekOutOfBounds(t *testing.T) {
	mgr := mem.New(1 << 20)
	s, err := NewTemp[uint64](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	defer s.Close()
	for i := uint64(0); i < 1000; i++ {
		s.WriteItem(i)
	}
	err = s.Seek(1000001)
	if kindOf(err) != extsort.OutOfBounds {
		t.Fatalf("expected OutOfBounds, got %v", err)
	}
	if s.Len() != 1000 {
		t.Fatalf("Len() changed after failed seek: %d", s.Len())
	}
}

// TestBadHeaderItemSizeMismatch is scenario E4: opening a stream
// written with one item size as a stream of a different item size
// must fail validation.
func TestBadHeaderItemSizeMismatch(t *testing.T) {
	mgr := mem.New(1 << 20)
	s, err := NewTemp[[24]byte](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	s.Persist(Persistent)
	path := s.Name()
	s.WriteItem([24]byte{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}
	defer os.Remove(path)

	bad, err := NewNamed[uint32](mgr, path, Read)
	if err == nil {
		bad.Close()
		t.Fatal("expected BadHeader opening a 24-byte stream as uint32")
	}
	if kindOf(err) != extsort.BadHeader {
		t.Fatalf("expected BadHeader, got %v", err)
	}
}

func TestSubstreamContainment(t *testing.T) {
	mgr := mem.New(1 << 20)
	s, err := NewTemp[uint64](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	defer s.Close()
	for i := uint64(0); i < 100; i++ {
		s.WriteItem(i)
	}
	sub, err := s.NewSubstream(Read, 10, 19)
	if err != nil {
		t.Fatalf("NewSubstream: %s", err)
	}
	if sub.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", sub.Len())
	}
	var got []uint64
	for {
		v, err := sub.ReadItem()
		if kindOf(err) == extsort.EndOfStream {
			break
		}
		if err != nil {
			t.Fatalf("ReadItem: %s", err)
		}
		if tl := sub.Tell(); tl < 0 || tl > sub.Len() {
			t.Fatalf("Tell() = %d out of [0, %d]", tl, sub.Len())
		}
		got = append(got, v)
	}
	want := []uint64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestReadOnceAutoCloses(t *testing.T) {
	mgr := mem.New(1 << 20)
	s, err := NewTemp[uint64](mgr, nil)
	if err != nil {
		t.Fatalf("NewTemp: %s", err)
	}
	s.Persist(Persistent)
	path := s.Name()
	s.WriteItem(1)
	s.WriteItem(2)
	s.Close()
	defer os.Remove(path)

	r, err := NewNamed[uint64](mgr, path, Read)
	if err != nil {
		t.Fatalf("NewNamed: %s", err)
	}
	r.Persist(ReadOnce)
	if _, err := r.ReadItem(); err != nil {
		t.Fatalf("ReadItem: %s", err)
	}
	if _, err := r.ReadItem(); err != nil {
		t.Fatalf("ReadItem: %s", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("file deleted before stream fully consumed")
	}
	if _, err := r.ReadItem(); kindOf(err) != extsort.EndOfStream {
		t.Fatalf("expected EndOfStream, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected ReadOnce stream to delete its file once consumed")
	}
}
