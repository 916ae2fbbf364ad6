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
	"testing"

	"github.com/outofcore/extsort/mem"
)

// memBackend is a trivial in-memory backend, just large enough for
// evictUntilRoom's LRU selection to be exercised without a real file.
type memBackend struct {
	blockSize int64
	blocks    map[int64][]byte
}

func newMemBackend(blockSize int64) *memBackend {
	return &memBackend{blockSize: blockSize, blocks: make(map[int64][]byte)}
}

func (b *memBackend) readBlock(offset int64, buf []byte) error {
	if data, ok := b.blocks[offset]; ok {
		copy(buf, data)
	}
	return nil
}

func (b *memBackend) writeBlock(offset int64, buf []byte) error {
	data := make([]byte, len(buf))
	copy(data, buf)
	b.blocks[offset] = data
	return nil
}

func (b *memBackend) flush() error             { return nil }
func (b *memBackend) truncateFile(n int64) error { return nil }
func (b *memBackend) close() error             { return nil }

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	const blockSize = 64
	mgr := mem.New(1 << 20)
	be := newMemBackend(blockSize)
	c := newCache(mgr, be, blockSize, 3)

	get := func(i int64) *page {
		p, err := c.get(i, cacheWrite, 0)
		if err != nil {
			t.Fatalf("get(%d): %s", i, err)
		}
		return p
	}

	// fill the cache: blocks 0, 1, 2, touching them in that order and
	// releasing immediately so none stay pinned.
	for _, i := range []int64{0, 1, 2} {
		p := get(i)
		if err := c.release(p, false); err != nil {
			t.Fatalf("release(%d): %s", i, err)
		}
	}

	// touch block 0 again, making 1 the least recently used.
	p0 := get(0)
	if err := c.release(p0, false); err != nil {
		t.Fatalf("release(0): %s", err)
	}

	// fetching a fourth block must evict the LRU page: block 1.
	p3 := get(3)
	defer c.release(p3, false)

	if _, ok := c.pages[1]; ok {
		t.Fatal("block 1 should have been evicted as least recently used")
	}
	if _, ok := c.pages[0]; !ok {
		t.Fatal("block 0 should still be cached (touched more recently than 1)")
	}
	if _, ok := c.pages[2]; !ok {
		t.Fatal("block 2 should still be cached")
	}
	if _, ok := c.pages[3]; !ok {
		t.Fatal("block 3 should have been loaded")
	}
}

func TestCacheEvictionSkipsPinnedPages(t *testing.T) {
	const blockSize = 64
	mgr := mem.New(1 << 20)
	be := newMemBackend(blockSize)
	c := newCache(mgr, be, blockSize, 2)

	// block 0 stays pinned throughout.
	p0, err := c.get(0, cacheWrite, 0)
	if err != nil {
		t.Fatalf("get(0): %s", err)
	}

	p1, err := c.get(1, cacheWrite, 0)
	if err != nil {
		t.Fatalf("get(1): %s", err)
	}
	if err := c.release(p1, false); err != nil {
		t.Fatalf("release(1): %s", err)
	}

	// a third block must evict 1, the only unpinned page, even though
	// it is more recently touched than 0.
	p2, err := c.get(2, cacheWrite, 0)
	if err != nil {
		t.Fatalf("get(2): %s", err)
	}
	defer c.release(p2, false)

	if _, ok := c.pages[1]; ok {
		t.Fatal("block 1 should have been evicted: it was the only unpinned page")
	}
	if _, ok := c.pages[0]; !ok {
		t.Fatal("pinned block 0 must not be evicted")
	}
	c.release(p0, false)
}
