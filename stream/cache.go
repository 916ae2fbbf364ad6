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
	"github.com/outofcore/extsort"
	"github.com/outofcore/extsort/mem"
)

// cacheMode distinguishes the two ways a page can be fetched.
type cacheMode int

const (
	// cacheRead means the page must reflect on-disk contents.
	cacheRead cacheMode = iota
	// cacheWrite means the caller intends to overwrite the whole page;
	// if the page lies entirely beyond the stream's logical end, it is
	// allocated zeroed rather than read back. This fast path applies to
	// every writable mode, not only WriteOnly.
	cacheWrite
)

// page is one cached, block-aligned slice of the backing file.
type page struct {
	index  int64
	data   []byte
	dirty  bool
	pinned int // pin count; a page with pinned > 0 cannot be evicted
	clock  uint64
	resv   *mem.Reservation
}

// Cache is a per-stream fixed-size cache of block-aligned pages. At
// most maxPages pages are held in memory at once (accounted against
// mgr); pages beyond that are evicted LRU among the currently unpinned
// pages.
type Cache struct {
	mgr       *mem.Manager
	be        backend
	blockSize int64
	maxPages  int
	clock     uint64
	pages     map[int64]*page
}

// newCache builds a cache fronting be, with blockSize-sized pages,
// holding at most maxPages of them at once.
func newCache(mgr *mem.Manager, be backend, blockSize int64, maxPages int) *Cache {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Cache{
		mgr:       mgr,
		be:        be,
		blockSize: blockSize,
		maxPages:  maxPages,
		pages:     make(map[int64]*page),
	}
}

// get returns a pinned page for blockIndex, reading it from the
// backend on a cache miss (or, for cacheWrite beyond allowZeroFillBeyond,
// allocating a zeroed page instead of reading it back).
func (c *Cache) get(blockIndex int64, mode cacheMode, allowZeroFillBeyond int64) (*page, error) {
	if p, ok := c.pages[blockIndex]; ok {
		p.pinned++
		c.clock++
		p.clock = c.clock
		return p, nil
	}
	if err := c.evictUntilRoom(); err != nil {
		return nil, err
	}
	resv, err := c.mgr.Reserve(c.blockSize)
	if err != nil {
		return nil, err
	}
	data := make([]byte, c.blockSize)
	offset := blockIndex * c.blockSize
	if mode == cacheWrite && offset >= allowZeroFillBeyond {
		// fast path: the page lies entirely past the stream's current
		// logical body, so there is nothing on disk worth reading back.
	} else if err := c.be.readBlock(offset, data); err != nil {
		resv.Release()
		return nil, extsort.Wrap(extsort.IOError, err)
	}
	c.clock++
	p := &page{index: blockIndex, data: data, pinned: 1, clock: c.clock, resv: resv}
	c.pages[blockIndex] = p
	return p, nil
}

// release unpins a page. If dirty, the page is marked for write-back
// (flushed immediately, matching the simple write-through discipline
// the file/mmap backends both already provide via pwrite/memcpy).
func (c *Cache) release(p *page, dirty bool) error {
	if dirty {
		p.dirty = true
		if err := c.be.writeBlock(p.index*c.blockSize, p.data); err != nil {
			return extsort.Wrap(extsort.IOError, err)
		}
	}
	if p.pinned > 0 {
		p.pinned--
	}
	return nil
}

// evictUntilRoom evicts unpinned pages, least-recently-used first,
// until there is room for one more page. Recency is tracked by clock,
// a counter bumped on every touch in get(); the page with the lowest
// clock among the unpinned ones is the one least recently touched.
func (c *Cache) evictUntilRoom() error {
	for len(c.pages) >= c.maxPages {
		var victim *page
		for _, p := range c.pages {
			if p.pinned > 0 {
				continue
			}
			if victim == nil || p.clock < victim.clock {
				victim = p
			}
		}
		if victim == nil {
			// every page is pinned; the caller asked for more
			// concurrent pins than the cache was sized for.
			return extsort.Errorf(extsort.MemoryExceeded, "block cache exhausted: all %d pages pinned", c.maxPages)
		}
		if err := c.evict(victim); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) evict(p *page) error {
	if p.dirty {
		if err := c.be.writeBlock(p.index*c.blockSize, p.data); err != nil {
			return extsort.Wrap(extsort.IOError, err)
		}
	}
	delete(c.pages, p.index)
	p.resv.Release()
	return nil
}

// flush writes back every dirty page without evicting it.
func (c *Cache) flush() error {
	for _, p := range c.pages {
		if p.dirty {
			if err := c.be.writeBlock(p.index*c.blockSize, p.data); err != nil {
				return extsort.Wrap(extsort.IOError, err)
			}
			p.dirty = false
		}
	}
	return c.be.flush()
}

// close evicts every page (writing back dirty ones) and releases the
// backend.
func (c *Cache) close() error {
	for _, p := range c.pages {
		if err := c.evict(p); err != nil {
			return err
		}
	}
	return c.be.close()
}
