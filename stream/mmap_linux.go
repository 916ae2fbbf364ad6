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

//go:build linux

package stream

import (
	"math"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// mmapBackend reads and writes blocks through a read-write shared
// memory mapping of the backing file, remapping (after growing the
// file with Truncate) whenever a write reaches beyond the current
// mapping; reads beyond it are zero-filled without remapping. This is the read-write analogue of the read-only
// mapping ion/blockfmt uses for compressed chunk access; the mapping
// here must be writable since Stream bodies are mutated in place.
type mmapBackend struct {
	mu  sync.Mutex
	f   *os.File
	mem []byte // nil if nothing is mapped yet
}

func newMmapBackend(path string) (backend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	b := &mmapBackend{f: f}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() > 0 {
		if err := b.remap(info.Size()); err != nil {
			f.Close()
			return nil, err
		}
	}
	return b, nil
}

// remapLocked must be called with mu held.
func (b *mmapBackend) remapLocked(size int64) error {
	if b.mem != nil {
		if err := unix.Munmap(b.mem); err != nil {
			return err
		}
		b.mem = nil
	}
	if size == 0 {
		return nil
	}
	if size > math.MaxInt {
		return errMappingTooLarge
	}
	mem, err := unix.Mmap(int(b.f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	b.mem = mem
	return nil
}

func (b *mmapBackend) remap(size int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remapLocked(size)
}

// ensureLocked grows the file and mapping, if necessary, so that
// [0, end) is addressable. Must be called with mu held.
func (b *mmapBackend) ensureLocked(end int64) error {
	if int64(len(b.mem)) >= end {
		return nil
	}
	if err := b.f.Truncate(end); err != nil {
		return err
	}
	return b.remapLocked(end)
}

func (b *mmapBackend) readBlock(offset int64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := offset + int64(len(buf))
	if end > int64(len(b.mem)) {
		// beyond EOF: zero-fill without growing the mapping for a read
		avail := int64(len(b.mem)) - offset
		if avail < 0 {
			avail = 0
		}
		if avail > 0 {
			copy(buf, b.mem[offset:offset+avail])
		}
		for i := avail; i < int64(len(buf)); i++ {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, b.mem[offset:end])
	return nil
}

func (b *mmapBackend) writeBlock(offset int64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := offset + int64(len(buf))
	if err := b.ensureLocked(end); err != nil {
		return err
	}
	copy(b.mem[offset:end], buf)
	return nil
}

func (b *mmapBackend) flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mem == nil {
		return nil
	}
	return unix.Msync(b.mem, unix.MS_SYNC)
}

func (b *mmapBackend) truncateFile(n int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.f.Truncate(n); err != nil {
		return err
	}
	return b.remapLocked(n)
}

func (b *mmapBackend) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mem != nil {
		unix.Munmap(b.mem)
		b.mem = nil
	}
	return b.f.Close()
}
