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

// errMappingTooLarge is returned by the mmap backend when a file grows
// past what can be addressed by a single mapping on a 32-bit host.
var errMappingTooLarge = extsort.Errorf(extsort.IOError, "mapped file size exceeds max addressable int")

// backend is the capability set a block cache needs from whatever is
// holding the file open. There is deliberately no inheritance
// hierarchy here (per the design note on polymorphic stream backends):
// readBlock/writeBlock/flush/truncateFile is the entire surface, and
// the block cache (Cache) is written once against it regardless of
// which concrete backend is plugged in.
type backend interface {
	// readBlock fills buf (len(buf) == blockSize) with the bytes of
	// the block at the given byte offset. Short reads past EOF are
	// zero-filled; that is not an error.
	readBlock(offset int64, buf []byte) error
	// writeBlock writes buf to the given byte offset.
	writeBlock(offset int64, buf []byte) error
	// flush persists any buffered writes (e.g. msync for an mmap
	// backend; a no-op for unbuffered pwrite).
	flush() error
	// truncateFile resizes the backing file to exactly n bytes.
	truncateFile(n int64) error
	// close releases any OS resources (file descriptor, mapping).
	close() error
}

// newBackend opens the backend named by typ against the file at path,
// creating the file if it does not exist. typ chooses between a plain
// file backend and an mmap-backed one; both implement an identical byte-addressable
// contract, so the Stream and Cache layers above never branch on which
// one is in use.
func newBackend(typ BackendType, path string) (backend, error) {
	switch typ {
	case BackendMmap:
		return newMmapBackend(path)
	default:
		return newFileBackend(path)
	}
}
