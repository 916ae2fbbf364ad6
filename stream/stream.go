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
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/outofcore/extsort"
	"github.com/outofcore/extsort/mem"
)

// defaultCachePages bounds how many blocks a single Stream keeps
// resident at once. The base design pins at most one page per cursor;
// a small window above that absorbs the occasional read-ahead without
// materially growing the accounted footprint.
const defaultCachePages = 4

var nextStreamID uint64

// Stream is a persisted, item-granular sequential/random cursor over a
// file of fixed-size items of type T. See stream.go/header.go for the
// on-disk layout; see cache.go for the block cache every Stream reads
// and writes through.
type Stream[T any] struct {
	mgr    *mem.Manager
	id     uint64
	path   string
	mode   Mode
	status Status
	valid  bool
	closed bool

	persistence Persistence

	itemSize      int64
	itemsPerBlock int64
	osBlockSize   uint64
	blockSize     int64
	dataStart     int64
	backendType   BackendType

	logicalEOF int64 // item count
	cursor     int64 // item index
	dirtyHdr   bool

	cache *Cache

	encBuf bytes.Buffer
}

func itemSizeOf[T any]() (int64, error) {
	var zero T
	n := binary.Size(zero)
	if n < 0 {
		return 0, fmt.Errorf("type %T is not a fixed-size, binary-encodable item", zero)
	}
	return int64(n), nil
}

func computeBlockSize(itemSize int64, osBlockSize uint64) int64 {
	target := int64(osBlockSize) * 16
	for target < itemSize {
		target += int64(osBlockSize)
	}
	return target
}

// NewTemp creates a new Stream over a uniquely-named temporary file,
// opened for Write, with persistence Delete so that the backing file
// disappears when the stream is closed.
func NewTemp[T any](mgr *mem.Manager, paths TempPathProvider) (*Stream[T], error) {
	if paths == nil {
		paths = DefaultTempPaths
	}
	path, err := paths.MakeTempPath()
	if err != nil {
		return nil, extsort.Wrap(extsort.IOError, err)
	}
	s, err := NewNamed[T](mgr, path, Write)
	if err != nil {
		return nil, err
	}
	s.persistence = Delete
	return s, nil
}

// NewNamed opens or creates the stream at path in the given mode. For
// Read, persistence defaults to Persistent (the caller is reading
// someone else's data, so destroying the stream must not destroy the
// file); for every other mode it also defaults to Persistent, and
// NewTemp is the entry point that asks for Delete semantics instead.
func NewNamed[T any](mgr *mem.Manager, path string, mode Mode) (*Stream[T], error) {
	return newNamed[T](mgr, path, mode, BackendFile)
}

// NewNamedMmap is identical to NewNamed but backs the stream with a
// read-write memory mapping instead of explicit pread/pwrite calls;
// see mmap_linux.go/mmap_other.go for the backend itself. The Stream
// contract is identical between the two; only the I/O path differs.
func NewNamedMmap[T any](mgr *mem.Manager, path string, mode Mode) (*Stream[T], error) {
	return newNamed[T](mgr, path, mode, BackendMmap)
}

func newNamed[T any](mgr *mem.Manager, path string, mode Mode, backendType BackendType) (*Stream[T], error) {
	if mgr == nil {
		return nil, extsort.Errorf(extsort.InvalidState, "stream %q: nil memory manager", path)
	}
	itemSize, err := itemSizeOf[T]()
	if err != nil {
		return nil, extsort.Wrap(extsort.IOError, err)
	}
	osBlockSize := osBlockSize()

	info, statErr := os.Stat(path)
	exists := statErr == nil
	if mode == Read && !exists {
		return nil, extsort.Errorf(extsort.Permission, "stream %q: no such file", path)
	}

	be, err := newBackend(backendType, path)
	if err != nil {
		return nil, extsort.Wrap(extsort.Permission, err)
	}

	s := &Stream[T]{
		mgr:         mgr,
		id:          atomic.AddUint64(&nextStreamID, 1),
		path:        path,
		mode:        mode,
		status:      StatusOK,
		valid:       true,
		persistence: Persistent,
		itemSize:    itemSize,
		osBlockSize: osBlockSize,
		backendType: backendType,
	}

	haveBody := exists && info.Size() >= headerLength
	if haveBody {
		if err := s.readHeader(be); err != nil {
			be.close()
			s.valid = false
			s.status = StatusInvalid
			return nil, err
		}
	} else {
		s.blockSize = computeBlockSize(itemSize, osBlockSize)
		s.itemsPerBlock = s.blockSize / itemSize
		s.dataStart = dataStart(uint64(s.blockSize))
		s.logicalEOF = 0
		s.dirtyHdr = true
		if err := s.writeHeader(be); err != nil {
			be.close()
			return nil, err
		}
	}

	s.cache = newCache(mgr, be, s.blockSize, defaultCachePages)
	if mode == Append {
		s.cursor = s.logicalEOF
	}
	return s, nil
}

func (s *Stream[T]) readHeader(be backend) error {
	buf := make([]byte, headerLength)
	if err := be.readBlock(0, buf); err != nil {
		return extsort.Wrap(extsort.IOError, err)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return extsort.Wrap(extsort.BadHeader, err)
	}
	if err := h.validate(uint64(s.itemSize), s.osBlockSize); err != nil {
		return err
	}
	s.blockSize = int64(h.BlockSize)
	s.itemsPerBlock = s.blockSize / s.itemSize
	s.dataStart = dataStart(h.BlockSize)
	s.logicalEOF = h.LogicalEOF
	return nil
}

func (s *Stream[T]) writeHeader(be backend) error {
	h := &header{
		Magic:        Magic,
		Version:      FormatVersion,
		Type:         uint32(s.backendType),
		HeaderLength: headerLength,
		ItemSize:     uint64(s.itemSize),
		OSBlockSize:  s.osBlockSize,
		BlockSize:    uint64(s.blockSize),
		LogicalEOF:   s.logicalEOF,
	}
	buf := make([]byte, s.blockSize)
	copy(buf, h.encode())
	if err := be.writeBlock(0, buf); err != nil {
		return extsort.Wrap(extsort.IOError, err)
	}
	s.dirtyHdr = false
	return nil
}

func (s *Stream[T]) flushHeader() error {
	if !s.dirtyHdr || s.mode == Read {
		return nil
	}
	return s.writeHeader(s.cache.be)
}

// ItemSize returns the fixed per-item size in bytes, as recorded in
// the header.
func (s *Stream[T]) ItemSize() int64 { return s.itemSize }

// Name returns the stream's backing path.
func (s *Stream[T]) Name() string { return s.path }

// Mode returns the stream's open mode.
func (s *Stream[T]) Mode() Mode { return s.mode }

// IsValid reports whether the stream is usable.
func (s *Stream[T]) IsValid() bool { return s.valid && !s.closed }

// Status returns the stream's current lifecycle status.
func (s *Stream[T]) Status() Status { return s.status }

// Persist sets the persistence policy applied when the stream is
// closed.
func (s *Stream[T]) Persist(p Persistence) { s.persistence = p }

// PersistPolicy returns the current persistence policy.
func (s *Stream[T]) PersistPolicy() Persistence { return s.persistence }

// Len returns the stream's logical item count.
func (s *Stream[T]) Len() int64 { return s.logicalEOF }

// Tell returns the cursor's current item index.
func (s *Stream[T]) Tell() int64 { return s.cursor }

func (s *Stream[T]) checkOpen() error {
	if s.closed {
		return extsort.KindError(extsort.InvalidState)
	}
	if !s.valid {
		return extsort.KindError(extsort.BadHeader)
	}
	return nil
}

// Seek moves the cursor to item index i. i must satisfy
// 0 <= i <= Len(); seeking past the logical end is OutOfBounds.
func (s *Stream[T]) Seek(i int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if i < 0 || i > s.logicalEOF {
		return extsort.Errorf(extsort.OutOfBounds, "seek %d: length is %d", i, s.logicalEOF)
	}
	s.cursor = i
	if i == s.logicalEOF {
		s.status = StatusEOSNextCall
	} else {
		s.status = StatusOK
	}
	return nil
}

// Truncate sets the logical length to i. Extending a stream via
// Truncate (i > current Len()) is rejected: this package's Sort never
// relies on truncate-to-extend, and the on-disk body would otherwise
// need defined zero-fill semantics the source left unspecified.
func (s *Stream[T]) Truncate(i int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.mode == Read {
		return extsort.KindError(extsort.ReadOnly)
	}
	if i < 0 {
		return extsort.Errorf(extsort.OutOfBounds, "truncate %d: negative length", i)
	}
	if i > s.logicalEOF {
		return extsort.Errorf(extsort.OutOfBounds, "truncate %d: exceeds length %d (extension is not supported)", i, s.logicalEOF)
	}
	s.logicalEOF = i
	s.dirtyHdr = true
	if s.cursor > i {
		s.cursor = i
	}
	return nil
}

// blockFor returns the absolute (whole-file) block index and the
// byte offset within that block for the given item index.
func (s *Stream[T]) blockFor(item int64) (blockIndex, offset int64) {
	bodyBlock := item / s.itemsPerBlock
	blockIndex = bodyBlock + s.dataStart/s.blockSize
	offset = (item % s.itemsPerBlock) * s.itemSize
	return
}

func (s *Stream[T]) encode(x T) ([]byte, error) {
	s.encBuf.Reset()
	if err := binary.Write(&s.encBuf, binary.LittleEndian, x); err != nil {
		return nil, err
	}
	return s.encBuf.Bytes(), nil
}

func (s *Stream[T]) decode(buf []byte) (T, error) {
	var out T
	r := bytes.NewReader(buf)
	if err := binary.Read(r, binary.LittleEndian, &out); err != nil {
		return out, err
	}
	return out, nil
}

// WriteItem appends x at the cursor, overwriting whatever was there
// before if the cursor is not already at the logical end.
func (s *Stream[T]) WriteItem(x T) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.mode == Read {
		return extsort.KindError(extsort.ReadOnly)
	}
	buf, err := s.encode(x)
	if err != nil {
		return extsort.Wrap(extsort.IOError, err)
	}
	blockIndex, off := s.blockFor(s.cursor)
	// A block entirely beyond the stream's current logical end has no
	// real content worth reading back before we overwrite it; this is
	// always true for a cursor positioned at the end (the common case).
	// The check is the same in every writable mode.
	zeroFillBeyond := s.dataStart + s.logicalEOF*s.itemSize
	page, err := s.cache.get(blockIndex, cacheWrite, zeroFillBeyond)
	if err != nil {
		return err
	}
	copy(page.data[off:off+s.itemSize], buf)
	if err := s.cache.release(page, true); err != nil {
		return err
	}
	s.cursor++
	if s.cursor > s.logicalEOF {
		s.logicalEOF = s.cursor
		s.dirtyHdr = true
	}
	s.status = StatusOK
	return nil
}

// ReadItem returns the item at the cursor and advances it. At the
// logical end it returns an *extsort.Error of kind extsort.EndOfStream.
func (s *Stream[T]) ReadItem() (T, error) {
	var zero T
	if err := s.checkOpen(); err != nil {
		return zero, err
	}
	if s.cursor >= s.logicalEOF {
		s.status = StatusEndOfStream
		if s.persistence == ReadOnce {
			s.Close()
		}
		return zero, extsort.KindError(extsort.EndOfStream)
	}
	blockIndex, off := s.blockFor(s.cursor)
	page, err := s.cache.get(blockIndex, cacheRead, 0)
	if err != nil {
		return zero, err
	}
	item, err := s.decode(page.data[off : off+s.itemSize])
	relErr := s.cache.release(page, false)
	if err != nil {
		return zero, extsort.Wrap(extsort.IOError, err)
	}
	if relErr != nil {
		return zero, relErr
	}
	s.cursor++
	if s.cursor == s.logicalEOF {
		s.status = StatusEOSNextCall
	} else {
		s.status = StatusOK
	}
	return item, nil
}

// Close flushes the header (if dirty and writable), closes the block
// cache and backend, and applies the persistence policy: Delete and
// ReadOnce remove the backing file, Persistent keeps it.
func (s *Stream[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var ferr error
	if s.cache != nil {
		if hdrErr := s.flushHeader(); hdrErr != nil {
			ferr = hdrErr
		}
		if err := s.cache.close(); err != nil && ferr == nil {
			ferr = err
		}
	}
	if s.persistence != Persistent {
		os.Remove(s.path)
	}
	return ferr
}
