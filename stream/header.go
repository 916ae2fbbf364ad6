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
	"encoding/binary"
	"io"

	"github.com/outofcore/extsort"
)

// Magic identifies the on-disk stream format. The value spells "TPST"
// in the layout the format's original C++ ancestor used, kept here for
// the same reason magic numbers are usually kept: only the bytes
// matter, not their mnemonic origin.
const Magic uint32 = 0x54505354

// FormatVersion is the only header version this package writes or
// accepts.
const FormatVersion uint32 = 2

// BackendType enumerates the implementation a stream's body is stored
// under. It is recorded in the header purely as a diagnostic; a reader
// does not need to match the writer's backend type, since both
// backends expose byte-identical file layouts.
type BackendType uint32

const (
	// BackendFile stores blocks via explicit pread/pwrite syscalls.
	BackendFile BackendType = iota
	// BackendMmap stores blocks via a read-write memory mapping.
	BackendMmap
)

// header is the fixed-width on-disk header. Field order and widths are
// part of the format; do not reorder or resize without bumping
// FormatVersion.
type header struct {
	Magic        uint32
	Version      uint32
	Type         uint32
	HeaderLength uint32
	ItemSize     uint64
	OSBlockSize  uint64
	BlockSize    uint64
	LogicalEOF   int64
}

// headerLength is the fixed size of the encoded header, in bytes. It is
// itself recorded in the header so that a future format revision can
// detect a header size mismatch before trusting any other field.
const headerLength = 4 + 4 + 4 + 4 + 8 + 8 + 8 + 8 // = 48

func (h *header) encode() []byte {
	buf := make([]byte, headerLength)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint32(buf[8:], h.Type)
	binary.LittleEndian.PutUint32(buf[12:], h.HeaderLength)
	binary.LittleEndian.PutUint64(buf[16:], h.ItemSize)
	binary.LittleEndian.PutUint64(buf[24:], h.OSBlockSize)
	binary.LittleEndian.PutUint64(buf[32:], h.BlockSize)
	binary.LittleEndian.PutUint64(buf[40:], uint64(h.LogicalEOF))
	return buf
}

func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerLength {
		return nil, io.ErrUnexpectedEOF
	}
	h := &header{
		Magic:        binary.LittleEndian.Uint32(buf[0:]),
		Version:      binary.LittleEndian.Uint32(buf[4:]),
		Type:         binary.LittleEndian.Uint32(buf[8:]),
		HeaderLength: binary.LittleEndian.Uint32(buf[12:]),
		ItemSize:     binary.LittleEndian.Uint64(buf[16:]),
		OSBlockSize:  binary.LittleEndian.Uint64(buf[24:]),
		BlockSize:    binary.LittleEndian.Uint64(buf[32:]),
		LogicalEOF:   int64(binary.LittleEndian.Uint64(buf[40:])),
	}
	return h, nil
}

// validate checks h against the expected item size and the host's OS
// block size, per the header-validation contract: a mismatch in magic,
// version, item size, or OS block size is rejected at open rather than
// silently tolerated, since it would otherwise type-pun the body bytes.
func (h *header) validate(wantItemSize, wantOSBlockSize uint64) error {
	if h.Magic != Magic {
		return extsort.Errorf(extsort.BadHeader, "bad magic %#x", h.Magic)
	}
	if h.Version != FormatVersion {
		return extsort.Errorf(extsort.BadHeader, "unsupported version %d", h.Version)
	}
	if h.HeaderLength != headerLength {
		return extsort.Errorf(extsort.BadHeader, "header length %d != %d", h.HeaderLength, headerLength)
	}
	if h.ItemSize != wantItemSize {
		return extsort.Errorf(extsort.BadHeader, "item size %d != %d", h.ItemSize, wantItemSize)
	}
	if h.OSBlockSize != wantOSBlockSize {
		return extsort.Errorf(extsort.BadHeader, "os block size %d != %d", h.OSBlockSize, wantOSBlockSize)
	}
	return nil
}

// dataStart returns the offset of the first item byte: headerLength
// rounded up to the next multiple of blockSize.
func dataStart(blockSize uint64) int64 {
	n := uint64(headerLength)
	rem := n % blockSize
	if rem == 0 {
		return int64(n)
	}
	return int64(n + (blockSize - rem))
}
