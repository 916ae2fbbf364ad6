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
	"io"
	"os"
)

// fileBackend reads and writes blocks via explicit ReadAt/WriteAt
// syscalls, with no memory mapping involved. This is the backend used
// on any platform, and the only one used outside Linux.
type fileBackend struct {
	f *os.File
}

func openFileBackend(f *os.File) *fileBackend {
	return &fileBackend{f: f}
}

func newFileBackend(path string) (backend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return openFileBackend(f), nil
}

func (b *fileBackend) readBlock(offset int64, buf []byte) error {
	n, err := b.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return err
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

func (b *fileBackend) writeBlock(offset int64, buf []byte) error {
	_, err := b.f.WriteAt(buf, offset)
	return err
}

func (b *fileBackend) flush() error {
	return b.f.Sync()
}

func (b *fileBackend) truncateFile(n int64) error {
	return b.f.Truncate(n)
}

func (b *fileBackend) close() error {
	return b.f.Close()
}
