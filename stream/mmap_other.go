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

//go:build !linux

package stream

// newMmapBackend falls back to the plain file backend on platforms
// where this package does not wire up a typed mmap syscall path, the
// same way the teacher only builds ion/blockfmt's mmap reader under
// "//go:build linux" and lets every other platform use unbuffered
// reads instead. The Stream/Cache contract above is identical either
// way, so BackendMmap remains a valid, if non-mapped, choice off Linux.
func newMmapBackend(path string) (backend, error) {
	return newFileBackend(path)
}
