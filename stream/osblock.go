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

import "golang.org/x/sys/unix"

// osBlockSize reports the host's page size, which every stream's
// BlockSize must be an integer multiple of. Streams opened with a
// header recorded by a different OS block size are rejected at open
// (see header.validate) since block alignment assumptions would no
// longer hold.
func osBlockSize() uint64 {
	return uint64(unix.Getpagesize())
}
