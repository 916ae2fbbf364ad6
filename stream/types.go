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

// Status, Persistence, and Mode live in the root package so that
// errors.go's Kind/Error types and these lifecycle enums form one
// vocabulary shared by every component; stream re-exports them here so
// callers write stream.Read/stream.Persistent without an extra import.
type (
	Status      = extsort.Status
	Persistence = extsort.Persistence
	Mode        = extsort.Mode
)

const (
	StatusOK          = extsort.StatusOK
	StatusInvalid     = extsort.StatusInvalid
	StatusEOSNextCall = extsort.StatusEOSNextCall
	StatusEndOfStream = extsort.StatusEndOfStream

	Delete     = extsort.Delete
	Persistent = extsort.Persistent
	ReadOnce   = extsort.ReadOnce

	Read      = extsort.Read
	Write     = extsort.Write
	Append    = extsort.Append
	WriteOnly = extsort.WriteOnly
)
