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
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempPathProvider is the external collaborator the core consumes to
// name temporary files; callers that want temp files placed somewhere
// other than os.TempDir (or named some other way) supply their own.
type TempPathProvider interface {
	MakeTempPath() (string, error)
}

// defaultTempPathProvider names temp files "extsort-<uuid>.tmp" inside
// os.TempDir, the same role google/uuid plays elsewhere in the
// teacher's stack for collision-free object naming.
type defaultTempPathProvider struct{}

// DefaultTempPaths is the TempPathProvider used when a caller does not
// supply one of their own.
var DefaultTempPaths TempPathProvider = defaultTempPathProvider{}

func (defaultTempPathProvider) MakeTempPath() (string, error) {
	name := "extsort-" + uuid.New().String() + ".tmp"
	return filepath.Join(os.TempDir(), name), nil
}
