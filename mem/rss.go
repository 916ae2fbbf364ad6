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

package mem

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a snapshot of the manager's accounted usage alongside the
// actual resident set size reported by the OS. RSS is advisory only:
// the accept/reject decision in Register always uses the accounted
// counter, never RSS, since RSS lags GC and page reclamation in ways
// that would make the accounting non-deterministic.
type Stats struct {
	Limit  int64
	InUse  int64
	RSS    int64
	RSSErr error
}

// Snapshot returns the manager's current accounting together with the
// process's actual RSS, for diagnostics and tests that want to sanity
// check the declared budget against what the OS reports.
func (m *Manager) Snapshot() Stats {
	s := Stats{Limit: m.Limit(), InUse: m.InUse()}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.RSSErr = err
		return s
	}
	info, err := p.MemoryInfo()
	if err != nil {
		s.RSSErr = err
		return s
	}
	s.RSS = int64(info.RSS)
	return s
}
