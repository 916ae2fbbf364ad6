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

package extsort

import "path/filepath"

// CheckAlias reports an IllegalAlias error if any name in outNames
// also appears in inNames, once both are resolved to absolute paths.
// Scan, Merge, and Sort all call this before touching any stream, so
// that using the same backing file as both an input and an output of
// one driver invocation is rejected up front rather than silently
// corrupting the file mid-pass.
func CheckAlias(inNames, outNames []string) error {
	seen := make(map[string]bool, len(inNames))
	for _, n := range inNames {
		seen[abs(n)] = true
	}
	for _, n := range outNames {
		if seen[abs(n)] {
			return Errorf(IllegalAlias, "stream %q used as both input and output", n)
		}
	}
	return nil
}

func abs(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return p
}
