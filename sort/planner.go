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

package sort

import "math"

// defaultBlockSize mirrors the block granularity Stream aligns its
// body to when no OS-reported page size is available; the planner
// only needs this as a lower bound on per-stream I/O buffering, not
// the exact value a given Stream picked.
const defaultBlockSize = 4096

// perStreamOverhead is the bookkeeping the merger carries per open
// input during phase 3/4: the loser-tree leaf slot, the cached head
// item, and the eof flag.
const perStreamOverhead = 64

// sortOverhead is a fixed allowance for the in-memory sort's own
// bookkeeping during phase 2 plus one I/O write buffer.
const sortOverhead = 4096

// Parameters is the output of Plan: the run length, merge fanout, and
// thresholds an orchestrated Sort uses to stay within a fixed memory
// budget regardless of input size.
type Parameters struct {
	MemoryPhase2            int64
	MemoryPhase3            int64
	MemoryPhase4            int64
	RunLength               int64
	InternalReportThreshold int64
	Fanout                  int64
	FinalFanout             int64
}

// Plan computes Parameters for sorting n items of itemSize bytes each
// under a memory budget of available bytes, following the same shape
// as TPIE's sort_parameters: runLength bounds phase 2's in-memory
// buffer, fanout bounds phase 3/4's merge width, and finalFanout
// shrinks the last pass so it never merges more streams than the
// remaining run count actually requires.
func Plan(available, itemSize, n int64) Parameters {
	if itemSize < 1 {
		itemSize = 1
	}
	if available < 1 {
		available = 1
	}

	runLength := (available - sortOverhead) / itemSize
	minRunLength := 2 * defaultBlockSize / itemSize
	if minRunLength < 1 {
		minRunLength = 1
	}
	if runLength < minRunLength {
		runLength = minRunLength
	}

	outputBuf := int64(defaultBlockSize)
	inputBuf := int64(defaultBlockSize)
	fanout := (available - outputBuf) / (inputBuf + perStreamOverhead)
	if fanout < 2 {
		fanout = 2
	}

	runCount := ceilDiv(n, runLength)
	if runCount < 1 {
		runCount = 1
	}

	finalFanout := fanout
	passes := int64(1)
	if runCount > fanout {
		passes = int64(math.Ceil(logBase(float64(fanout), float64(runCount))))
		if passes < 1 {
			passes = 1
		}
		denom := int64(math.Pow(float64(fanout), float64(passes-1)))
		if denom < 1 {
			denom = 1
		}
		finalFanout = ceilDiv(runCount, denom)
		if finalFanout > fanout {
			finalFanout = fanout
		}
		if finalFanout < 2 {
			finalFanout = 2
		}
	} else {
		finalFanout = runCount
		if finalFanout < 1 {
			finalFanout = 1
		}
	}

	threshold := runLength

	return Parameters{
		MemoryPhase2:            available,
		MemoryPhase3:            available,
		MemoryPhase4:            available,
		RunLength:                runLength,
		InternalReportThreshold: threshold,
		Fanout:                   fanout,
		FinalFanout:              finalFanout,
	}
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

func logBase(base, x float64) float64 {
	if x <= 1 {
		return 0
	}
	return math.Log(x) / math.Log(base)
}
