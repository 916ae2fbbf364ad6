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

// extsort-bench sorts a stream file (this module's on-disk format,
// header included) of uint64 items under a declared memory budget and reports the elapsed time and the
// planner's chosen parameters, for exercising C6/C7 against inputs
// too large to fit comfortably in a unit test.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/outofcore/extsort/mem"
	"github.com/outofcore/extsort/sort"
	"github.com/outofcore/extsort/stream"
)

func main() {
	var (
		inPath  = flag.String("in", "", "input stream file of uint64 items (with stream header)")
		outPath = flag.String("out", "", "output file (sorted)")
		memMiB  = flag.Int64("mem", 64, "memory budget in MiB")
	)
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: extsort-bench -in FILE -out FILE [-mem MiB]")
		os.Exit(2)
	}

	mgr := mem.New(*memMiB << 20)

	in, err := stream.NewNamed[uint64](mgr, *inPath, stream.Read)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open input: %s\n", err)
		os.Exit(1)
	}
	defer in.Close()

	out, err := stream.NewNamed[uint64](mgr, *outPath, stream.Write)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open output: %s\n", err)
		os.Exit(1)
	}
	out.Persist(stream.Persistent)
	defer out.Close()

	n := in.Len()
	params := sort.Plan(mgr.Available(), in.ItemSize(), n)
	fmt.Fprintf(os.Stderr, "sorting %d items: runLength=%d fanout=%d finalFanout=%d\n",
		n, params.RunLength, params.Fanout, params.FinalFanout)

	start := time.Now()
	less := func(a, b uint64) bool { return a < b }
	if err := sort.Sort[uint64](mgr, in, out, n, less); err != nil {
		fmt.Fprintf(os.Stderr, "sort: %s\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "sorted %d items in %s\n", out.Len(), time.Since(start))
}
