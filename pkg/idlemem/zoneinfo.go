// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package idlemem

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// defaultZoneinfoPath is the kernel file read to compute endPfn. Grounded on
// idlememscan.cpp's init_END_PFN.
const defaultZoneinfoPath = "/proc/zoneinfo"

// readEndPfn parses a /proc/zoneinfo-formatted stream and returns the
// smallest pfn exclusive upper bound that covers every zone's span.
//
// zoneinfo interleaves per-zone blocks; each carries a "spanned" line (the
// zone's page count) followed eventually by a "start_pfn:" line. We track
// the running spanned value and, each time a start_pfn line appears,
// fold start_pfn+spanned into the running maximum.
func readEndPfn(r io.Reader) (uint64, error) {
	var (
		endPfn  uint64
		spanned uint64
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		switch fields[0] {
		case "spanned":
			v, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				continue
			}
			spanned = v
		case "start_pfn:":
			start, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				continue
			}
			candidate := start + spanned
			if candidate > endPfn {
				endPfn = candidate
			}
			spanned = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, newIoError(defaultZoneinfoPath, OpRead, 0, 0, err)
	}

	if endPfn == 0 {
		return 0, configErrorf("zoneinfo unparseable: no usable start_pfn/spanned pairs in %s", defaultZoneinfoPath)
	}

	return endPfn, nil
}

// discoverEndPfn opens path (normally /proc/zoneinfo) and computes endPfn.
func discoverEndPfn(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, newIoError(path, OpOpen, 0, 0, err)
	}
	defer f.Close()

	return readEndPfn(f)
}
