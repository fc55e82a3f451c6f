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

// compoundHead is the transient state latched at every non-tail pfn and
// inherited by subsequent COMPOUND_TAIL pfns until the next head.
type compoundHead struct {
	cg          uint64
	lru         bool
	anon        bool
	unevictable bool
	idle        bool
}

// countIdlePages performs a single left-to-right walk of [startPfn, endPfn),
// refilling three parallel BATCH_SIZE windows from the kernel streams as it
// goes, and accumulates counts into cgMap while updating ages.
//
// Grounded on idlememscan.cpp's count_idle_pages/__next_pfn, reproduced
// here field-for-field: the refill rule, the compound-head latch, and the
// LRU/UNEVICTABLE eligibility check are all load-bearing details this
// function must not "clean up" or restructure.
func countIdlePages(streams *kernelStreams, ages *ageTable, cgMap *cgroupMap, startPfn, endPfn uint64, sampling int) error {
	startAligned := startPfn &^ 63
	endAligned := (endPfn + 63) &^ 63

	bufFlags := make([]uint64, batchSize)
	bufCg := make([]uint64, batchSize)
	bufIdle := make([]uint64, batchSize/64)

	var head compoundHead

	windowStart := uint64(0)
	bufIndex := batchSize // forces a refill on the first iteration

	for pfn := startAligned; pfn < endPfn; {
		if bufIndex >= batchSize {
			n := batchSize
			if rem := endAligned - pfn; rem < uint64(n) {
				n = int(rem)
			}
			if err := streams.flags.readWords(pfn, n, bufFlags[:n]); err != nil {
				return err
			}
			if err := streams.cg.readWords(pfn, n, bufCg[:n]); err != nil {
				return err
			}
			if err := streams.idle.readWords(pfn/64, n/64, bufIdle[:n/64]); err != nil {
				return err
			}
			windowStart = pfn
			bufIndex = 0
		}

		if pfn >= startPfn {
			flags := bufFlags[bufIndex]

			if !flagSet(flags, kpfCompoundTail) {
				// Head, or a singleton (non-compound) page: latch state
				// that COMPOUND_TAIL pfns will inherit until the next head.
				head = compoundHead{
					cg:          bufCg[bufIndex],
					lru:         flagSet(flags, kpfLRU),
					anon:        flagSet(flags, kpfAnon),
					unevictable: flagSet(flags, kpfUnevictable),
					idle:        readIdleBit(bufIdle, pfn, windowStart),
				}
			}

			if head.lru && !head.unevictable {
				t := memFile
				if head.anon {
					t = memAnon
				}

				stat := cgMap.get(head.cg)
				stat.incTotal(t)

				if head.idle {
					a := ages.get(pfn)
					stat.incIdle(t, a)
					ages.bumpIdle(pfn)
				} else {
					ages.resetActive(pfn)
				}
			}
		}

		bufIndex++
		if bufIndex >= batchSize {
			pfn += uint64(batchSize * (sampling - 1))
		}
		pfn++
	}

	return nil
}
