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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeKernelFiles writes flags/cg/idle-bitmap fixtures sized for exactly
// npfn pfns (npfn must be a multiple of 64) and returns an opened
// kernelStreams reading/writing them.
func fakeKernelFiles(t *testing.T, flags, cg []uint64, idle []uint64) *kernelStreams {
	t.Helper()
	dir := t.TempDir()

	flagsPath := filepath.Join(dir, "kpageflags")
	cgPath := filepath.Join(dir, "kpagecgroup")
	idlePath := filepath.Join(dir, "idle-bitmap")

	mustWrite := func(path string, words []uint64) {
		require.NoError(t, os.WriteFile(path, nil, 0644))
		f, err := openWordFile(path, true)
		require.NoError(t, err)
		require.NoError(t, f.writeWords(0, words))
		require.NoError(t, f.Close())
	}
	mustWrite(flagsPath, flags)
	mustWrite(cgPath, cg)
	mustWrite(idlePath, idle)

	streams, err := openKernelStreams(flagsPath, cgPath, idlePath)
	require.NoError(t, err)
	t.Cleanup(func() { streams.Close() })
	return streams
}

func TestCountIdlePagesCompoundTailInheritsHead(t *testing.T) {
	const npfn = 128

	flags := make([]uint64, npfn)
	cg := make([]uint64, npfn)

	flags[0] = (1 << kpfLRU) | (1 << kpfAnon) // head: anon, idle
	cg[0] = 7
	flags[1] = 1 << kpfCompoundTail // tail: inherits pfn0's head state
	flags[2] = 1 << kpfLRU          // head: file, not idle
	cg[2] = 7
	// pfn 3..63: flags 0, not LRU, skipped
	flags[64] = (1 << kpfLRU) | (1 << kpfUnevictable) // head: LRU but unevictable, skipped
	cg[64] = 9

	idle := make([]uint64, npfn/64)
	idle[0] = 1 // only pfn 0's idle bit set; pfn 1 inherits it without re-reading

	streams := fakeKernelFiles(t, flags, cg, idle)
	ages := newAgeTable(npfn)
	cgMap := newCgroupMap()

	require.NoError(t, countIdlePages(streams, ages, cgMap, 0, npfn, 1))

	seven, ok := cgMap.lookup(7)
	require.True(t, ok)
	require.EqualValues(t, 2, seven.total[memAnon], "head + tail both counted as anon")
	require.EqualValues(t, 2, seven.idleGE(memAnon)[0], "head + tail both counted idle")
	require.EqualValues(t, 1, seven.total[memFile], "pfn 2 counted as file")
	require.EqualValues(t, 0, seven.idleGE(memFile)[0], "pfn 2 was not idle")

	_, ok = cgMap.lookup(9)
	require.False(t, ok, "unevictable head must never reach cgMap.get")

	require.Equal(t, 0, ages.get(2), "non-idle page's age was reset, not bumped")
	require.Equal(t, 1, ages.get(0), "idle page's age was bumped past its observed value")
}

func TestCountIdlePagesRespectsStartOffset(t *testing.T) {
	// A refill window always starts 64-aligned, but pfns before the
	// requested start must not be counted even though they're read.
	const npfn = 64
	flags := make([]uint64, npfn)
	cg := make([]uint64, npfn)
	for i := range flags {
		flags[i] = 1 << kpfLRU
		cg[i] = 3
	}
	idle := make([]uint64, npfn/64)

	streams := fakeKernelFiles(t, flags, cg, idle)
	ages := newAgeTable(npfn)
	cgMap := newCgroupMap()

	require.NoError(t, countIdlePages(streams, ages, cgMap, 10, npfn, 1))

	stat, ok := cgMap.lookup(3)
	require.True(t, ok)
	require.EqualValues(t, npfn-10, stat.total[memFile], "only pfns [10,64) counted")
}
