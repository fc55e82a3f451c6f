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

func newTestWordFile(t *testing.T, nwords int) *wordFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	wf, err := openWordFile(path, true)
	require.NoError(t, err)
	require.NoError(t, wf.writeWords(0, make([]uint64, nwords)))
	t.Cleanup(func() { wf.Close() })
	return wf
}

func TestWordFileRoundTrip(t *testing.T) {
	wf := newTestWordFile(t, 16)

	in := []uint64{0x1111111111111111, 0x2222222222222222, 0x3333333333333333}
	require.NoError(t, wf.writeWords(4, in))

	out := make([]uint64, len(in))
	require.NoError(t, wf.readWords(4, len(in), out))
	require.Equal(t, in, out)
}

func TestSetIdlePagesTrimsSubWordEnds(t *testing.T) {
	// 192 pfns = 3 words. start is mid-word-1, end is mid-word-2: only
	// bits [start,64) of word 1 and [0,end%64) of word 2 should be set;
	// word 0 must stay untouched, word 1 below start must stay clear.
	wf := newTestWordFile(t, 3)

	start := uint64(70)  // word 1, bit 6
	end := uint64(150)   // word 2, bit 22
	require.NoError(t, setIdlePages(wf, start, end, 1))

	words := make([]uint64, 3)
	require.NoError(t, wf.readWords(0, 3, words))

	allOnes := ^uint64(0)
	require.Equal(t, uint64(0), words[0], "word before start untouched")
	require.Equal(t, allOnes<<6, words[1], "word 1 only set from bit 6 up")
	require.Equal(t, (uint64(1)<<22)-1, words[2], "word 2 only set below bit 22")
}

func TestSetIdlePagesWordAlignedEndIsNotTrimmed(t *testing.T) {
	// When end is itself a multiple of 64, the naive "is this the last
	// window" check would incorrectly zero the whole last word; the
	// pfn+n > end condition must evaluate false here instead.
	wf := newTestWordFile(t, 2)

	require.NoError(t, setIdlePages(wf, 0, 128, 1))

	words := make([]uint64, 2)
	require.NoError(t, wf.readWords(0, 2, words))

	require.Equal(t, ^uint64(0), words[0])
	require.Equal(t, ^uint64(0), words[1])
}

func TestReadIdleBit(t *testing.T) {
	words := []uint64{0b101, 0}
	require.True(t, readIdleBit(words, 0, 0))
	require.False(t, readIdleBit(words, 1, 0))
	require.True(t, readIdleBit(words, 2, 0))
	require.False(t, readIdleBit(words, 64, 0))
}
