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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleZoneinfo = `
Node 0, zone      DMA
  pages free     3979
        spanned  4095
        present  3998
  start_pfn:      1
Node 0, zone    DMA32
  pages free     838751
        spanned  1044480
        present  902938
  start_pfn:      4096
Node 0, zone   Normal
  pages free     1234567
        spanned  3670016
        present  3601152
  start_pfn:      1048576
`

func TestReadEndPfn(t *testing.T) {
	endPfn, err := readEndPfn(strings.NewReader(sampleZoneinfo))
	require.NoError(t, err)
	require.EqualValues(t, 1048576+3670016, endPfn)
}

func TestReadEndPfnUnparseable(t *testing.T) {
	_, err := readEndPfn(strings.NewReader("garbage\nmore garbage\n"))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestReadEndPfnKeepsMaximumAcrossZones(t *testing.T) {
	// A later zone can have a smaller start_pfn+spanned than an earlier
	// one (e.g. a movable zone nested inside Normal); readEndPfn must
	// track the running maximum, not just the last zone parsed.
	in := `
        spanned  500
  start_pfn:      1000000
        spanned  10
  start_pfn:      0
`
	endPfn, err := readEndPfn(strings.NewReader(in))
	require.NoError(t, err)
	require.EqualValues(t, 1000500, endPfn)
}
