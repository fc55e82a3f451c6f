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

func TestBuildCgroupTreeRollsUpToAncestors(t *testing.T) {
	root := t.TempDir()
	dirA := filepath.Join(root, "a")
	dirB := filepath.Join(dirA, "b")
	require.NoError(t, os.MkdirAll(dirB, 0755))

	inoA, ok := dirInode(dirA)
	require.True(t, ok)
	inoB, ok := dirInode(dirB)
	require.True(t, ok)

	cgMap := newCgroupMap()
	cgMap.get(inoA).incTotal(memAnon)
	cgMap.get(inoB).incTotal(memAnon)
	cgMap.get(inoB).incTotal(memAnon)

	result, err := buildCgroupTree(root, cgMap)
	require.NoError(t, err)

	require.EqualValues(t, 2, result["/a/b"].total[memAnon], "leaf reports only its own contribution")
	require.EqualValues(t, 3, result["/a"].total[memAnon], "ancestor reports its own plus every descendant's")

	_, ok = result["/"]
	require.False(t, ok, "the root directory itself is never reported")
}

func TestBuildCgroupTreeToleratesUnreadableSubtree(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	root := t.TempDir()
	good := filepath.Join(root, "good")
	bad := filepath.Join(root, "bad")
	require.NoError(t, os.MkdirAll(good, 0755))
	require.NoError(t, os.MkdirAll(bad, 0000))
	t.Cleanup(func() { os.Chmod(bad, 0755) })

	cgMap := newCgroupMap()

	result, err := buildCgroupTree(root, cgMap)
	require.Error(t, err, "an unreadable subtree is reported, not silently dropped")
	_, ok := result["/good"]
	require.True(t, ok, "a sibling of the unreadable directory is still aggregated")
}
