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
	"syscall"

	"github.com/hashicorp/go-multierror"
)

// buildCgroupTree walks the memory-cgroup directory hierarchy rooted at
// root, summing cgMap's per-inode stats up to every ancestor directory.
// The result maps each cgroup's path (relative to root, slash-separated,
// leading slash, e.g. "/system.slice/foo.service") to its rolled-up
// stats: its own ageable pages plus every descendant's.
//
// root itself is walked but never reported, matching get_result's erasure
// of the "/" entry in idlememscan.cpp's __get_result: the root of the
// hierarchy is the mount point, not a cgroup any tenant can be charged
// against.
//
// A directory that can't be opened (removed mid-walk, permission denied)
// does not abort the whole walk. Its failure is recorded and the rest of
// the tree is still aggregated, generalizing __get_result's all-or-nothing
// opendir check into something a long-running daemon can tolerate.
func buildCgroupTree(root string, cgMap *cgroupMap) (map[string]idleMemStat, error) {
	result := make(map[string]idleMemStat)
	var errs *multierror.Error

	var walk func(relPath, absPath string, isRoot bool) idleMemStat
	walk = func(relPath, absPath string, isRoot bool) idleMemStat {
		var mine idleMemStat
		if !isRoot {
			if ino, ok := dirInode(absPath); ok {
				if stat, ok := cgMap.lookup(ino); ok {
					mine = stat
				}
			}
		}

		entries, err := os.ReadDir(absPath)
		if err != nil {
			errs = multierror.Append(errs, newIoError(absPath, OpOpen, 0, 0, err))
			if !isRoot {
				result[relPath] = mine
			}
			return mine
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			if name == "." || name == ".." {
				continue
			}

			childRel := "/" + name
			if !isRoot {
				childRel = relPath + "/" + name
			}
			childAbs := absPath + "/" + name

			childStat := walk(childRel, childAbs, false)
			mine = mine.add(childStat)
		}

		if !isRoot {
			result[relPath] = mine
		}
		return mine
	}

	walk("/", root, true)

	return result, errs.ErrorOrNil()
}

// dirInode returns a directory's inode number, the key cgMap is indexed by.
func dirInode(path string) (uint64, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return st.Ino, true
}
