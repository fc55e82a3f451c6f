// Copyright 2020 Intel Corporation. All Rights Reserved.
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

package cgroups

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	logger "github.com/OpenVZ/vcmmd/pkg/log"
)

const (
	// Tasks is a cgroup's "tasks" entry.
	Tasks = "tasks"
	// Procs is cgroup's "cgroup.procs" entry.
	Procs = "cgroup.procs"
	// MemorySubsys is the name of the v1 memory controller directory.
	MemorySubsys = "memory"
)

var (
	// mountDir is the parent directory for per-controller cgroupfs mounts.
	mountDir = "/sys/fs/cgroup"
	// memoryDir is the absolute path to the v1 memory controller.
	memoryDir = path.Join(mountDir, MemorySubsys)

	// our logger instance
	pathlog = logger.NewLogger("cgroups")
)

// GetMountDir returns the common mount point for cgroup v1 controllers.
func GetMountDir() string {
	return mountDir
}

// SetMountDir sets the common mount point for the cgroup v1 controllers.
func SetMountDir(dir string) {
	memory, _ := filepath.Rel(mountDir, memoryDir)

	mountDir = dir

	if memory != "" {
		memoryDir = path.Join(mountDir, memory)
	}
}

// GetMemoryDir returns the absolute path of the v1 memory controller mount,
// the directory whose subtree mirrors the kernel's memory cgroup hierarchy.
func GetMemoryDir() string {
	return memoryDir
}

// SetMemoryDir overrides the absolute path of the v1 memory controller
// mount, normally derived from the common mount directory.
func SetMemoryDir(dir string) {
	memoryDir = dir
	pathlog.Debug("memory cgroup directory set to %s", dir)
}

// IsV2Unified reports whether the cgroup v2 unified hierarchy is mounted
// at V2path rather than the legacy per-controller v1 layout.
func IsV2Unified() bool {
	_, err := os.Stat(filepath.Join(V2path, "cgroup.controllers"))
	return err == nil
}

func init() {
	flag.StringVar(&mountDir, "cgroup-mount", mountDir,
		"directory under which cgroup v1 controllers are mounted")
}

// DefaultMtabPath is the mount table consulted by DiscoverMemoryDir.
// Grounded on idlememscan.cpp's MTAB_PATH.
const DefaultMtabPath = "/etc/mtab"

// DiscoverMemoryDir scans a fstab/mtab-formatted file for a v1 cgroup
// mount whose comma-separated options list "memory", and returns its
// mount point. Grounded on idlememscan.cpp's init_MEMCG_MNT: unlike the
// "-cgroup-mount" flag's fixed /sys/fs/cgroup/memory assumption, this
// tolerates memory cgroups mounted anywhere (e.g. under a combined
// "memory,swap" controller mount with a non-default directory name).
func DiscoverMemoryDir(mtabPath string) (string, error) {
	f, err := os.Open(mtabPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[2] != "cgroup" {
			continue
		}
		for _, opt := range strings.Split(fields[3], ",") {
			if opt == "memory" {
				return fields[1], nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	return "", fmt.Errorf("no cgroup mount with the memory controller found in %s", mtabPath)
}
