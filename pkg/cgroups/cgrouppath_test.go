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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMtab = `sysfs /sys sysfs rw,nosuid,nodev,noexec 0 0
proc /proc proc rw,nosuid,nodev,noexec 0 0
cgroup /sys/fs/cgroup/systemd cgroup rw,nosuid,nodev,noexec,name=systemd 0 0
cgroup /sys/fs/cgroup/cpu,cpuacct cgroup rw,nosuid,nodev,noexec,cpu,cpuacct 0 0
cgroup /sys/fs/cgroup/memory cgroup rw,nosuid,nodev,noexec,memory 0 0
`

func TestDiscoverMemoryDirFindsMemoryController(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mtab")
	require.NoError(t, os.WriteFile(path, []byte(sampleMtab), 0644))

	dir, err := DiscoverMemoryDir(path)
	require.NoError(t, err)
	require.Equal(t, "/sys/fs/cgroup/memory", dir)
}

func TestDiscoverMemoryDirNoMemoryController(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mtab")
	require.NoError(t, os.WriteFile(path, []byte("cgroup /sys/fs/cgroup/cpu cgroup rw,cpu 0 0\n"), 0644))

	_, err := DiscoverMemoryDir(path)
	require.Error(t, err)
}

func TestDiscoverMemoryDirMissingFile(t *testing.T) {
	_, err := DiscoverMemoryDir(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}
