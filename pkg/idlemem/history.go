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
	"sync"

	"github.com/OpenVZ/vcmmd/pkg/metricsring"
)

// DefaultHistorySize is the default number of past cycles a History keeps
// per cgroup.
const DefaultHistorySize = 60

// History tracks a smoothed idle-file-page fraction per cgroup path across
// cycles, on top of the raw per-cycle snapshot Engine.Result already
// exposes. It is fed once per completed cycle and entries for cgroups that
// dropped out of the last result are pruned rather than kept forever.
//
// Adapted from the teacher's pkg/metricsring, which previously had no
// caller: each reported cgroup gets its own ring here instead of the
// package being left dangling in the tree.
type History struct {
	mu      sync.Mutex
	size    int
	buffers map[string]metricsring.SampleBuffer
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, buffers: make(map[string]metricsring.SampleBuffer)}
}

// Update pushes one sample per cgroup in result (the fraction of file pages
// idle for at least one cycle) and drops buffers for cgroups result no
// longer mentions.
func (h *History) Update(result map[string]CgroupStat) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for path, stat := range result {
		buf, ok := h.buffers[path]
		if !ok {
			buf = metricsring.NewMetricsRing(h.size)
			h.buffers[path] = buf
		}
		buf.Push(idleFileFraction(stat))
	}

	for path := range h.buffers {
		if _, ok := result[path]; !ok {
			delete(h.buffers, path)
		}
	}
}

// EWMA returns the smoothed idle-file-page fraction for path, or false if
// nothing has been recorded for it yet.
func (h *History) EWMA(path string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.buffers[path]
	if !ok {
		return 0, false
	}
	return buf.EWMA(), true
}

// Snapshot returns the EWMA value for every cgroup currently tracked, for
// the metrics collector to publish alongside the raw per-cycle counters.
func (h *History) Snapshot() map[string]float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]float64, len(h.buffers))
	for path, buf := range h.buffers {
		out[path] = buf.EWMA()
	}
	return out
}

func idleFileFraction(stat CgroupStat) float64 {
	if stat.TotalFile == 0 {
		return 0
	}
	return float64(stat.IdleFile[0]) / float64(stat.TotalFile)
}
