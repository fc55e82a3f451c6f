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
	"context"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpenVZ/vcmmd/pkg/metrics"
)

// ageCutoffs is the curated subset of age buckets exposed as metrics
// labels. Publishing all MaxAge buckets per cgroup per memory type would
// multiply cardinality by 256 for negligible benefit; these six points
// are enough to tell "recently touched" from "cold" from "essentially
// dead" at a glance.
var ageCutoffs = []int{0, 1, 4, 16, 64, 255}

const (
	pagesTotalDesc = iota
	pagesIdleDesc
	ewmaDesc
	cycleDurationDesc
	iterationsTotalDesc
	numDescriptors
)

var descriptors = [numDescriptors]*prometheus.Desc{
	pagesTotalDesc: prometheus.NewDesc(
		"idlemem_pages_total",
		"Total ageable pages observed for a cgroup in the most recent scan cycle.",
		[]string{"cgroup", "type"}, nil,
	),
	pagesIdleDesc: prometheus.NewDesc(
		"idlemem_pages_idle",
		"Pages that have been idle for at least age_ge+1 consecutive scan cycles.",
		[]string{"cgroup", "type", "age_ge"}, nil,
	),
	ewmaDesc: prometheus.NewDesc(
		"idlemem_idle_fraction_ewma",
		"Exponentially weighted moving average of the idle file-page fraction for a cgroup.",
		[]string{"cgroup"}, nil,
	),
	cycleDurationDesc: prometheus.NewDesc(
		"idlemem_scan_cycle_duration_seconds",
		"Wall-clock duration of the most recently completed full scan cycle.",
		nil, nil,
	),
	iterationsTotalDesc: prometheus.NewDesc(
		"idlemem_scan_iterations_total",
		"Cumulative number of Iter chunks scanned since the engine started.",
		nil, nil,
	),
}

var (
	activeMu      sync.RWMutex
	activeEngine  *Engine
	activeHistory *History
)

// RegisterEngine designates e as the engine the Prometheus collector reads
// from. The collector is registered with pkg/metrics at package init time,
// before any Engine exists, so the two are wired together at daemon
// startup instead.
func RegisterEngine(e *Engine) {
	activeMu.Lock()
	activeEngine = e
	activeMu.Unlock()
}

// RegisterHistory designates h as the history the collector publishes the
// idlemem_idle_fraction_ewma gauge from.
func RegisterHistory(h *History) {
	activeMu.Lock()
	activeHistory = h
	activeMu.Unlock()
}

func getActiveEngine() *Engine {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return activeEngine
}

func getActiveHistory() *History {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return activeHistory
}

type collector struct{}

// NewCollector satisfies pkg/metrics.InitCollector.
func NewCollector() (prometheus.Collector, error) {
	return &collector{}, nil
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect reads whatever the active engine's most recently completed
// cycle snapshot holds. It never triggers a scan itself: collection and
// the scan loop are separate concerns driven by separate goroutines.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	e := getActiveEngine()
	if e == nil {
		return
	}

	result, err := e.Result(context.Background())
	if err != nil {
		return
	}

	for path, stat := range result {
		collectType(ch, path, "anon", stat.TotalAnon, stat.IdleAnon)
		collectType(ch, path, "file", stat.TotalFile, stat.IdleFile)
	}

	if h := getActiveHistory(); h != nil {
		for path, ewma := range h.Snapshot() {
			ch <- prometheus.MustNewConstMetric(descriptors[ewmaDesc], prometheus.GaugeValue, ewma, path)
		}
	}

	ch <- prometheus.MustNewConstMetric(descriptors[cycleDurationDesc], prometheus.GaugeValue,
		e.LastCycleDuration().Seconds())
	ch <- prometheus.MustNewConstMetric(descriptors[iterationsTotalDesc], prometheus.CounterValue,
		float64(e.IterationsTotal()))
}

func collectType(ch chan<- prometheus.Metric, path, memType string, total int64, idleGE [MaxAge]int64) {
	ch <- prometheus.MustNewConstMetric(descriptors[pagesTotalDesc], prometheus.GaugeValue,
		float64(total), path, memType)

	for _, age := range ageCutoffs {
		ch <- prometheus.MustNewConstMetric(descriptors[pagesIdleDesc], prometheus.GaugeValue,
			float64(idleGE[age]), path, memType, strconv.Itoa(age))
	}
}

func init() {
	if err := metrics.RegisterCollector("idlemem", NewCollector); err != nil {
		enginelog.Error("failed to register idlemem collector: %v", err)
	}
}
