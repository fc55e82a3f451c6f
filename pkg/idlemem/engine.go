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
	"flag"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	cgroups "github.com/OpenVZ/vcmmd/pkg/cgroups"
	logger "github.com/OpenVZ/vcmmd/pkg/log"
)

var (
	enginelog = logger.NewLogger("idlemem")
	laglog    = logger.RateLimit(enginelog, logger.Interval(time.Minute))
)

var (
	flagSampling float64
)

func init() {
	flag.Float64Var(&flagSampling, "sampling", 1.0,
		"fraction of pfns to scan per cycle, in (0, 1]; 1 scans every page")
}

// CgroupStat is the reported per-cgroup result of one completed scan cycle:
// component F's counters rolled up by component G and converted from the
// internal age-bucket histogram into the cumulative idleGE form callers
// consume directly.
type CgroupStat struct {
	TotalAnon int64
	IdleAnon  [MaxAge]int64
	TotalFile int64
	IdleFile  [MaxAge]int64
}

func statFromIdleMemStat(s idleMemStat) CgroupStat {
	return CgroupStat{
		TotalAnon: s.total[memAnon],
		IdleAnon:  s.idleGE(memAnon),
		TotalFile: s.total[memFile],
		IdleFile:  s.idleGE(memFile),
	}
}

// EngineOptions configures a new Engine. Zero-value fields fall back to the
// defaults a standalone scan of the host would use.
type EngineOptions struct {
	KpageflagsPath  string
	KpagecgroupPath string
	IdleBitmapPath  string
	ZoneinfoPath    string
	CgroupRoot      string
	LockPath        string
	InitialSampling float64
	ScanInterval    time.Duration
}

func (o *EngineOptions) setDefaults() {
	if o.KpageflagsPath == "" {
		o.KpageflagsPath = defaultKpageflagsPath
	}
	if o.KpagecgroupPath == "" {
		o.KpagecgroupPath = defaultKpagecgroupPath
	}
	if o.IdleBitmapPath == "" {
		o.IdleBitmapPath = defaultIdleBitmapPath
	}
	if o.ZoneinfoPath == "" {
		o.ZoneinfoPath = defaultZoneinfoPath
	}
	if o.LockPath == "" {
		o.LockPath = filepath.Join(os.TempDir(), "idlescand.lock")
	}
	if o.InitialSampling <= 0 {
		o.InitialSampling = flagSampling
	}
	if o.InitialSampling <= 0 {
		o.InitialSampling = 1.0
	}
	if o.CgroupRoot == "" {
		o.CgroupRoot = DefaultCgroupRoot()
	}
}

// DefaultCgroupRoot resolves the directory whose subtree mirrors the
// kernel's memory-cgroup hierarchy: the v2 unified mount if present,
// otherwise the v1 memory controller mount.
// DefaultCgroupRoot resolves the directory whose subtree mirrors the
// kernel's memory cgroup hierarchy: the v2 unified mount if present,
// otherwise the v1 memory controller, falling back to /etc/mtab when
// the fixed -cgroup-mount default isn't actually where memory is
// mounted. Grounded on idlememscan.cpp's init_MEMCG_MNT.
func DefaultCgroupRoot() string {
	if cgroups.IsV2Unified() {
		return cgroups.V2path
	}
	if dir := cgroups.GetMemoryDir(); dirLooksMounted(dir) {
		return dir
	}
	if dir, err := cgroups.DiscoverMemoryDir(cgroups.DefaultMtabPath); err == nil {
		return dir
	}
	return cgroups.GetMemoryDir()
}

func dirLooksMounted(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "cgroup.procs"))
	if err == nil {
		return true
	}
	_, err = os.Stat(filepath.Join(dir, "tasks"))
	return err == nil
}

// Engine is the control surface over one host's idle-memory scan: it owns
// the open kernel streams, the dense per-pfn age table, the per-cgroup
// accumulator, and the cur_iter scan-cycle state machine.
//
// All of Engine's own fields are touched by exactly one goroutine - the
// daemon driver's scan loop. The exceptions are the last completed
// snapshot, which the HTTP metrics handler reads concurrently and which is
// guarded by snapMu, and iterationsTotal, which is updated and read
// atomically.
type Engine struct {
	opts EngineOptions

	streams *kernelStreams
	lock    *flock.Flock

	endPfn uint64
	ages   *ageTable
	cgMap  *cgroupMap

	sampling int
	iterSpan uint64
	curIter  uint64

	cycleStart   time.Time
	cycleElapsed time.Duration
	itersInCycle int
	warnedLag    bool

	iterationsTotal uint64

	snapMu       sync.RWMutex
	haveSnapshot bool
	snapshot     map[string]CgroupStat
	cycleLatency time.Duration
}

// NewEngine opens the kernel streams, computes END_PFN, and takes the
// advisory sole-writer lock. Grounded on idlememscan.cpp's open_files and
// init_END_PFN, generalized into an explicit constructor rather than
// process-global state initialized by side effect.
func NewEngine(opts EngineOptions) (*Engine, error) {
	opts.setDefaults()

	fl := flock.New(opts.LockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, configErrorf("acquiring advisory lock %s: %v", opts.LockPath, err)
	}
	if !locked {
		return nil, configErrorf("another idlemem engine appears to be running (lock held on %s)", opts.LockPath)
	}

	endPfn, err := discoverEndPfn(opts.ZoneinfoPath)
	if err != nil {
		fl.Unlock()
		return nil, err
	}

	streams, err := openKernelStreams(opts.KpageflagsPath, opts.KpagecgroupPath, opts.IdleBitmapPath)
	if err != nil {
		fl.Unlock()
		return nil, err
	}

	e := &Engine{
		opts:    opts,
		streams: streams,
		lock:    fl,
		endPfn:  endPfn,
		ages:    newAgeTable(endPfn),
		cgMap:   newCgroupMap(),
	}
	e.setSamplingLocked(opts.InitialSampling)

	enginelog.Info("engine ready: end_pfn=%d sampling=%.4f iter_span=%d", endPfn, opts.InitialSampling, e.iterSpan)
	return e, nil
}

func (e *Engine) setSamplingLocked(v float64) {
	s := int(1.0 / v)
	if s < 1 {
		s = 1
	}
	e.sampling = s
	e.iterSpan = uint64(scanChunk * s)
}

// SetSampling changes the fraction of pfns scanned per cycle. Rejected
// mid-cycle: changing iter_span while cur_iter != 0 would make the next
// iter()'s start/end arithmetic inconsistent with the cycle already in
// progress.
func (e *Engine) SetSampling(v float64) error {
	if v <= 0 || v > 1 {
		return argErrorf("sampling %v out of range (0, 1]", v)
	}
	if e.curIter != 0 {
		return argErrorf("sampling cannot change mid-cycle (cur_iter=%d)", e.curIter)
	}
	e.setSamplingLocked(v)
	return nil
}

// NrIters reports how many Iter calls a full cycle takes at the current
// sampling rate.
func (e *Engine) NrIters() int {
	return int((e.endPfn + e.iterSpan - 1) / e.iterSpan)
}

// Iter advances the scan state machine by one chunk. It blocks for the
// duration of the chunk's kernel I/O, checking ctx only between chunks, not
// mid-syscall.
func (e *Engine) Iter(ctx context.Context) (itersDone, itersLeft int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	if e.curIter == 0 {
		e.cgMap.reset()
		e.cycleStart = time.Now()
		e.cycleElapsed = 0
		e.itersInCycle = 0
		e.warnedLag = false
	}

	start := e.curIter * e.iterSpan
	end := start + e.iterSpan
	if end > e.endPfn {
		end = e.endPfn
	}

	iterStart := time.Now()
	if err := countIdlePages(e.streams, e.ages, e.cgMap, start, end, e.sampling); err != nil {
		return 0, 0, err
	}
	if err := setIdlePages(e.streams.idle, start, end, e.sampling); err != nil {
		return 0, 0, err
	}
	e.cycleElapsed += time.Since(iterStart)
	e.itersInCycle++
	atomic.AddUint64(&e.iterationsTotal, 1)

	e.curIter++
	left := int((e.endPfn - end + e.iterSpan - 1) / e.iterSpan)

	e.throttle(left)

	if left == 0 {
		e.curIter = 0
		if err := e.takeSnapshot(); err != nil {
			return e.itersInCycle, left, err
		}
	}

	return e.itersInCycle, left, nil
}

// throttle mirrors idlemem.py's _Scanner.__throttle: it estimates how long
// the remaining iterations of this cycle will take from the average
// observed so far, and sleeps off whatever slack remains against
// ScanInterval so a full cycle is spread roughly evenly across it instead
// of free-running. A cycle that's genuinely falling behind is logged
// (rate-limited) rather than made to sleep negative time.
func (e *Engine) throttle(itersLeft int) {
	if e.opts.ScanInterval <= 0 {
		return
	}

	timeLeft := e.opts.ScanInterval - time.Since(e.cycleStart)
	timeRequired := time.Duration(int64(itersLeft) * int64(e.cycleElapsed) / int64(e.itersInCycle))

	if timeRequired > timeLeft {
		if !e.warnedLag && timeRequired-timeLeft > e.opts.ScanInterval/1000 {
			laglog.Warn("idle memory scan is lagging behind (%s left, %s required)", timeLeft, timeRequired)
			e.warnedLag = true
		}
		return
	}

	if itersLeft > 0 {
		time.Sleep((timeLeft - timeRequired) / time.Duration(itersLeft))
	} else {
		time.Sleep(timeLeft)
	}
}

func (e *Engine) takeSnapshot() error {
	raw, err := buildCgroupTree(e.opts.CgroupRoot, e.cgMap)
	if err != nil {
		enginelog.Warn("cgroup tree walk completed with errors: %v", err)
	}

	snapshot := make(map[string]CgroupStat, len(raw))
	for path, stat := range raw {
		snapshot[path] = statFromIdleMemStat(stat)
	}

	e.snapMu.Lock()
	e.snapshot = snapshot
	e.haveSnapshot = true
	e.cycleLatency = time.Since(e.cycleStart)
	e.snapMu.Unlock()

	enginelog.Info("scan cycle complete: %d cgroups reported in %s", len(snapshot), e.cycleLatency)
	return err
}

// Result returns the most recently completed cycle's per-cgroup stats.
func (e *Engine) Result(ctx context.Context) (map[string]CgroupStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.snapMu.RLock()
	defer e.snapMu.RUnlock()

	if !e.haveSnapshot {
		return nil, ErrCycleIncomplete
	}
	out := make(map[string]CgroupStat, len(e.snapshot))
	for k, v := range e.snapshot {
		out[k] = v
	}
	return out, nil
}

// LastCycleDuration reports the wall-clock duration of the most recently
// completed scan cycle, for the cycle-duration metric.
func (e *Engine) LastCycleDuration() time.Duration {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.cycleLatency
}

// IterationsTotal reports the cumulative number of Iter calls made since
// the engine was constructed, for the iterations counter metric.
func (e *Engine) IterationsTotal() uint64 {
	return atomic.LoadUint64(&e.iterationsTotal)
}

// Close releases the kernel streams and the advisory lock.
func (e *Engine) Close() error {
	err := e.streams.Close()
	if unlockErr := e.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}
