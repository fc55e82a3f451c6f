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

package log

import (
	"fmt"
	"sync"
)

// logState is the run-time registry of known loggers and their configuration.
type logState struct {
	sync.RWMutex
	level   Level                // globally lowest unsuppressed severity
	active  Backend              // currently active backend
	forced  bool                 // force debugging for every source
	backend map[string]BackendFn // registered backend constructors
	configs map[logger]config    // per-logger enable/debug bits
	sources map[logger]string    // logger id to source name
	byname  map[string]logger    // source name to logger id
	next    logger               // next unassigned logger id
}

var log = &logState{
	level:   DefaultLevel,
	backend: make(map[string]BackendFn),
	configs: make(map[logger]config),
	sources: make(map[logger]string),
	byname:  make(map[string]logger),
}

// loggerError formats an error local to this package.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("log: "+format, args...)
}

// get returns the logger id for source, creating a new one if necessary.
// Must be called without holding log's lock.
func (s *logState) get(source string) logger {
	s.Lock()
	defer s.Unlock()

	if id, ok := s.byname[source]; ok {
		return id
	}

	if s.next >= maxLoggers {
		panic("log: too many distinct logging sources")
	}

	id := s.next
	s.next++

	s.byname[source] = id
	s.sources[id] = source
	s.configs[id] = mkConfig(id, defaults.Enable.enabled(source), defaults.Debug.enabled(source))

	return id
}

// update refreshes the enable/debug state of every known logger from srcmaps.
// Must be called with log's lock held.
func (s *logState) update(enable, debug srcmap) {
	if enable != nil {
		defaults.Enable = enable
	}
	if debug != nil {
		defaults.Debug = debug
	}

	for id, source := range s.sources {
		cfg := s.configs[id]
		cfg.setEnabled(defaults.Enable.enabled(source), defaults.Debug.enabled(source))
		s.configs[id] = cfg
	}
}

// enabled looks up the effective state for source in a srcmap, honoring the
// wildcard entry.
func (m srcmap) enabled(source string) bool {
	if state, ok := m[source]; ok {
		return state
	}
	if state, ok := m["*"]; ok {
		return state
	}
	return false
}

// SetLevel sets the globally lowest unsuppressed logging severity.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()

	log.level = level
	defaults.Level = level
}

// SetBackend activates the named, previously registered logging backend.
func SetBackend(name string) error {
	log.Lock()

	fn, ok := log.backend[name]
	if !ok {
		log.Unlock()
		return loggerError("unknown logging backend %q", name)
	}

	if log.active != nil {
		log.active.Stop()
	}
	log.active = fn()
	log.active.SetSourceAlignment(srcalign(log.sources))

	log.Unlock()

	log.active.Log(LevelInfo, "log", "activated logging backend %q", name)

	return nil
}

// forceDebug toggles forced debugging for every logger, regardless of its
// individual debug setting.
func (s *logState) forceDebug(force bool) {
	s.Lock()
	defer s.Unlock()
	s.forced = force
}

// debugForced reports whether debugging is currently forced for every logger.
func (s *logState) debugForced() bool {
	s.RLock()
	defer s.RUnlock()
	return s.forced
}

// srcalign returns the length of the longest known source name.
func srcalign(sources map[logger]string) int {
	longest := 0
	for _, source := range sources {
		if len(source) > longest {
			longest = len(source)
		}
	}
	return longest
}

// NewLogger creates or looks up the Logger for the given source.
func NewLogger(source string) Logger {
	return log.get(source)
}

// Get is an alias for NewLogger, kept for callers that prefer that name.
func Get(source string) Logger {
	return NewLogger(source)
}

func init() {
	log.active = createFmtBackend()
}
