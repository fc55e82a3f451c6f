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
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrCycleIncomplete is returned by Result when no scan cycle has ever
// completed.
var ErrCycleIncomplete = errors.New("idlemem: no scan cycle has completed yet")

// IoOp names the kernel file operation that failed.
type IoOp string

const (
	OpOpen  IoOp = "open"
	OpSeek  IoOp = "seek"
	OpRead  IoOp = "read"
	OpWrite IoOp = "write"
)

// IoError reports a failure opening, seeking, reading, or writing one of
// the kernel pseudo-files this engine drives.
type IoError struct {
	Path   string
	Op     IoOp
	Offset int64
	Length int
	Err    error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("idlemem: %s %s at offset %d (len %d): %v", e.Op, e.Path, e.Offset, e.Length, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

func newIoError(path string, op IoOp, offset int64, length int, err error) error {
	return &IoError{Path: path, Op: op, Offset: offset, Length: length, Err: pkgerrors.WithStack(err)}
}

// ConfigError reports a fatal misconfiguration: unparseable kernel metadata,
// or another engine already holding the advisory sole-writer lock.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return "idlemem: " + e.msg
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// ArgError reports a caller-supplied argument the engine rejects: a value
// out of range, or one rejected given the engine's current state (e.g.
// SetSampling called mid-cycle).
type ArgError struct {
	msg string
}

func (e *ArgError) Error() string {
	return "idlemem: " + e.msg
}

func argErrorf(format string, args ...interface{}) error {
	return &ArgError{msg: fmt.Sprintf(format, args...)}
}
