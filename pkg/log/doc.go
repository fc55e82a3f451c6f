// Copyright 2019 Intel Corporation. All Rights Reserved.
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

// Package log provides logging with pluggable backends and per-source
// severity and debug-message control.
//
// The available message severity levels are debug, info, warning, error,
// fatal, and panic. By default all sources produce messages of all severities and
// none produce debug messages. Logging behavior is controlled with the
// --logger, --logger-level, --logger-sources, and --logger-debug command
// line flags; see flags.go for details.
package log
