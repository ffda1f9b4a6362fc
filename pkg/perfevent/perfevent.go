// Copyright 2026 The Kvisor Authors.
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

// Package perfevent defines the performance-event sink the unmap engine
// reports to, standing in for SerenityOS's PerformanceManager. It is an
// injected dependency (spec.md §1): the address-space core only ever
// calls Sink.AddUnmapPerfEvent, never decides how the event is
// delivered.
package perfevent

import (
	"github.com/kvisor-project/kvisor/pkg/hostarch"
	"gvisor.dev/gvisor/pkg/log"
)

// ProcessBadge identifies the process an event is attributed to. It is
// deliberately opaque: process identity and lifetime are owned by the
// process/scheduler subsystem, out of scope here (spec.md §1).
type ProcessBadge struct {
	PID  int32
	Name string
}

// Sink receives performance events emitted by the address-space core.
type Sink interface {
	// AddUnmapPerfEvent reports that r was unmapped from proc's address
	// space.
	AddUnmapPerfEvent(proc ProcessBadge, r hostarch.AddrRange)
}

// LogSink emits perf events as structured log lines via
// gvisor.dev/gvisor/pkg/log, the teacher's own logging package. This is
// the default Sink when no external performance-event pipe is attached,
// matching how PerformanceManager itself ultimately falls back to
// dbgln-style tracing when no profiling session is active.
type LogSink struct{}

func (LogSink) AddUnmapPerfEvent(proc ProcessBadge, r hostarch.AddrRange) {
	log.Debugf("perfevent: unmap pid=%d comm=%q range=%s", proc.PID, proc.Name, r)
}

// NoopSink discards every event; useful in tests that don't care about
// the perf-event side channel.
type NoopSink struct{}

func (NoopSink) AddUnmapPerfEvent(proc ProcessBadge, r hostarch.AddrRange) {}

// RecordingSink accumulates events in memory, for tests that assert on
// exactly what was emitted.
type RecordingSink struct {
	Events []UnmapEvent
}

// UnmapEvent is one event recorded by RecordingSink.
type UnmapEvent struct {
	Proc  ProcessBadge
	Range hostarch.AddrRange
}

func (s *RecordingSink) AddUnmapPerfEvent(proc ProcessBadge, r hostarch.AddrRange) {
	s.Events = append(s.Events, UnmapEvent{Proc: proc, Range: r})
}
