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

package addrspace

import (
	"sync"

	"github.com/kvisor-project/kvisor/pkg/pagetable"
	"github.com/kvisor-project/kvisor/pkg/perfevent"
)

// ManagerContext bundles the process-wide collaborators every
// AddressSpace needs but none of them owns: the global memory-manager
// lock, and the performance-event sink. Spec.md §9 calls this out
// explicitly ("pass via a narrow context object rather than as ambient
// state; each AddressSpace takes this context at construction").
type ManagerContext struct {
	// GlobalLock is the process-wide memory-manager lock, the third
	// tier of spec.md §5's lock order.
	GlobalLock sync.Locker

	// PerfEvents receives unmap perf events.
	PerfEvents perfevent.Sink
}

// DefaultManagerContext returns a ManagerContext wired to the package
// defaults: pagetable's shared global lock and a log-backed perf-event
// sink.
func DefaultManagerContext() ManagerContext {
	return ManagerContext{
		GlobalLock: pagetable.GlobalLock(),
		PerfEvents: perfevent.LogSink{},
	}
}

// finalizerToken is the unexported type backing FinalizerBadge, so that
// the badge has no exported fields.
type finalizerToken struct{}

// FinalizerBadge authorizes a call to RemoveAllRegions. Only the
// process finalizer is expected to hold one, mirroring SerenityOS's
// Badge<Process> pattern for remove_all_regions — the badge carries no
// data, it exists purely so the call site documents, in its signature,
// that it may only be invoked by the finalizer thread.
type FinalizerBadge struct {
	_ finalizerToken
}

// NewFinalizerBadge mints a FinalizerBadge. Call this only from the
// finalizer thread that tears down a process's last reference to its
// AddressSpace.
func NewFinalizerBadge() FinalizerBadge {
	return FinalizerBadge{}
}
