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

// Package addrspace implements the per-process virtual address space
// manager: the interval index over a process's virtual regions, the
// placement engine that turns allocation requests into concrete
// ranges, the region lifecycle that adds/splits/removes regions while
// coordinating with the page directory, and the accounting aggregates
// over the region set. See SPEC_FULL.md for the full module map.
package addrspace

import (
	"fmt"
	mrand "math/rand"
	"sync"

	"github.com/kvisor-project/kvisor/pkg/hostarch"
	"github.com/kvisor-project/kvisor/pkg/pagetable"
	"gvisor.dev/gvisor/pkg/log"
)

// AddressSpace is the root aggregate: one per process. It owns a page
// directory handle, a total_range bounding every legal user virtual
// address in this space, and the Interval Index of its Regions, all
// protected by a single lock (spec.md §3).
type AddressSpace struct {
	mu sync.Mutex

	dir        pagetable.Directory
	totalRange hostarch.AddrRange
	regions    *regionIndex

	mctx ManagerContext
}

// TryCreate creates a fresh AddressSpace. If parent is non-nil, the new
// space inherits parent's total_range; otherwise total_range starts at
// hostarch.UserRangeBase plus a random offset in [0, ASLRWindow) rounded
// down to a page boundary, and ends at hostarch.UserRangeCeiling
// (spec.md §3).
//
// newDirectory constructs the page directory handle; it stands in for
// PageDirectory::try_create_for_userspace, an external collaborator.
func TryCreate(mctx ManagerContext, parent *AddressSpace, newDirectory func() (pagetable.Directory, error)) (*AddressSpace, error) {
	dir, err := newDirectory()
	if err != nil {
		return nil, err
	}

	var total hostarch.AddrRange
	if parent != nil {
		parent.mu.Lock()
		total = parent.totalRange
		parent.mu.Unlock()
	} else {
		offset := hostarch.Addr(mrand.Intn(hostarch.ASLRWindow)).RoundDown()
		base := hostarch.UserRangeBase + offset
		total = hostarch.AddrRange{Start: base, End: hostarch.UserRangeCeiling}
	}

	as := &AddressSpace{
		dir:        dir,
		totalRange: total,
		regions:    newRegionIndex(),
		mctx:       mctx,
	}
	dir.SetSpace(as)
	return as, nil
}

// TotalRange returns the range of virtual addresses this space may
// place regions within.
func (as *AddressSpace) TotalRange() hostarch.AddrRange {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.totalRange
}

// Directory returns the address space's page directory handle.
func (as *AddressSpace) Directory() pagetable.Directory {
	return as.dir
}

// RegionCount returns the number of indexed regions, for diagnostics
// and tests.
func (as *AddressSpace) RegionCount() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.regions.len()
}

// assertf panics with a formatted message if cond is false. It is used
// for assertion-class conditions: removing a region that is not in the
// index, and a hardware unmap failure during teardown. Page-alignment
// violations are reported as ErrInvalidArgument instead.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		log.Warningf("addrspace: assertion failed: "+format, args...)
		panic("addrspace: assertion failed: " + fmt.Sprintf(format, args...))
	}
}
