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
	"github.com/kvisor-project/kvisor/pkg/hostarch"
	"github.com/kvisor-project/kvisor/pkg/pagetable"
	"gvisor.dev/gvisor/pkg/log"
)

// RegionInfo is a read-only snapshot of one region, returned by Regions
// for callers (procfs, debuggers) that should not retain a reference to
// the live Region.
type RegionInfo struct {
	Range  hostarch.AddrRange
	Access pagetable.AccessFlags
	Shared bool
	Stack  bool
	Mmap   bool
	Name   string
}

// Regions returns a snapshot of every indexed region, in ascending
// base-address order.
func (as *AddressSpace) Regions() []RegionInfo {
	as.mu.Lock()
	defer as.mu.Unlock()
	out := make([]RegionInfo, 0, as.regions.len())
	as.regions.ascend(func(r *Region) bool {
		out = append(out, RegionInfo{
			Range:  r.Range(),
			Access: r.Access(),
			Shared: r.IsShared(),
			Stack:  r.IsStack(),
			Mmap:   r.IsMmap(),
			Name:   r.Name(),
		})
		return true
	})
	return out
}

// DumpRegions logs one line per indexed region, in the BEGIN/END/SIZE/
// ACCESS/NAME layout the kernel's own /proc/self/vm dump uses.
func (as *AddressSpace) DumpRegions() {
	as.mu.Lock()
	defer as.mu.Unlock()
	log.Infof("addrspace: %d regions, total_range=%s", as.regions.len(), as.totalRange)
	as.regions.ascend(func(r *Region) bool {
		log.Infof("  %016x %016x %10d %v %q", r.Base(), r.Range().End, r.Size(), r.Access(), r.Name())
		return true
	})
}
