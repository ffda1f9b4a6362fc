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
)

// Fork clones every region of as into a freshly created child
// AddressSpace that shares the parent's total_range and gets its page
// directory from newDirectory, marking every cloned private region
// copy-on-write on both sides. This mirrors the clone() path
// AddressSpace.cpp implements (fork walking vma-equivalent regions and
// flagging shared pages COW) that the distilled module specification
// dropped; it is supplemented here because a process-management core
// with no fork path cannot back a real process model (SPEC_FULL.md
// "Supplemented features").
func (as *AddressSpace) Fork(mctx ManagerContext, newDirectory func() (pagetable.Directory, error)) (*AddressSpace, error) {
	child, err := TryCreate(mctx, as, newDirectory)
	if err != nil {
		return nil, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	as.regions.ascend(func(r *Region) bool {
		clone := newRegion(r.Range(), r.Object(), r.OffsetInObject(), r.Name(), r.Access(), r.IsCacheable(), r.IsShared())
		clone.SetStack(r.IsStack())
		clone.SetMmap(r.IsMmap())
		clone.SetSyscallRegion(r.IsSyscallRegion())

		if !r.IsShared() {
			for p := 0; p < r.PageCount(); p++ {
				r.SetShouldCOW(p, true)
				clone.SetShouldCOW(p, true)
			}
		}

		clone.AttachWithoutMapping(child.dir)
		child.regions.insert(clone)
		return true
	})

	return child, nil
}

// PageFaultCOW services a write fault on a copy-on-write page at addr:
// it locates the containing region, clears the COW bit for that page,
// and reports whether the page must be duplicated before the write may
// proceed. The actual page copy is a physical-memory operation,
// out of scope here (spec.md §1's Non-goals); this records only the
// bookkeeping transition the fault handler needs to decide the copy is
// necessary exactly once.
func (as *AddressSpace) PageFaultCOW(addr hostarch.Addr) (region *Region, mustCopy bool, ok bool) {
	as.mu.Lock()
	defer as.mu.Unlock()

	r, found := as.regions.findLargestNotAbove(addr)
	if !found || !r.Range().Contains(addr) {
		return nil, false, false
	}
	pageIndex := int((addr - r.Base()) / hostarch.PageSize)
	if !r.ShouldCOW(pageIndex) {
		return r, false, true
	}
	r.SetShouldCOW(pageIndex, false)
	return r, true, true
}
