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

// RemoveAllRegions tears down every region in the address space. It
// must be invoked only by the process finalizer thread; the required
// FinalizerBadge documents that at the call site but does not enforce
// it.
//
// It acquires, in order, the address-space lock, the page-directory
// lock, and the global memory-manager lock — the one call site in this
// module that holds all three simultaneously (spec.md §5) — unmaps
// every region with locks held, without releasing virtual ranges and
// without flushing TLBs, then deletes every region from the index.
func (as *AddressSpace) RemoveAllRegions(_ FinalizerBadge) {
	as.mu.Lock()
	defer as.mu.Unlock()

	as.dir.Lock()
	as.mctx.GlobalLock.Lock()

	as.regions.ascend(func(r *Region) bool {
		if err := r.UnmapWithLocksHeld(false); err != nil {
			// Per spec.md §7, hardware unmap failures during teardown
			// are assertion-class: there is no remaining caller to
			// report them to and no safe partial-teardown state.
			assertf(false, "RemoveAllRegions: UnmapWithLocksHeld(%s) failed: %v", r.Range(), err)
		}
		return true
	})

	as.mctx.GlobalLock.Unlock()
	as.dir.Unlock()

	as.deleteAllRegionsAssumingTheyAreUnmapped()
}

// deleteAllRegionsAssumingTheyAreUnmapped repeatedly removes the first
// indexed region and discards it. Callers must already have unmapped
// every region from hardware (spec.md §4.5).
func (as *AddressSpace) deleteAllRegionsAssumingTheyAreUnmapped() {
	for {
		first, ok := as.regions.first()
		if !ok {
			return
		}
		as.regions.remove(first.Base())
	}
}
