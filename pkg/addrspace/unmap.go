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
	"github.com/kvisor-project/kvisor/pkg/perfevent"
)

// UnmapMmapRange implements the three cases of the unmap engine: exact
// match, proper containment with split, and multi-region intersection
// with an all-or-nothing mmap check (spec.md §4.3).
//
// Index mutations (take_region, the re-adds performed by splitting)
// happen inside as.mu; the hardware map/unmap calls that follow happen
// after releasing it, so the address-space lock is never held while
// calling into the page directory (spec.md §5).
//
// On failure midway through the proper-containment or multi-region
// case, after at least one split has already succeeded, this leaves the
// space with some regions gone, their replacements unmapped, and
// mapping of the rest possibly still failing. Spec.md §9 documents this
// as an open question and explicitly permits preserving it rather than
// adding rollback; this implementation preserves it.
func (as *AddressSpace) UnmapMmapRange(proc perfevent.ProcessBadge, addr hostarch.Addr, size uint64) error {
	if size == 0 {
		return ErrInvalidArgument
	}
	expanded, err := hostarch.ExpandToPageBoundaries(addr, size)
	if err != nil {
		return ErrOverflow
	}

	as.mu.Lock()
	if !as.totalRange.ContainsRange(expanded) {
		as.mu.Unlock()
		return ErrBadAddress
	}

	// Case 1: exact match.
	if exact := as.findRegionFromRangeLocked(expanded); exact != nil {
		if !exact.IsMmap() {
			as.mu.Unlock()
			return ErrNotPermitted
		}
		as.mu.Unlock()
		as.mctx.PerfEvents.AddUnmapPerfEvent(proc, expanded)
		return as.DeallocateRegion(exact.Base())
	}

	// Case 2: proper containment by a single region.
	if container := as.findRegionContainingLocked(expanded); container != nil {
		if !container.IsMmap() {
			as.mu.Unlock()
			return ErrNotPermitted
		}
		owned, ok := as.takeRegionLocked(container.Base())
		as.mu.Unlock()
		assertf(ok, "UnmapMmapRange: containing region at %#x vanished", container.Base())
		region := owned.Take()

		if err := region.Unmap(false); err != nil {
			return err
		}
		replacements, err := as.TrySplitRegionAroundRange(region, expanded)
		if err != nil {
			return err
		}
		for _, r := range replacements {
			if err := r.Map(as.dir, false); err != nil {
				return err
			}
		}
		as.mctx.PerfEvents.AddUnmapPerfEvent(proc, expanded)
		return nil
	}

	// Case 3: multi-region intersection.
	intersecting := as.findRegionsIntersectingLocked(expanded)
	if len(intersecting) == 0 {
		as.mu.Unlock()
		return nil
	}
	for _, r := range intersecting {
		if !r.IsMmap() {
			as.mu.Unlock()
			return ErrNotPermitted
		}
	}

	type pending struct {
		region      *Region
		fullyCovered bool
	}
	work := make([]pending, 0, len(intersecting))
	for _, r := range intersecting {
		fullyCovered := expanded.ContainsRange(r.Range())
		owned, ok := as.takeRegionLocked(r.Base())
		assertf(ok, "UnmapMmapRange: intersecting region at %#x vanished", r.Base())
		work = append(work, pending{region: owned.Take(), fullyCovered: fullyCovered})
	}
	as.mu.Unlock()

	var replacements []*Region
	for _, w := range work {
		if w.fullyCovered {
			if err := w.region.Unmap(true); err != nil {
				return err
			}
			continue
		}
		if err := w.region.Unmap(false); err != nil {
			return err
		}
		split, err := as.TrySplitRegionAroundRange(w.region, expanded)
		if err != nil {
			return err
		}
		replacements = append(replacements, split...)
	}
	for _, r := range replacements {
		if err := r.Map(as.dir, false); err != nil {
			return err
		}
	}
	as.mctx.PerfEvents.AddUnmapPerfEvent(proc, expanded)
	return nil
}
