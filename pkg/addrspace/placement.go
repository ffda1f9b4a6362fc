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
	mrand "math/rand"

	"github.com/kvisor-project/kvisor/pkg/hostarch"
)

// TryAllocateRange is the generic placement entry point. It masks vaddr
// down to a page boundary and rounds size up to a page multiple, then
// dispatches to specific placement if vaddr is non-zero, or anywhere
// placement otherwise (spec.md §4.1).
func (as *AddressSpace) TryAllocateRange(vaddr hostarch.Addr, size uint64, alignment uint64) (hostarch.AddrRange, error) {
	roundedSize, err := hostarch.PageRoundUp(size)
	if err != nil {
		return hostarch.AddrRange{}, ErrOverflow
	}
	base := vaddr.RoundDown()

	as.mu.Lock()
	defer as.mu.Unlock()

	if base == 0 {
		return as.tryAllocateAnywhereLocked(roundedSize, alignment)
	}
	return as.tryAllocateSpecificLocked(base, roundedSize)
}

// TryAllocateSpecific attempts to place a range of the given size at
// exactly base (spec.md §4.1).
func (as *AddressSpace) TryAllocateSpecific(base hostarch.Addr, size uint64) (hostarch.AddrRange, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.tryAllocateSpecificLocked(base, size)
}

func (as *AddressSpace) tryAllocateSpecificLocked(base hostarch.Addr, size uint64) (hostarch.AddrRange, error) {
	if !base.IsPageAligned() || size == 0 || size%hostarch.PageSize != 0 {
		return hostarch.AddrRange{}, ErrInvalidArgument
	}

	end64 := uint64(base) + size
	if end64 < uint64(base) {
		return hostarch.AddrRange{}, ErrOverflow
	}
	requested := hostarch.AddrRange{Start: base, End: hostarch.Addr(end64)}
	if !as.totalRange.ContainsRange(requested) {
		return hostarch.AddrRange{}, ErrOutOfMemory
	}

	neighbor, ok := as.regions.findLargestNotAbove(base)
	if !ok {
		return requested, nil
	}
	if neighbor.Range().Overlaps(requested) {
		return hostarch.AddrRange{}, ErrOutOfMemory
	}

	var next *Region
	as.regions.ascendFrom(neighbor.Base()+1, func(r *Region) bool {
		next = r
		return false
	})
	if next == nil {
		return requested, nil
	}
	if next.Range().Overlaps(requested) {
		return hostarch.AddrRange{}, ErrOutOfMemory
	}
	return requested, nil
}

// TryAllocateAnywhere scans the index in ascending order for the first
// gap that fits size with alignment slack (spec.md §4.1).
func (as *AddressSpace) TryAllocateAnywhere(size uint64, alignment uint64) (hostarch.AddrRange, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.tryAllocateAnywhereLocked(size, alignment)
}

func (as *AddressSpace) tryAllocateAnywhereLocked(size uint64, alignment uint64) (hostarch.AddrRange, error) {
	if size == 0 || size%hostarch.PageSize != 0 {
		return hostarch.AddrRange{}, ErrInvalidArgument
	}
	if alignment == 0 {
		alignment = hostarch.PageSize
	}
	if size+alignment < size {
		return hostarch.AddrRange{}, ErrOverflow
	}
	requiredSlack := size + alignment

	windowStart := as.totalRange.Start
	var candidate hostarch.AddrRange
	found := false

	as.regions.ascend(func(r *Region) bool {
		if windowStart == r.Base() {
			windowStart = r.Range().End
			return true
		}
		gap := hostarch.AddrRange{Start: windowStart, End: r.Base()}
		windowStart = r.Range().End
		if gap.Size() < requiredSlack {
			return true
		}
		aligned, ok := gap.Start.AlignUp(hostarch.Addr(alignment))
		if !ok {
			return true
		}
		placed := hostarch.AddrRange{Start: aligned, End: aligned + hostarch.Addr(size)}
		if !gap.ContainsRange(placed) {
			return true
		}
		candidate = placed
		found = true
		return false
	})
	if found {
		return candidate, nil
	}

	trailing := hostarch.AddrRange{Start: windowStart, End: as.totalRange.End}
	if trailing.Size() >= requiredSlack {
		aligned, ok := trailing.Start.AlignUp(hostarch.Addr(alignment))
		if ok {
			placed := hostarch.AddrRange{Start: aligned, End: aligned + hostarch.Addr(size)}
			if trailing.ContainsRange(placed) && as.totalRange.ContainsRange(placed) {
				return placed, nil
			}
		}
	}
	return hostarch.AddrRange{}, ErrOutOfMemory
}

// TryAllocateRandomized draws up to hostarch.MaxRandomizedPlacementAttempts
// uniform addresses within total_range, rounded up to alignment, and
// delegates to specific placement; on exhaustion it falls back to
// anywhere placement (spec.md §4.1).
func (as *AddressSpace) TryAllocateRandomized(size uint64, alignment uint64) (hostarch.AddrRange, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.tryAllocateRandomizedLocked(size, alignment)
}

func (as *AddressSpace) tryAllocateRandomizedLocked(size uint64, alignment uint64) (hostarch.AddrRange, error) {
	if size == 0 || size%hostarch.PageSize != 0 {
		return hostarch.AddrRange{}, ErrInvalidArgument
	}
	if alignment == 0 {
		alignment = hostarch.PageSize
	}

	ceiling := uint64(as.totalRange.End)
	for attempt := 0; attempt < hostarch.MaxRandomizedPlacementAttempts; attempt++ {
		if ceiling == 0 {
			break
		}
		draw := hostarch.Addr(mrand.Uint64() % ceiling)
		aligned, ok := draw.AlignUp(hostarch.Addr(alignment))
		if !ok {
			continue
		}
		end64 := uint64(aligned) + size
		if end64 < uint64(aligned) {
			continue
		}
		candidate := hostarch.AddrRange{Start: aligned, End: hostarch.Addr(end64)}
		if !as.totalRange.ContainsRange(candidate) {
			continue
		}
		if result, err := as.tryAllocateSpecificLocked(aligned, size); err == nil {
			return result, nil
		}
	}
	return as.tryAllocateAnywhereLocked(size, alignment)
}
