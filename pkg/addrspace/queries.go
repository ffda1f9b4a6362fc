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

import "github.com/kvisor-project/kvisor/pkg/hostarch"

// FindRegionFromRange returns the region whose base equals rng.Start
// and whose size equals rng.Size() rounded up to a page multiple, or
// nil if there is none (spec.md §4.4).
func (as *AddressSpace) FindRegionFromRange(rng hostarch.AddrRange) *Region {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.findRegionFromRangeLocked(rng)
}

func (as *AddressSpace) findRegionFromRangeLocked(rng hostarch.AddrRange) *Region {
	wantSize, err := hostarch.PageRoundUp(rng.Size())
	if err != nil {
		return nil
	}
	region, ok := as.regions.find(rng.Start)
	if !ok || region.Size() != wantSize {
		return nil
	}
	return region
}

// FindRegionContaining returns the region whose range contains rng in
// its entirety, or nil if there is none (spec.md §4.4).
func (as *AddressSpace) FindRegionContaining(rng hostarch.AddrRange) *Region {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.findRegionContainingLocked(rng)
}

func (as *AddressSpace) findRegionContainingLocked(rng hostarch.AddrRange) *Region {
	region, ok := as.regions.findLargestNotAbove(rng.Start)
	if !ok || !region.Range().ContainsRange(rng) {
		return nil
	}
	return region
}

// FindRegionsIntersecting returns, in ascending base-address order,
// every region whose range overlaps rng. It starts scanning from the
// largest-not-above neighbor of rng.Start and stops at the first region
// based at or past rng.End, or earlier, once the running total of each
// collected region's size minus its overlap with rng equals rng.Size()
// (spec.md §4.4). That total counts the parts of regions lying outside
// rng, so the early stop can come before a later region that also
// overlaps rng.
func (as *AddressSpace) FindRegionsIntersecting(rng hostarch.AddrRange) []*Region {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.findRegionsIntersectingLocked(rng)
}

func (as *AddressSpace) findRegionsIntersectingLocked(rng hostarch.AddrRange) []*Region {
	var out []*Region
	var covered uint64

	start := rng.Start
	if neighbor, ok := as.regions.findLargestNotAbove(rng.Start); ok {
		start = neighbor.Base()
	}

	as.regions.ascendFrom(start, func(r *Region) bool {
		if r.Base() >= rng.End {
			return false
		}
		if !r.Range().Overlaps(rng) {
			return true
		}
		out = append(out, r)
		overlap := r.Range().Intersect(rng).Size()
		covered += r.Size() - overlap
		return covered != rng.Size()
	})
	return out
}
