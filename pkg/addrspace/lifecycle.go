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
	"github.com/kvisor-project/kvisor/pkg/memobj"
	"github.com/kvisor-project/kvisor/pkg/pagetable"
)

// OwnedRegion is a move-only handle to a Region that has been removed
// from its AddressSpace's index but not yet destroyed or re-indexed.
// Spec.md §9 asks for exactly this: "model [the index/free-standing
// transition] explicitly with a move-only owner type; forbid observing
// the region after hand-off." TakeRegion returns one; once Take is
// called the OwnedRegion must not be used again.
type OwnedRegion struct {
	region *Region
	moved  bool
}

// Take consumes the OwnedRegion and returns the underlying Region. It
// panics if called twice on the same OwnedRegion, the move-only
// discipline spec.md §9 calls for in place of SerenityOS's
// leak-into-raw-pointer-and-reclaim pattern.
func (o *OwnedRegion) Take() *Region {
	o.mustNotTouch()
	o.moved = true
	return o.region
}

// Region peeks at the underlying Region without consuming the owner,
// for call sites that need to inspect a just-removed region before
// deciding whether to destroy or re-adopt it.
func (o *OwnedRegion) Region() *Region {
	o.mustNotTouch()
	return o.region
}

func (o *OwnedRegion) mustNotTouch() {
	if o == nil || o.moved {
		panic("addrspace: use of OwnedRegion after it was moved out of")
	}
}

// AddRegion inserts region into the index, keyed by its base address.
// Ownership transfers into the index; the returned pointer remains
// stable until the region is removed (spec.md §4.2).
func (as *AddressSpace) AddRegion(region *Region) *Region {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.regions.insert(region)
	return region
}

// TakeRegion removes the region at base from the index and returns
// exclusive ownership to the caller. It does not unmap hardware pages.
// ok is false if no region is indexed at base (spec.md §4.2).
func (as *AddressSpace) TakeRegion(base hostarch.Addr) (OwnedRegion, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.takeRegionLocked(base)
}

func (as *AddressSpace) takeRegionLocked(base hostarch.Addr) (OwnedRegion, bool) {
	region, ok := as.regions.remove(base)
	if !ok {
		return OwnedRegion{}, false
	}
	return OwnedRegion{region: region}, true
}

// DeallocateRegion removes the region at base from the index, unmaps it
// from the page directory, and releases it. Equivalent to TakeRegion
// followed by destroying the returned owner (spec.md §4.2).
func (as *AddressSpace) DeallocateRegion(base hostarch.Addr) error {
	as.mu.Lock()
	owned, ok := as.takeRegionLocked(base)
	as.mu.Unlock()
	if !ok {
		assertf(false, "DeallocateRegion: no region indexed at base %#x", base)
		return ErrInvalidArgument
	}
	region := owned.Take()
	return region.Unmap(true)
}

// AllocateRegion allocates a fresh anonymous memory object sized to
// rng, constructs a user-accessible Region with access derived from
// prot, maps it into the page directory without flushing the TLB, and
// adds it to the index (spec.md §4.2).
func (as *AddressSpace) AllocateRegion(rng hostarch.AddrRange, name string, prot int, strategy memobj.AllocationStrategy) (*Region, error) {
	if !rng.IsPageAligned() || rng.Size() == 0 {
		return nil, ErrInvalidArgument
	}
	object, err := memobj.NewAnonymous(rng.Size(), strategy)
	if err != nil {
		return nil, err
	}
	access := pagetable.ProtToAccessFlags(prot)
	region := newRegion(rng, object, 0, name, access, true /* cacheable */, false /* shared */)
	region.SetMmap(true)

	// The hardware map call acquires the page-directory lock internally;
	// it must not be made while holding as.mu, per the lock-ordering
	// discipline (spec.md §5).
	if err := region.Map(as.dir, false); err != nil {
		return nil, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	as.regions.insert(region)
	return region, nil
}

// AllocateRegionWithVMObject is AllocateRegion's caller-supplied-object
// counterpart. offset is rounded down to a page boundary; offset+size
// must not overflow and must not exceed vmobject.Size(). If prot is
// PROT_NONE, the region is attached to the page directory for
// bookkeeping but no page-table entries are installed (spec.md §4.2).
func (as *AddressSpace) AllocateRegionWithVMObject(rng hostarch.AddrRange, object memobj.Object, offset uint64, name string, prot int, shared bool) (*Region, error) {
	if !rng.IsPageAligned() || rng.Size() == 0 {
		return nil, ErrInvalidArgument
	}
	offset = offset &^ uint64(hostarch.PageMask)

	end, overflowed := addOverflows(offset, rng.Size())
	if overflowed {
		return nil, ErrOverflow
	}
	if offset >= object.Size() || end > object.Size() {
		return nil, ErrInvalidArgument
	}

	access := pagetable.ProtToAccessFlags(prot)
	region := newRegion(rng, object, offset, name, access, true /* cacheable */, shared)
	region.SetMmap(true)

	if prot == pagetable.ProtNone {
		region.AttachWithoutMapping(as.dir)
	} else if err := region.Map(as.dir, false); err != nil {
		return nil, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	as.regions.insert(region)
	return region, nil
}

// TryAllocateSplitRegion builds a replacement Region sharing source's
// memory object over new_range at offsetInObject, carrying source's
// flags and a copy of its name, with source's COW bitmap shifted by the
// corresponding page delta. It adds the replacement to the index
// (spec.md §4.2).
func (as *AddressSpace) TryAllocateSplitRegion(source *Region, newRange hostarch.AddrRange, offsetInObject uint64) (*Region, error) {
	if !newRange.IsPageAligned() || newRange.Size() == 0 {
		return nil, ErrInvalidArgument
	}
	replacement := newRegion(newRange, source.Object(), offsetInObject, source.Name(), source.Access(), source.IsCacheable(), source.IsShared())
	replacement.SetStack(source.IsStack())
	replacement.SetMmap(source.IsMmap())
	replacement.SetSyscallRegion(source.IsSyscallRegion())

	shift := int((offsetInObject - source.OffsetInObject()) / hostarch.PageSize)
	replacement.cow = source.cow.shiftedCopy(shift, replacement.PageCount())

	as.mu.Lock()
	defer as.mu.Unlock()
	as.regions.insert(replacement)
	return replacement, nil
}

// TrySplitRegionAroundRange carves source.Range() against desired,
// yielding zero, one, or two remainders (hostarch.AddrRange.Carve), and
// for each remainder creates and indexes a replacement region at the
// correctly-offset position in source's memory object. Splitting around
// desired == source.Range() is the degenerate zero-remainder case
// (spec.md §8); splitting around a range disjoint from source.Range()
// is a caller bug and is not detected here.
func (as *AddressSpace) TrySplitRegionAroundRange(source *Region, desired hostarch.AddrRange) ([]*Region, error) {
	remainders := source.Range().Carve(desired)

	replacements := make([]*Region, 0, len(remainders))
	for _, rem := range remainders {
		delta := uint64(rem.Start - source.Range().Start)
		offset := source.OffsetInObject() + delta
		replacement, err := as.TryAllocateSplitRegion(source, rem, offset)
		if err != nil {
			return replacements, err
		}
		replacements = append(replacements, replacement)
	}
	return replacements, nil
}

// addOverflows returns a+b and whether that addition overflowed a
// uint64.
func addOverflows(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}
