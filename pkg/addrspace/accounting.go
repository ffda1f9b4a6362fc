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

import "github.com/kvisor-project/kvisor/pkg/memobj"

// AmountVirtual returns the sum of every indexed region's size
// (spec.md §4.6).
func (as *AddressSpace) AmountVirtual() uint64 {
	as.mu.Lock()
	defer as.mu.Unlock()
	var total uint64
	as.regions.ascend(func(r *Region) bool {
		total += r.Size()
		return true
	})
	return total
}

// AmountResident returns the sum of every region's AmountResident. This
// may double-count physical pages backing more than one region over
// the same memory object — documented imprecision, not a bug (spec.md
// §4.6, §9).
func (as *AddressSpace) AmountResident() uint64 {
	as.mu.Lock()
	defer as.mu.Unlock()
	var total uint64
	as.regions.ascend(func(r *Region) bool {
		total += r.AmountResident()
		return true
	})
	return total
}

// AmountShared returns the sum of every region's AmountShared, with the
// same double-counting caveat as AmountResident.
func (as *AddressSpace) AmountShared() uint64 {
	as.mu.Lock()
	defer as.mu.Unlock()
	var total uint64
	as.regions.ascend(func(r *Region) bool {
		total += r.AmountShared()
		return true
	})
	return total
}

// AmountDirtyPrivate returns the sum of AmountDirty over every
// non-shared region.
func (as *AddressSpace) AmountDirtyPrivate() uint64 {
	as.mu.Lock()
	defer as.mu.Unlock()
	var total uint64
	as.regions.ascend(func(r *Region) bool {
		if !r.IsShared() {
			total += r.AmountDirty()
		}
		return true
	})
	return total
}

// AmountCleanInode deduplicates file-backed memory objects referenced
// by any indexed region into a set, then sums AmountClean across the
// distinct objects (spec.md §4.6).
func (as *AddressSpace) AmountCleanInode() uint64 {
	as.mu.Lock()
	defer as.mu.Unlock()
	seen := make(map[memobj.Object]struct{})
	var total uint64
	as.regions.ascend(func(r *Region) bool {
		obj := r.Object()
		if obj == nil || !obj.IsInode() {
			return true
		}
		if _, ok := seen[obj]; ok {
			return true
		}
		seen[obj] = struct{}{}
		total += obj.AmountClean()
		return true
	})
	return total
}

// AmountPurgeableVolatile sums AmountResident over regions whose memory
// object is anonymous, purgeable, and currently volatile.
func (as *AddressSpace) AmountPurgeableVolatile() uint64 {
	return as.amountPurgeable(true)
}

// AmountPurgeableNonvolatile sums AmountResident over regions whose
// memory object is anonymous, purgeable, and currently non-volatile.
func (as *AddressSpace) AmountPurgeableNonvolatile() uint64 {
	return as.amountPurgeable(false)
}

func (as *AddressSpace) amountPurgeable(volatile bool) uint64 {
	as.mu.Lock()
	defer as.mu.Unlock()
	var total uint64
	as.regions.ascend(func(r *Region) bool {
		obj := r.Object()
		if obj == nil || !obj.IsAnonymous() || !obj.IsPurgeable() {
			return true
		}
		if obj.IsVolatile() == volatile {
			total += r.AmountResident()
		}
		return true
	})
	return total
}
