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

// Package hostarch defines the virtual-address primitives shared by the
// address-space core: a page-granular address type, a half-open address
// range, and the page-size constants that bound the user address range.
package hostarch

import (
	"fmt"

	"gvisor.dev/gvisor/pkg/errors/linuxerr"
)

const (
	// PageSize is the size of a page in bytes.
	PageSize = 4096

	// PageMask is the bitmask of bits below the page boundary.
	PageMask = PageSize - 1

	// MiB is one mebibyte, used to size the ASLR window.
	MiB = 1 << 20

	// UserRangeBase is the lowest virtual address a fresh, parentless
	// AddressSpace may hand out, before the ASLR offset is applied.
	UserRangeBase Addr = 0x0000_0000

	// UserRangeCeiling is the highest virtual address (exclusive) any
	// AddressSpace in this process may use.
	UserRangeCeiling Addr = 0x8000_0000

	// ASLRWindow bounds the random offset added to UserRangeBase when a
	// root AddressSpace is created.
	ASLRWindow = 32 * MiB

	// MaxRandomizedPlacementAttempts bounds the number of random guesses
	// try_allocate_randomized makes before falling back to anywhere
	// placement.
	MaxRandomizedPlacementAttempts = 1000
)

// Addr is a virtual address.
type Addr uintptr

// PageOffset returns the offset of v within its containing page.
func (v Addr) PageOffset() Addr {
	return v & PageMask
}

// IsPageAligned returns true if v falls on a page boundary.
func (v Addr) IsPageAligned() bool {
	return v&PageMask == 0
}

// RoundDown returns v rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v &^ PageMask
}

// RoundUp returns v rounded up to the nearest page boundary. ok is false
// iff rounding up overflowed.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	addr = (v + PageMask) &^ PageMask
	return addr, addr >= v
}

// AlignUp rounds v up to the nearest multiple of align, which must be a
// power of two. ok is false iff rounding overflowed.
func (v Addr) AlignUp(align Addr) (addr Addr, ok bool) {
	addr = (v + align - 1) &^ (align - 1)
	return addr, addr >= v
}

// PageRoundUp rounds n up to the nearest page-size multiple, returning
// linuxerr.EOVERFLOW if doing so would wrap around.
func PageRoundUp(n uint64) (uint64, error) {
	rounded := (n + PageSize - 1) &^ uint64(PageMask)
	if rounded < n {
		return 0, linuxerr.EOVERFLOW
	}
	return rounded, nil
}

// AddrRange is a half-open range of virtual addresses, [Start, End).
type AddrRange struct {
	Start Addr
	End   Addr
}

// Length returns the number of bytes spanned by r.
func (r AddrRange) Length() int64 {
	return int64(r.End) - int64(r.Start)
}

// Size returns the number of bytes spanned by r as an unsigned value.
// Preconditions: r is well formed (r.End >= r.Start).
func (r AddrRange) Size() uint64 {
	return uint64(r.End - r.Start)
}

// WellFormed returns true if r.Start <= r.End.
func (r AddrRange) WellFormed() bool {
	return r.Start <= r.End
}

// IsPageAligned returns true if both endpoints of r fall on page
// boundaries.
func (r AddrRange) IsPageAligned() bool {
	return r.Start.IsPageAligned() && r.End.IsPageAligned()
}

// Contains returns true if r contains addr.
func (r AddrRange) Contains(addr Addr) bool {
	return r.Start <= addr && addr < r.End
}

// ContainsRange returns true if r fully contains other.
func (r AddrRange) ContainsRange(other AddrRange) bool {
	return other.Start >= r.Start && other.End <= r.End && other.Start <= other.End
}

// Overlaps returns true if r and other share at least one address.
func (r AddrRange) Overlaps(other AddrRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Intersect returns the intersection of r and other. If the two ranges
// do not overlap, the result is a zero-length range.
func (r AddrRange) Intersect(other AddrRange) AddrRange {
	start := r.Start
	if other.Start > start {
		start = other.Start
	}
	end := r.End
	if other.End < end {
		end = other.End
	}
	if end < start {
		end = start
	}
	return AddrRange{start, end}
}

// CanSplitAt returns true if split strictly divides r into two
// non-empty ranges.
func (r AddrRange) CanSplitAt(split Addr) bool {
	return r.Start < split && split < r.End
}

// Carve returns the sub-ranges of r that do not intersect other: zero
// entries if other fully covers r, one entry if other touches (or
// exceeds) exactly one end of r, or two entries if other is a strict
// interior sub-range of r.
//
// Preconditions: r.Overlaps(other) (callers are expected to have already
// established that other falls inside r; carving a disjoint range is a
// caller bug: the result is not clipped to r, so it yields a range that
// reaches from one of r's ends to one of other's ends, outside r).
func (r AddrRange) Carve(other AddrRange) []AddrRange {
	var out []AddrRange
	if other.Start > r.Start {
		out = append(out, AddrRange{r.Start, other.Start})
	}
	if other.End < r.End {
		out = append(out, AddrRange{other.End, r.End})
	}
	return out
}

func (r AddrRange) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End)
}

// ExpandToPageBoundaries returns the range starting at addr.RoundDown()
// and extending for at least size bytes, aligned up to the next page
// boundary. It fails with linuxerr.EOVERFLOW if doing so would wrap the
// address space.
func ExpandToPageBoundaries(addr Addr, size uint64) (AddrRange, error) {
	start := addr.RoundDown()
	end64 := uint64(addr) + size
	if end64 < uint64(addr) {
		return AddrRange{}, linuxerr.EOVERFLOW
	}
	roundedSize, err := PageRoundUp(end64 - uint64(start))
	if err != nil {
		return AddrRange{}, err
	}
	end := start + Addr(roundedSize)
	if end < start {
		return AddrRange{}, linuxerr.EOVERFLOW
	}
	return AddrRange{start, end}, nil
}
