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
	"testing"

	"github.com/kvisor-project/kvisor/pkg/hostarch"
	"github.com/kvisor-project/kvisor/pkg/memobj"
	"github.com/kvisor-project/kvisor/pkg/pagetable"
)

func newTestSpace(t *testing.T) (*AddressSpace, *pagetable.Simulated) {
	t.Helper()
	dir := pagetable.NewSimulated()
	as, err := TryCreate(DefaultManagerContext(), nil, func() (pagetable.Directory, error) {
		return dir, nil
	})
	if err != nil {
		t.Fatalf("TryCreate: %v", err)
	}
	return as, dir
}

// Scenario 1 (spec.md §8): fresh space, anywhere allocation of 8192
// bytes aligned to 4096 lands within the first ASLR-offset page, is
// page aligned, and is 8192 bytes long.
func TestScenario1FreshSpaceAllocateAnywhere(t *testing.T) {
	as, _ := newTestSpace(t)

	rng, err := as.TryAllocateAnywhere(8192, 4096)
	if err != nil {
		t.Fatalf("TryAllocateAnywhere: %v", err)
	}
	total := as.TotalRange()
	if rng.Start < total.Start || rng.Start > total.Start+4096 {
		t.Fatalf("base %#x not within [%#x, %#x]", rng.Start, total.Start, total.Start+4096)
	}
	if !rng.Start.IsPageAligned() {
		t.Fatalf("base %#x not page aligned", rng.Start)
	}
	if rng.Size() != 8192 {
		t.Fatalf("size = %d, want 8192", rng.Size())
	}
}

// Scenario 2: specific allocation at 0x1000_0000 size 0x2000 succeeds;
// an overlapping specific allocation at 0x1000_1000 size 0x1000 fails
// out of memory.
func TestScenario2SpecificOverlapRejected(t *testing.T) {
	as, _ := newTestSpace(t)

	first, err := as.TryAllocateSpecific(0x1000_0000, 0x2000)
	if err != nil {
		t.Fatalf("first TryAllocateSpecific: %v", err)
	}
	as.AddRegion(newRegion(first, nil, 0, "", pagetable.Read, true, false))

	_, err = as.TryAllocateSpecific(0x1000_1000, 0x1000)
	if err != ErrOutOfMemory {
		t.Fatalf("overlapping TryAllocateSpecific: got %v, want ErrOutOfMemory", err)
	}
}

// Scenario 5: unmapping a non-mmap region fails with operation not
// permitted, and the region is still present afterward.
func TestScenario5UnmapNonMmapRejected(t *testing.T) {
	as, dir := newTestSpace(t)
	_ = dir

	rng := hostarch.AddrRange{Start: 0x4000_0000, End: 0x4000_1000}
	region, err := as.AllocateRegionWithVMObject(rng, mustAnon(t, 0x1000), 0, "", pagetable.ProtRead, false)
	if err != nil {
		t.Fatalf("AllocateRegionWithVMObject: %v", err)
	}
	region.SetMmap(false)

	err = as.UnmapMmapRange(testProc(), rng.Start, rng.Size())
	if err != ErrNotPermitted {
		t.Fatalf("UnmapMmapRange: got %v, want ErrNotPermitted", err)
	}
	if got := as.FindRegionFromRange(rng); got == nil {
		t.Fatalf("region at %s should still be present", rng)
	}
}

// Scenario 6: exact-match unmap of an mmap region removes it and
// decreases amount_virtual accordingly.
func TestScenario6ExactUnmapRemovesRegion(t *testing.T) {
	as, _ := newTestSpace(t)

	rng := hostarch.AddrRange{Start: 0x5000_0000, End: 0x5000_2000}
	region, err := as.AllocateRegion(rng, "", pagetable.ProtRead|pagetable.ProtWrite, memobj.AllocateNow)
	if err != nil {
		t.Fatalf("AllocateRegion: %v", err)
	}
	before := as.AmountVirtual()

	_ = region
	if err := as.UnmapMmapRange(testProc(), rng.Start, rng.Size()); err != nil {
		t.Fatalf("UnmapMmapRange: %v", err)
	}
	if got := as.FindRegionFromRange(rng); got != nil {
		t.Fatalf("region at %s should be gone", rng)
	}
	if after := as.AmountVirtual(); before-after != rng.Size() {
		t.Fatalf("amount_virtual dropped by %d, want %d", before-after, rng.Size())
	}
}
