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
	"github.com/kvisor-project/kvisor/pkg/perfevent"
)

func mustAnon(t *testing.T, size uint64) *memobj.Anonymous {
	t.Helper()
	obj, err := memobj.NewAnonymous(size, memobj.AllocateNow)
	if err != nil {
		t.Fatalf("NewAnonymous(%d): %v", size, err)
	}
	return obj
}

func testProc() perfevent.ProcessBadge {
	return perfevent.ProcessBadge{PID: 1, Name: "test"}
}

func TestTryCreateRootASLROffsetWithinWindow(t *testing.T) {
	as, _ := newTestSpace(t)
	total := as.TotalRange()
	if total.Start < hostarch.UserRangeBase || total.Start >= hostarch.UserRangeBase+hostarch.ASLRWindow {
		t.Fatalf("root total_range.Start = %#x, want within [%#x, %#x)", total.Start, hostarch.UserRangeBase, hostarch.UserRangeBase+hostarch.ASLRWindow)
	}
	if !total.Start.IsPageAligned() {
		t.Fatalf("root total_range.Start = %#x, not page aligned", total.Start)
	}
	if total.End != hostarch.UserRangeCeiling {
		t.Fatalf("root total_range.End = %#x, want %#x", total.End, hostarch.UserRangeCeiling)
	}
}

func TestTryCreateChildInheritsParentTotalRange(t *testing.T) {
	parent, _ := newTestSpace(t)
	child, err := TryCreate(DefaultManagerContext(), parent, func() (pagetable.Directory, error) {
		return pagetable.NewSimulated(), nil
	})
	if err != nil {
		t.Fatalf("TryCreate(child): %v", err)
	}
	if child.TotalRange() != parent.TotalRange() {
		t.Fatalf("child.TotalRange() = %s, want %s", child.TotalRange(), parent.TotalRange())
	}
}

func TestAllocateRegionThenDeallocateRestoresAmountVirtual(t *testing.T) {
	as, _ := newTestSpace(t)
	before := as.AmountVirtual()

	rng := hostarch.AddrRange{Start: 0x1234_0000, End: 0x1234_0000 + 3*hostarch.PageSize}
	region, err := as.AllocateRegion(rng, "heap", 0, memobj.Reserve)
	if err != nil {
		t.Fatalf("AllocateRegion: %v", err)
	}
	if err := as.DeallocateRegion(region.Base()); err != nil {
		t.Fatalf("DeallocateRegion: %v", err)
	}
	if after := as.AmountVirtual(); after != before {
		t.Fatalf("amount_virtual = %d after round trip, want %d", after, before)
	}
}

func TestIndexedRegionsAreDisjoint(t *testing.T) {
	as, _ := newTestSpace(t)
	if _, err := as.AllocateRegion(hostarch.AddrRange{Start: 0x2000_0000, End: 0x2000_1000}, "", 0, memobj.Reserve); err != nil {
		t.Fatalf("AllocateRegion #1: %v", err)
	}
	if _, err := as.AllocateRegion(hostarch.AddrRange{Start: 0x2000_1000, End: 0x2000_2000}, "", 0, memobj.Reserve); err != nil {
		t.Fatalf("AllocateRegion #2: %v", err)
	}

	var ranges []hostarch.AddrRange
	as.mu.Lock()
	as.regions.ascend(func(r *Region) bool {
		ranges = append(ranges, r.Range())
		return true
	})
	as.mu.Unlock()

	for i := range ranges {
		for j := range ranges {
			if i == j {
				continue
			}
			if ranges[i].Overlaps(ranges[j]) {
				t.Fatalf("ranges[%d]=%s overlaps ranges[%d]=%s", i, ranges[i], j, ranges[j])
			}
		}
	}
}
