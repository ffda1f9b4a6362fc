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
	"github.com/kvisor-project/kvisor/pkg/pagetable"
)

func regionAt(base hostarch.Addr, size uint64) *Region {
	return newRegion(hostarch.AddrRange{Start: base, End: base + hostarch.Addr(size)}, nil, 0, "", pagetable.Read, true, false)
}

func TestRegionIndexInsertFindRemove(t *testing.T) {
	idx := newRegionIndex()
	r := regionAt(0x1000, 0x1000)
	idx.insert(r)

	got, ok := idx.find(0x1000)
	if !ok || got != r {
		t.Fatalf("find(0x1000) = (%v, %v), want (%v, true)", got, ok, r)
	}

	removed, ok := idx.remove(0x1000)
	if !ok || removed != r {
		t.Fatalf("remove(0x1000) = (%v, %v), want (%v, true)", removed, ok, r)
	}
	if _, ok := idx.find(0x1000); ok {
		t.Fatalf("find(0x1000) after remove should fail")
	}
}

func TestRegionIndexInsertDuplicatePanics(t *testing.T) {
	idx := newRegionIndex()
	idx.insert(regionAt(0x2000, 0x1000))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate base")
		}
	}()
	idx.insert(regionAt(0x2000, 0x2000))
}

func TestRegionIndexFindLargestNotAbove(t *testing.T) {
	idx := newRegionIndex()
	idx.insert(regionAt(0x1000, 0x1000))
	idx.insert(regionAt(0x3000, 0x1000))

	got, ok := idx.findLargestNotAbove(0x2500)
	if !ok || got.Base() != 0x1000 {
		t.Fatalf("findLargestNotAbove(0x2500) base = %#x, want 0x1000", got.Base())
	}

	got, ok = idx.findLargestNotAbove(0x500)
	if ok {
		t.Fatalf("findLargestNotAbove(0x500) should find nothing, got %v", got)
	}

	got, ok = idx.findLargestNotAbove(0x3000)
	if !ok || got.Base() != 0x3000 {
		t.Fatalf("findLargestNotAbove(0x3000) base = %#x, want 0x3000 (inclusive)", got.Base())
	}
}

func TestRegionIndexAscendFromAndOrder(t *testing.T) {
	idx := newRegionIndex()
	bases := []hostarch.Addr{0x5000, 0x1000, 0x3000}
	for _, b := range bases {
		idx.insert(regionAt(b, 0x1000))
	}

	var ascending []hostarch.Addr
	idx.ascend(func(r *Region) bool {
		ascending = append(ascending, r.Base())
		return true
	})
	want := []hostarch.Addr{0x1000, 0x3000, 0x5000}
	if len(ascending) != len(want) {
		t.Fatalf("ascend order = %v, want %v", ascending, want)
	}
	for i := range want {
		if ascending[i] != want[i] {
			t.Fatalf("ascend order = %v, want %v", ascending, want)
		}
	}

	var fromThird []hostarch.Addr
	idx.ascendFrom(0x3000, func(r *Region) bool {
		fromThird = append(fromThird, r.Base())
		return true
	})
	if len(fromThird) != 2 || fromThird[0] != 0x3000 || fromThird[1] != 0x5000 {
		t.Fatalf("ascendFrom(0x3000) = %v, want [0x3000 0x5000]", fromThird)
	}
}
