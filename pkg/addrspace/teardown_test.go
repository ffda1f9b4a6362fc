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

func TestRemoveAllRegionsUnmapsAndClearsIndex(t *testing.T) {
	as, dir := newTestSpace(t)

	rng := hostarch.AddrRange{Start: 0x1600_0000, End: 0x1600_2000}
	if _, err := as.AllocateRegion(rng, "", pagetable.ProtRead|pagetable.ProtWrite, memobj.AllocateNow); err != nil {
		t.Fatalf("AllocateRegion: %v", err)
	}
	if dir.MappedPageCount() == 0 {
		t.Fatalf("expected pages mapped before teardown")
	}

	as.RemoveAllRegions(NewFinalizerBadge())

	if got := as.RegionCount(); got != 0 {
		t.Fatalf("RegionCount() after RemoveAllRegions = %d, want 0", got)
	}
	if got := dir.MappedPageCount(); got != 0 {
		t.Fatalf("MappedPageCount() after RemoveAllRegions = %d, want 0", got)
	}
}

func TestRemoveAllRegionsOnEmptySpace(t *testing.T) {
	as, _ := newTestSpace(t)
	as.RemoveAllRegions(NewFinalizerBadge())
	if got := as.RegionCount(); got != 0 {
		t.Fatalf("RegionCount() = %d, want 0", got)
	}
}
