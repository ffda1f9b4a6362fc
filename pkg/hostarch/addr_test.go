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

package hostarch

import "testing"

func TestCarveInterior(t *testing.T) {
	r := AddrRange{0x2000_0000, 0x2000_4000}
	got := r.Carve(AddrRange{0x2000_1000, 0x2000_3000})
	want := []AddrRange{
		{0x2000_0000, 0x2000_1000},
		{0x2000_3000, 0x2000_4000},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Carve got %v, want %v", got, want)
	}
}

func TestCarveWholeRange(t *testing.T) {
	r := AddrRange{0x1000, 0x2000}
	got := r.Carve(r)
	if len(got) != 0 {
		t.Fatalf("Carve(r, r) = %v, want empty", got)
	}
}

func TestCarveTouchingStart(t *testing.T) {
	r := AddrRange{0x1000, 0x3000}
	got := r.Carve(AddrRange{0x1000, 0x2000})
	want := []AddrRange{{0x2000, 0x3000}}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("Carve got %v, want %v", got, want)
	}
}

func TestExpandToPageBoundaries(t *testing.T) {
	r, err := ExpandToPageBoundaries(0x1001, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := AddrRange{0x1000, 0x2000}
	if r != want {
		t.Fatalf("got %v, want %v", r, want)
	}
}

func TestIntersectDisjoint(t *testing.T) {
	a := AddrRange{0, 0x1000}
	b := AddrRange{0x2000, 0x3000}
	got := a.Intersect(b)
	if got.Length() != 0 {
		t.Fatalf("expected empty intersection, got %v", got)
	}
}
