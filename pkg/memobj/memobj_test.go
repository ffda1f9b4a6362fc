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

package memobj

import "testing"

func TestNewAnonymousZeroSizeRejected(t *testing.T) {
	if _, err := NewAnonymous(0, Reserve); err == nil {
		t.Fatal("expected error for zero-size object")
	}
}

func TestAnonymousAllocateNowIsFullyResident(t *testing.T) {
	a, err := NewAnonymous(8192, AllocateNow)
	if err != nil {
		t.Fatalf("NewAnonymous: %v", err)
	}
	if got := a.AmountResident(); got != 8192 {
		t.Fatalf("AmountResident() = %d, want 8192", got)
	}
}

func TestPurgeableVolatileToggle(t *testing.T) {
	a, err := NewPurgeable(4096, Reserve)
	if err != nil {
		t.Fatalf("NewPurgeable: %v", err)
	}
	if a.IsVolatile() {
		t.Fatal("fresh purgeable object should not be volatile")
	}
	a.MakeVolatile()
	if !a.IsVolatile() {
		t.Fatal("expected volatile after MakeVolatile")
	}
	a.MakeNonvolatile()
	if a.IsVolatile() {
		t.Fatal("expected non-volatile after MakeNonvolatile")
	}
}

func TestInodeDirtyCleanTransfer(t *testing.T) {
	n := NewInode("file.txt", 4096)
	n.MarkDirty(4096)
	if got := n.AmountDirty(); got != 4096 {
		t.Fatalf("AmountDirty() = %d, want 4096", got)
	}
	n.MarkClean(4096)
	if got := n.AmountDirty(); got != 0 {
		t.Fatalf("AmountDirty() = %d, want 0", got)
	}
	if got := n.AmountClean(); got != 4096 {
		t.Fatalf("AmountClean() = %d, want 4096", got)
	}
}
