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

package pagetable

import (
	"sync"

	"github.com/kvisor-project/kvisor/pkg/hostarch"
)

// entry records one page's simulated installed mapping.
type entry struct {
	access AccessFlags
}

// Simulated is an in-memory stand-in for a real hardware page directory.
// It tracks which pages are currently mapped without touching any real
// MMU state, for use in tests and by callers with no page-table driver
// wired up yet.
type Simulated struct {
	mu      sync.Mutex
	owner   any
	entries map[hostarch.Addr]entry
}

// NewSimulated creates an empty simulated page directory.
func NewSimulated() *Simulated {
	return &Simulated{entries: make(map[hostarch.Addr]entry)}
}

func (d *Simulated) SetSpace(owner any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owner = owner
}

// Owner returns the value passed to the most recent SetSpace call, for
// tests asserting the back-reference was installed.
func (d *Simulated) Owner() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owner
}

func (d *Simulated) Lock()   { d.mu.Lock() }
func (d *Simulated) Unlock() { d.mu.Unlock() }

func (d *Simulated) Map(r MappedRegion, flushTLB bool) error {
	return d.mapLocked(r)
}

func (d *Simulated) mapLocked(r MappedRegion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ar := r.MappedRange()
	for addr := ar.Start; addr < ar.End; addr += hostarch.PageSize {
		d.entries[addr] = entry{access: r.MappedAccess()}
	}
	return nil
}

func (d *Simulated) Unmap(r MappedRegion, shouldDeallocateVRange bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ar := r.MappedRange()
	for addr := ar.Start; addr < ar.End; addr += hostarch.PageSize {
		delete(d.entries, addr)
	}
	return nil
}

func (d *Simulated) UnmapWithLocksHeld(r MappedRegion, flushTLB bool) error {
	ar := r.MappedRange()
	for addr := ar.Start; addr < ar.End; addr += hostarch.PageSize {
		delete(d.entries, addr)
	}
	return nil
}

// IsMapped reports whether addr currently has a simulated mapping, for
// tests that want to assert on the Directory's observed state rather
// than just the AddressSpace's index.
func (d *Simulated) IsMapped(addr hostarch.Addr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[addr.RoundDown()]
	return ok
}

// MappedPageCount returns the number of pages currently tracked as
// mapped.
func (d *Simulated) MappedPageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
