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

import (
	"sync"

	"gvisor.dev/gvisor/pkg/errors/linuxerr"
)

// AllocationStrategy selects how eagerly an Anonymous object's backing
// pages are committed.
type AllocationStrategy int

const (
	// Reserve commits no physical pages up front; they are allocated on
	// first fault. Fails at creation time only if the reservation
	// itself cannot be accounted for.
	Reserve AllocationStrategy = iota

	// AllocateNow eagerly commits all pages at creation time.
	AllocateNow

	// MmapBackedFile is reserved for callers that back an otherwise
	// anonymous mapping with a file (MAP_PRIVATE file mappings use this
	// to get copy-on-write semantics); the core never selects it itself.
	MmapBackedFile
)

// Anonymous is a memory object backed by ordinary (or purgeable) RAM,
// with no durable backing store.
type Anonymous struct {
	refCounted

	mu         sync.Mutex
	size       uint64
	strategy   AllocationStrategy
	resident   uint64
	shared     uint64
	purgeable  bool
	volatile   bool
}

// NewAnonymous creates an anonymous memory object of the given size.
// size must be a positive multiple of the page size; this is the
// object-allocation step of allocate_region.
func NewAnonymous(size uint64, strategy AllocationStrategy) (*Anonymous, error) {
	if size == 0 {
		return nil, linuxerr.EINVAL
	}
	a := &Anonymous{size: size, strategy: strategy}
	if strategy == AllocateNow {
		a.resident = size
	}
	return a, nil
}

// NewPurgeable creates an anonymous object eligible for MakeVolatile,
// starting non-volatile (i.e. protected from discard).
func NewPurgeable(size uint64, strategy AllocationStrategy) (*Anonymous, error) {
	a, err := NewAnonymous(size, strategy)
	if err != nil {
		return nil, err
	}
	a.purgeable = true
	return a, nil
}

func (a *Anonymous) Size() uint64 { return a.size }
func (a *Anonymous) Kind() Kind   { return KindAnonymous }
func (a *Anonymous) IsAnonymous() bool { return true }
func (a *Anonymous) IsInode() bool     { return false }

func (a *Anonymous) IsPurgeable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.purgeable
}

func (a *Anonymous) IsVolatile() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.purgeable && a.volatile
}

// MakeVolatile marks a purgeable object as eligible for discard under
// memory pressure.
func (a *Anonymous) MakeVolatile() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volatile = true
}

// MakeNonvolatile clears the volatile flag set by MakeVolatile.
func (a *Anonymous) MakeNonvolatile() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volatile = false
}

func (a *Anonymous) AmountDirty() uint64 { return 0 }
func (a *Anonymous) AmountClean() uint64 { return 0 }

func (a *Anonymous) AmountResident() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resident
}

func (a *Anonymous) AmountShared() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shared
}

// Touch marks n bytes as resident, simulating a fault-in. Out-of-scope
// physical-page allocation is not modeled beyond this counter.
func (a *Anonymous) Touch(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resident += n
	if a.resident > a.size {
		a.resident = a.size
	}
}

// SetShared overrides the shared-byte count, used by tests and by
// callers simulating a physical page shared across regions.
func (a *Anonymous) SetShared(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shared = n
}
