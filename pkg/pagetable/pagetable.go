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

// Package pagetable defines the hardware page-table interface the
// address-space core delegates to. The core never touches a PTE
// directly: it calls Map/Unmap and holds the directory's lock around
// the handful of operations spec.md documents (remove_all_regions), and
// nothing else. TLB shootdown, the actual PTE encoding, and physical
// page installation are all out of scope here — this package supplies
// only the interface and an in-memory simulation for testing, in the
// same spirit as gvisor's test-only platform.AddressSpace fakes.
package pagetable

import (
	"sync"

	"github.com/kvisor-project/kvisor/pkg/hostarch"
	"github.com/kvisor-project/kvisor/pkg/memobj"
)

// AccessFlags mirrors POSIX protection bits translated to hardware
// access flags (R/W/X).
type AccessFlags uint8

const (
	Read AccessFlags = 1 << iota
	Write
	Execute
)

// MappedRegion is the minimal view of a Region a Directory needs in
// order to install or remove page-table entries. It exists so this
// package does not need to import addrspace (which imports this
// package), matching spec.md's instruction to keep the page directory
// an external collaborator reached only through map/unmap.
type MappedRegion interface {
	MappedRange() hostarch.AddrRange
	MappedAccess() AccessFlags
	MappedObject() memobj.Object
	MappedOffset() uint64
}

// Directory is the per-address-space hardware page-table root.
type Directory interface {
	// SetSpace installs a back-reference to the owning address space.
	// Per spec.md §9, implementations must keep this non-owning: the
	// AddressSpace owns its Directory, never the reverse.
	SetSpace(owner any)

	// Lock and Unlock guard the directory's own internal state,
	// distinct from the address space's lock (spec.md §5).
	Lock()
	Unlock()

	// Map installs page-table entries for r. If flushTLB is false, the
	// caller is responsible for any later TLB invalidation (out of
	// scope for this module).
	Map(r MappedRegion, flushTLB bool) error

	// Unmap removes page-table entries for r. If shouldDeallocateVRange
	// is false, the virtual range remains reserved (the caller intends
	// to immediately re-map a replacement region over it, as in the
	// unmap engine's split path).
	Unmap(r MappedRegion, shouldDeallocateVRange bool) error

	// UnmapWithLocksHeld is equivalent to Unmap, but documents that the
	// caller already holds both this directory's lock and the global
	// memory-manager lock (spec.md §4.5, remove_all_regions).
	UnmapWithLocksHeld(r MappedRegion, flushTLB bool) error
}

// POSIX protection bits, as passed to mmap/mprotect.
const (
	ProtNone  = 0
	ProtRead  = 1 << 0
	ProtWrite = 1 << 1
	ProtExec  = 1 << 2
)

// ProtToAccessFlags converts POSIX protection bits to AccessFlags.
func ProtToAccessFlags(prot int) AccessFlags {
	var flags AccessFlags
	if prot&ProtRead != 0 {
		flags |= Read
	}
	if prot&ProtWrite != 0 {
		flags |= Write
	}
	if prot&ProtExec != 0 {
		flags |= Execute
	}
	return flags
}

// globalLock is the process-wide memory-manager lock, the third tier in
// spec.md §5's lock-ordering discipline (AddressSpace lock →
// page-directory lock → global memory-manager lock).
var globalLock sync.Mutex

// GlobalLock returns the process-wide memory-manager lock.
// remove_all_regions acquires it last, after the address-space lock and
// the page-directory lock, per spec.md §5.
func GlobalLock() sync.Locker {
	return &globalLock
}
