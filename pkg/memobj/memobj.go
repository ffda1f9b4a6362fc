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

// Package memobj provides the memory-object abstraction that backs a
// Region: a reference-counted source of pages, shared by zero or more
// regions across one or more address spaces. The address-space core
// only ever reads an Object's size, kind, and dirty/resident/shared
// accounting — it never allocates or evicts physical pages itself.
package memobj

import "sync/atomic"

// Kind identifies the category of a memory object.
type Kind int

const (
	// KindAnonymous backs regular anonymous (and purgeable) memory.
	KindAnonymous Kind = iota
	// KindInode backs a file mapping.
	KindInode
)

func (k Kind) String() string {
	switch k {
	case KindAnonymous:
		return "anonymous"
	case KindInode:
		return "inode"
	default:
		return "unknown"
	}
}

// Object is the read-only surface of a memory object that the
// address-space core depends on.
type Object interface {
	// Size returns the object's size in bytes.
	Size() uint64

	// Kind returns the object's kind.
	Kind() Kind

	// IsAnonymous is a shorthand for Kind() == KindAnonymous.
	IsAnonymous() bool

	// IsInode is a shorthand for Kind() == KindInode.
	IsInode() bool

	// IsPurgeable returns true for anonymous objects that may be
	// discarded under memory pressure while volatile.
	IsPurgeable() bool

	// IsVolatile returns true if a purgeable object is currently
	// eligible for discard.
	IsVolatile() bool

	// AmountDirty returns the number of bytes with modifications not
	// yet reflected in backing storage (always 0 for anonymous memory
	// with no backing store).
	AmountDirty() uint64

	// AmountClean returns the number of bytes that mirror backing
	// storage exactly (file-backed objects only).
	AmountClean() uint64

	// AmountResident returns the number of bytes currently backed by a
	// physical page.
	AmountResident() uint64

	// AmountShared returns the number of bytes whose physical pages
	// have more than one referring region.
	AmountShared() uint64

	// IncRef and DecRef implement the object's reference count. A
	// Region holds one reference for as long as it is attached to the
	// object.
	IncRef()
	DecRef()
}

// refCounted is embedded by concrete Object implementations to provide
// a simple atomic reference count. It deliberately does nothing on the
// count reaching zero: releasing the backing pages is a physical-memory
// concern out of scope for this module (spec Non-goals).
type refCounted struct {
	refs atomic.Int64
}

func (r *refCounted) IncRef() { r.refs.Add(1) }
func (r *refCounted) DecRef() { r.refs.Add(-1) }

// RefCount returns the current reference count, for diagnostics and
// tests only.
func (r *refCounted) RefCount() int64 { return r.refs.Load() }
