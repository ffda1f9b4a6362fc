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

// Package procfs renders an AddressSpace's regions in the textual
// layout a kernel's /proc/[pid]/maps (or SerenityOS's ProcFS vm entry)
// exposes to user space. Spec.md scopes procfs rendering out of the
// core (it is syscall/VFS glue), but SPEC_FULL.md supplements it as a
// thin read-only consumer of AddressSpace.Regions, the same shape the
// teacher's own /proc renderers take over its segment sets.
package procfs

import (
	"fmt"
	"strings"

	"github.com/kvisor-project/kvisor/pkg/addrspace"
	"github.com/kvisor-project/kvisor/pkg/pagetable"
)

// RenderMaps renders every region of as in ascending base-address
// order, one line per region, in the conventional
// "start-end perms name" layout; no offset column is printed.
func RenderMaps(as *addrspace.AddressSpace) string {
	var b strings.Builder
	for _, r := range as.Regions() {
		fmt.Fprintf(&b, "%016x-%016x %s %s\n",
			r.Range.Start, r.Range.End, permString(r), nameOrAnonymous(r))
	}
	return b.String()
}

func permString(r addrspace.RegionInfo) string {
	perm := func(flag pagetable.AccessFlags, ch byte) byte {
		if r.Access&flag != 0 {
			return ch
		}
		return '-'
	}
	out := []byte{
		perm(pagetable.Read, 'r'),
		perm(pagetable.Write, 'w'),
		perm(pagetable.Execute, 'x'),
		'-',
	}
	if r.Shared {
		out[3] = 's'
	} else {
		out[3] = 'p'
	}
	return string(out)
}

func nameOrAnonymous(r addrspace.RegionInfo) string {
	if r.Name != "" {
		return r.Name
	}
	switch {
	case r.Stack:
		return "[stack]"
	case r.Mmap:
		return "[anon_mmap]"
	default:
		return "[anon]"
	}
}
