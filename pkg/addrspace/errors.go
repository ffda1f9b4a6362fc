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

import "gvisor.dev/gvisor/pkg/errors/linuxerr"

// The address-space core never constructs ad hoc errors: every fallible
// path returns one of these five sentinels, verbatim from spec.md §7.
var (
	// ErrInvalidArgument is returned for a zero size, an offset past the
	// end of a memory object, or an end-in-object past the object size.
	ErrInvalidArgument = linuxerr.EINVAL

	// ErrBadAddress is returned when an unmap range is not contained in
	// the user range.
	ErrBadAddress = linuxerr.EFAULT

	// ErrNotPermitted is returned when an unmap targets a region not
	// marked mmap.
	ErrNotPermitted = linuxerr.EPERM

	// ErrOutOfMemory is returned when no gap satisfies placement, an
	// index insert fails, or object allocation fails.
	ErrOutOfMemory = linuxerr.ENOMEM

	// ErrOverflow is returned when size+alignment, or offset arithmetic,
	// would wrap.
	ErrOverflow = linuxerr.EOVERFLOW
)
