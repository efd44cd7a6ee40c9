// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package proc

import "unsafe"

// identityPointerFn reinterprets a physical address as a Go pointer. Valid
// only before a process's own translation table is active, while the
// kernel's identity mapping still covers all of physical RAM. Tests replace
// it with a fake backed by ordinary Go-heap memory, since a hosted test
// binary has no real physical address space to dereference.
var identityPointerFn = func(phys uintptr) unsafe.Pointer {
	return unsafe.Pointer(phys)
}
