// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package userprog

// Main is the demo process's entry point: touch the heap once, to exercise
// the kernel's on-demand page mapping (internal/mm.UserFaultHandler) from
// the user side, then park.
func Main() {
	p := Alloc(256, 8)
	if p == nil {
		park()
	}

	park()
}

func park() {
	for {
	}
}
