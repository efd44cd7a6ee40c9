// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mm

import "unsafe"

// newAlignedPage returns a PageSize-aligned, PageSize-long byte slice backed
// by the Go heap. Table nodes need page alignment for the hardware walker
// but are far too small and short-lived to come from the physical frame
// list, so we over-allocate and mask down to the next boundary.
func newAlignedPage() []byte {
	buf := make([]byte, 2*PageSize)

	addr := uintptr(unsafe.Pointer(&buf[0]))
	offset := (PageSize - addr%PageSize) % PageSize

	return buf[offset : offset+PageSize : offset+PageSize]
}
