// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import "encoding/binary"

// embeddedUserProgram returns the machine code for the demo init process:
// load id=1 into X10 and arg=1 into X11, issue SVC #0, then branch-to-self
// so the process parks instead of running off the end of its mapped page.
//
// cmd/kestrel-image only packs an already built user binary (such as one
// built from userprog/) into a boot image; the kernel does not read it
// from there and always runs this placeholder.
func embeddedUserProgram() []byte {
	const (
		movzX10    = 0xd280002a // movz x10, #1
		movzX11    = 0xd280002b // movz x11, #1
		svcImm0    = 0xd4000001 // svc #0
		branchSelf = 0x14000000 // b . (offset 0)
	)

	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], movzX10)
	binary.LittleEndian.PutUint32(buf[4:], movzX11)
	binary.LittleEndian.PutUint32(buf[8:], svcImm0)
	binary.LittleEndian.PutUint32(buf[12:], branchSelf)
	return buf
}
