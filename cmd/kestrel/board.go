// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"github.com/kestrel-os/kestrel/drivers/pl011"
	"github.com/kestrel-os/kestrel/internal/mm"
)

// consoleBoard is the subset of a board package kmain needs: something to
// attach the logging facade to, and the device-memory windows that must be
// mapped before it's safe to do so. Board selection itself happens at link
// time via the rpi4 build tag on board_*.go; QEMU virt is the default.
type consoleBoard interface {
	Console() *pl011.UART
	MMIOWindows() []mm.MemoryBlock
}
