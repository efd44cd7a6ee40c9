// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package qemuvirt provides the peripheral set and memory layout for
// QEMU's `virt` machine, driven explicitly from cmd/kestrel's bringup
// sequence.
package qemuvirt

import (
	"github.com/kestrel-os/kestrel/drivers/pl011"
	"github.com/kestrel-os/kestrel/internal/mm"
)

// Peripheral registers, per QEMU's virt machine memory map.
const (
	UART0Base = 0x09000000

	// RAM starts here per virt's default memory map; size is discovered
	// from the device tree rather than assumed.
	RAMBase = 0x40000000
)

// Board holds this machine's peripheral instances.
type board struct {
	UART0 *pl011.UART
}

// Board is the singleton peripheral set for this machine.
var Board = &board{
	UART0: pl011.New(UART0Base),
}

// Init brings up the board's peripherals; this board has none that need
// setting up. cmd/kestrel calls it from selectBoard, before the kernel
// translation table that maps UART0Base is built.
func (b *board) Init() {
}

// MMIOWindows describes the board's device-memory regions, which
// cmd/kestrel maps explicitly into the kernel table rather than leaving
// them to the kernel fault handler's on-demand normal-memory mapping.
func (b *board) MMIOWindows() []mm.MemoryBlock {
	return []mm.MemoryBlock{
		{
			VirtualAddress:  UART0Base,
			PhysicalAddress: UART0Base,
			Length:          mm.PageSize,
			Permission:      mm.KernelRWX,
			Type:            mm.MemDevice,
		},
	}
}

// Console returns the board's console UART.
func (b *board) Console() *pl011.UART {
	return b.UART0
}
