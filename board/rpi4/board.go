// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package rpi4 provides the peripheral set for the Raspberry Pi 4B,
// addressed through the BCM2711's "low peripheral mode" physical window
// and driven explicitly from cmd/kestrel's bringup sequence.
package rpi4

import (
	"log"

	"github.com/kestrel-os/kestrel/drivers/dma"
	"github.com/kestrel-os/kestrel/drivers/mailbox"
	"github.com/kestrel-os/kestrel/drivers/pl011"
	"github.com/kestrel-os/kestrel/drivers/videocore"
	"github.com/kestrel-os/kestrel/internal/mm"
)

// peripheralBase is the BCM2711 "low peripheral mode" physical base used by
// the Raspberry Pi 4B's ARM cores.
const peripheralBase = 0xfe000000

// peripheralWindowSize covers every register block this board touches
// (UART0 and the mailbox), mapped as one device-memory region.
const peripheralWindowSize = 0x01000000

const (
	uart0Base   = peripheralBase + 0x201000
	mailboxBase = peripheralBase + 0xb880

	mailboxScratchBase = 0x3c000000
	mailboxScratchSize = 0x4000
)

type board struct {
	UART0     *pl011.UART
	Mailbox   *mailbox.Mailbox
	VideoCore *videocore.VideoCore
	dmaRegion *dma.Region
}

// Board is the singleton peripheral set for the Raspberry Pi 4B.
var Board = newBoard()

func newBoard() *board {
	region := dma.NewRegion(mailboxScratchBase, mailboxScratchSize)
	mbox := mailbox.New(mailboxBase, region)

	return &board{
		UART0:     pl011.New(uart0Base),
		Mailbox:   mbox,
		VideoCore: videocore.New(mbox),
		dmaRegion: region,
	}
}

// Init brings up the board's peripherals; this board has none that need
// setting up. cmd/kestrel calls it from selectBoard, before the kernel
// translation table that maps the BCM2711 peripheral window is built.
func (b *board) Init() {
}

// Console returns the board's console UART.
func (b *board) Console() *pl011.UART {
	return b.UART0
}

// MMIOWindows describes the board's device-memory regions, which
// cmd/kestrel maps explicitly into the kernel table rather than leaving
// them to the kernel fault handler's on-demand normal-memory mapping.
func (b *board) MMIOWindows() []mm.MemoryBlock {
	return []mm.MemoryBlock{
		{
			VirtualAddress:  peripheralBase,
			PhysicalAddress: peripheralBase,
			Length:          peripheralWindowSize,
			Permission:      mm.KernelRWX,
			Type:            mm.MemDevice,
		},
	}
}

// LogVideoCoreInfo queries the VideoCore firmware for board identification
// and logs it. Exercises the videocore driver, which otherwise has no
// caller: boot doesn't depend on any of this information.
func (b *board) LogVideoCoreInfo() {
	rev, err := b.VideoCore.FirmwareRevision()
	if err != nil {
		log.Printf("rpi4: failed to query VideoCore firmware revision: %v", err)
		return
	}

	model, err := b.VideoCore.BoardModel()
	if err != nil {
		log.Printf("rpi4: failed to query VideoCore board model: %v", err)
		return
	}

	log.Printf("rpi4: VideoCore firmware revision %#x, board model %#x", rev, model)
}
