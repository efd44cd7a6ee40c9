// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pl011 drives the ARM PrimeCell PL011 UART used as QEMU virt's
// console (at 0x09000000) and as the Raspberry Pi 4B's UART0 (at
// 0xfe201000). Only the transmit path is implemented: the kernel never
// reads console input.
package pl011

import "github.com/kestrel-os/kestrel/internal/reg"

const (
	dataReg = 0x00
	flagReg = 0x18

	flagTxFull = 5
)

// UART drives one PL011 instance.
type UART struct {
	base uintptr
}

// New returns a UART for the PL011 registers starting at base.
func New(base uintptr) *UART {
	return &UART{base: base}
}

// WriteByte blocks until the transmit FIFO has room, then writes one byte.
func (u *UART) WriteByte(c byte) error {
	for reg.Get64(u.base+flagReg, flagTxFull) {
		// wait for the transmit FIFO to drain
	}

	reg.Write64(u.base+dataReg, uint64(c))
	return nil
}

// Write implements io.Writer so internal/klog can log directly to the
// console once one is available.
func (u *UART) Write(p []byte) (int, error) {
	for _, c := range p {
		if c == '\n' {
			if err := u.WriteByte('\r'); err != nil {
				return 0, err
			}
		}
		if err := u.WriteByte(c); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}
