// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package arm64 provides the ARMv8-A AArch64 privilege transition,
// exception vector, and context-switch primitives this kernel is built on.
//
// It is only meant to be used with a bare-metal AArch64 target (QEMU's
// virt machine or a Raspberry Pi 4B); there is no hosted OS underneath it.
package arm64

import "fmt"

// CPU models the one core this kernel brings out of reset; secondary cores
// are parked in HaltSecondaryCore and never rejoin.
type CPU struct {
	// CoreID is the MPIDR_EL1 affinity value this struct was initialized
	// from; kmain parks every core whose CoreID is not 0.
	CoreID uint64
}

// defined in privilege_arm64.s
func currentEL() uint64
func dropToEL1()
func haltSecondaryCore()
func mpidr() uint64

// CurrentEL returns the exception level the processor is currently
// executing at (2 for EL2, 1 for EL1), read out of CurrentEL bits [3:2].
func CurrentEL() int {
	return int((currentEL() >> 2) & 0b11)
}

// Init reads this core's affinity and, if found executing at EL2, drops it
// to EL1 with the HCR_EL2/SPSR_EL2/SP_EL1/ERET sequence, leaving the
// hypervisor level QEMU and the Raspberry Pi firmware both boot into. At
// EL1 it is a no-op; any other starting level is fatal.
func (cpu *CPU) Init() {
	cpu.CoreID = mpidr() & 0xff

	switch CurrentEL() {
	case 2:
		dropToEL1()
	case 1:
		// already at EL1: no-op
	default:
		panic(fmt.Sprintf("arm64: booted at unsupported exception level %d", CurrentEL()))
	}
}

// HaltSecondaryCore parks a non-boot core in a WFE loop. The kernel never
// schedules work onto secondary cores, so they simply never wake.
func HaltSecondaryCore() {
	haltSecondaryCore()
}

// Halt parks the calling core in a WFE loop, the terminal state for every
// fatal error path.
func Halt() {
	haltSecondaryCore()
}
