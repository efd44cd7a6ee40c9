// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

import (
	"unsafe"

	"github.com/kestrel-os/kestrel/internal/trap"
)

// defined in vectors_arm64.s
func vectorTableAddr() uint64
func setVBAR(addr uint64)
func readSPEL0() uint64

// kernelG holds the kernel's goroutine pointer across user execution. User
// code is free to clobber x28, so resumeUserspace stashes g here right
// before its ERET and the exception trampoline reloads it on the next
// entry from EL0, before any Go code runs.
var kernelG uint64

// InstallVectorTable programs VBAR_EL1 to point at this package's exception
// vector table. Must run before any code that can fault or trap, and before
// interrupts are unmasked.
func InstallVectorTable() {
	setVBAR(vectorTableAddr())
}

// handleException is called by the trampoline in vectors_arm64.s with the
// exception syndrome, fault address and a pointer to the just-saved register
// frame. framePtr aliases trap.Frame's layout exactly (31 GPRs followed by
// SPSR_EL1 and ELR_EL1), so it is reinterpreted rather than copied; any edit
// trap.Dispatch makes (e.g. placing a syscall return value in the saved x0)
// is carried back into the trampoline's restore sequence for free.
//
// SP_EL0 is read here rather than stored in Frame: Frame's 264-byte layout
// must match the trampoline's reserved stack slots exactly, with no room for
// an extra field. It is only meaningful when the trapping frame came from
// EL0; trap.Dispatch ignores it otherwise.
//
//go:nosplit
func handleException(esr, far uint64, framePtr unsafe.Pointer) {
	frame := (*trap.Frame)(framePtr)
	trap.Dispatch(esr, uintptr(far), frame, readSPEL0())
}
