// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package trap classifies AArch64 synchronous exceptions and routes them to
// the handlers registered by the running board, without internal/mm or proc
// needing to import arch/arm64 (and vice versa).
package trap

import (
	"fmt"

	"github.com/kestrel-os/kestrel/internal/klog"
)

var log = klog.Module("trap")

// Frame is the saved processor state captured by the exception trampoline
// (arch/arm64/vectors_arm64.s) on every entry to EL1. Its layout (31 general
// purpose registers followed by SPSR_EL1 and ELR_EL1) is fixed by the
// trampoline's stack frame and must not be reordered.
type Frame struct {
	Regs [31]uint64
	Spsr uint64
	Elr  uint64
}

// Class identifies the kind of synchronous exception taken, decoded from
// ESR_EL1 bits 26:31 (the EC field).
type Class int

const (
	// ClassUnknown is EC 0, ClassTrapped covers the trapped-instruction
	// classes EC 1-16: both are logged and ignored.
	ClassUnknown Class = iota
	ClassTrapped
	ClassSVC64
	ClassDataAbortLowerEL
	ClassDataAbortSameEL
	// ClassOther covers every remaining EC value (including the
	// instruction-abort and alignment classes a fuller implementation
	// would service); also logged and ignored.
	ClassOther
)

func classify(esr uint64) Class {
	switch ec := (esr >> 26) & 0x3f; {
	case ec == 0:
		return ClassUnknown
	case ec >= 1 && ec <= 16:
		return ClassTrapped
	case ec == 17 || ec == 21:
		return ClassSVC64
	case ec == 36:
		return ClassDataAbortLowerEL
	case ec == 37:
		return ClassDataAbortSameEL
	default:
		return ClassOther
	}
}

// FromUserspace reports whether the saved SPSR indicates the exception was
// taken from EL0 (the low four mode bits are zero for AArch64 EL0t).
func (f *Frame) FromUserspace() bool {
	return f.Spsr&0b1111 == 0
}

// DataAbortHandler services a data abort taken against a translation table,
// returning true if the fault was resolved and execution can resume.
type DataAbortHandler interface {
	HandleDataAbort(faultAddr uintptr, esr uint64) bool
}

// SyscallHandler services an SVC instruction from EL0. Its return value is
// written back into the saved x0, where the user program picks it up after
// the exception return.
type SyscallHandler interface {
	HandleSyscall(id, arg uint64, frame *Frame) uint64
}

// ProcessSink receives the saved register frame of the process that most
// recently trapped into the kernel, so the kernel-side handler can resume or
// inspect it without importing the process package. sp is SP_EL0 at the
// moment of the trap, carried alongside frame rather than inside it.
// Resumed is called once the exception has been serviced and the trampoline
// is about to return to user mode.
type ProcessSink interface {
	SaveFrame(frame *Frame, sp uint64)
	Resumed()
}

var (
	// KernelFaultHandler services data aborts taken while the kernel
	// itself is executing (EL1t/EL1h). Installed by cmd/kestrel at boot.
	KernelFaultHandler DataAbortHandler

	// UserFaultHandler services data aborts taken from a user process.
	UserFaultHandler DataAbortHandler

	// Syscalls services SVC instructions from EL0.
	Syscalls SyscallHandler

	// ActiveProcess receives frames for the currently resumed process.
	ActiveProcess ProcessSink
)

// Dispatch is called by the exception trampoline (via the small Go shim in
// arch/arm64) for every synchronous exception taken at EL1. esr and far are
// ESR_EL1 and FAR_EL1 as read by the caller; sp is SP_EL0, meaningful only
// when the frame came from user mode. The syscall id and argument travel in
// the saved x10 and x11, the register convention the user-side runtime uses
// for its supervisor calls.
func Dispatch(esr uint64, far uintptr, frame *Frame, sp uint64) uint64 {
	class := classify(esr)
	fromUser := frame.FromUserspace()

	if fromUser && ActiveProcess != nil {
		ActiveProcess.SaveFrame(frame, sp)
	}

	var ret uint64

	switch class {
	case ClassSVC64:
		if Syscalls == nil {
			panic("trap: unhandled SVC, no syscall handler installed")
		}
		ret = Syscalls.HandleSyscall(frame.Regs[10], frame.Regs[11], frame)
		frame.Regs[0] = ret
	case ClassDataAbortLowerEL:
		if UserFaultHandler == nil || !UserFaultHandler.HandleDataAbort(far, esr) {
			panic(fmt.Sprintf("trap: unresolved user data abort at %#x", far))
		}
	case ClassDataAbortSameEL:
		if KernelFaultHandler == nil || !KernelFaultHandler.HandleDataAbort(far, esr) {
			panic(fmt.Sprintf("trap: unresolved kernel data abort at %#x", far))
		}
	default:
		// ClassUnknown, ClassTrapped, ClassOther: log and keep going;
		// only an unserviceable SVC or data abort is fatal.
		log.Printf("unhandled exception class %#x, ignoring (esr=%#x far=%#x)", (esr>>26)&0x3f, esr, far)
	}

	if fromUser && ActiveProcess != nil {
		ActiveProcess.Resumed()
	}

	return ret
}
