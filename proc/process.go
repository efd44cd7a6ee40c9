// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package proc implements the single user process this kernel can run:
// loading its binary into a freshly built translation table, overlaying the
// kernel's own mappings, and handing control to it.
package proc

import (
	"fmt"

	"github.com/kestrel-os/kestrel/internal/mm"
	"github.com/kestrel-os/kestrel/internal/trap"
)

// UserMemoryBegin is the fixed virtual address a process's binary and heap
// are placed at.
const UserMemoryBegin uintptr = 0x00000001_00000000

// defaultStackSize is carved out above the loaded binary for the initial
// stack.
const defaultStackSize uintptr = 1 << 20

// State is the lifecycle stage of a Process.
type State int

const (
	StateReady State = iota
	StateRunning
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Process is the one user-mode task this kernel can host at a time.
type Process struct {
	table *mm.TranslationTable
	frame trap.Frame
	sp    uint64
	state State

	alloc  *mm.PhysPageAllocator
	region mm.UserRegion
}

// NewProcess builds a translation table for binary, mapping it page by page
// at UserMemoryBegin with read-write-execute permission (the kernel does
// not separate .text/.data segments), overlays kernelBlocks so the kernel
// remains reachable after the table is activated, and prepares an initial
// register frame with Sp at the top of a 1 MiB stack above the binary.
func NewProcess(binary []byte, alloc *mm.PhysPageAllocator, kernelBlocks []mm.MemoryBlock) (*Process, error) {
	if len(binary) == 0 {
		return nil, fmt.Errorf("proc: empty binary")
	}

	table := mm.NewTranslationTable()

	pages := (uintptr(len(binary)) + mm.PageSize - 1) / mm.PageSize

	for i := uintptr(0); i < pages; i++ {
		phys, ok := alloc.Alloc()
		if !ok {
			return nil, fmt.Errorf("proc: out of physical pages loading binary")
		}

		// The kernel still sees physical memory through its identity
		// mapping, so the copy targets the frame's physical address
		// directly.
		dst := (*[mm.PageSize]byte)(identityPointerFn(phys))

		start := i * mm.PageSize
		end := start + mm.PageSize
		if end > uintptr(len(binary)) {
			end = uintptr(len(binary))
		}
		copy(dst[:], binary[start:end])

		table.Insert(mm.MemoryBlock{
			VirtualAddress:  UserMemoryBegin + start,
			PhysicalAddress: phys,
			Length:          mm.PageSize,
			Permission:      mm.KernelRWUserRWX,
			Type:            mm.MemNormal,
		})
	}

	for _, b := range kernelBlocks {
		table.Insert(b)
	}

	p := &Process{
		table: table,
		state: StateReady,
		alloc: alloc,
		region: mm.UserRegion{
			Base: UserMemoryBegin,
			Size: pages*mm.PageSize + defaultStackSize,
		},
	}

	p.frame = trap.Frame{
		Spsr: 0, // EL0t, all interrupt masks clear
		Elr:  uint64(UserMemoryBegin),
	}
	p.sp = uint64(UserMemoryBegin + pages*mm.PageSize + defaultStackSize)

	return p, nil
}

// FaultHandler returns a trap.DataAbortHandler that grows this process's
// heap/stack region on demand, to be installed as trap.UserFaultHandler.
func (p *Process) FaultHandler() trap.DataAbortHandler {
	return &mm.UserFaultHandler{
		Table:  p.table,
		Alloc:  p.alloc,
		Region: p.region,
	}
}

// SaveFrame implements trap.ProcessSink, capturing the register state the
// process was in the moment it trapped into the kernel and moving it to
// the faulted stage until the trap is serviced.
func (p *Process) SaveFrame(frame *trap.Frame, sp uint64) {
	p.frame = *frame
	p.sp = sp
	p.state = StateFaulted
}

// Resumed implements trap.ProcessSink, recording that the serviced process
// is about to be handed back to user mode.
func (p *Process) Resumed() {
	p.state = StateRunning
}

// State reports the process's current lifecycle stage.
func (p *Process) State() State {
	return p.state
}

// Table returns the process's translation table, so callers can activate it
// before resuming.
func (p *Process) Table() *mm.TranslationTable {
	return p.table
}

// Frame returns a copy of the process's saved register state.
func (p *Process) Frame() trap.Frame {
	return p.frame
}

// Sp returns the process's saved SP_EL0, carried separately from Frame
// because Frame's layout is also aliased onto the exception trampoline's
// raw stack frame and has no room to spare.
func (p *Process) Sp() uint64 {
	return p.sp
}

// MarkFaulted records that the process trapped in a way it cannot recover
// from on its own.
func (p *Process) MarkFaulted() {
	p.state = StateFaulted
}

// MarkRunning records that the process is about to be (or currently is)
// executing.
func (p *Process) MarkRunning() {
	p.state = StateRunning
}
