// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command kestrel is the kernel's bring-up sequence: drop to EL1, install
// the exception vector table, parse the device tree, build the physical
// page allocator and kernel translation table, install the fault handlers
// and syscall table, load the embedded user program, and resume it.
package main

import (
	"log"
	"unsafe"

	"github.com/kestrel-os/kestrel/arch/arm64"
	"github.com/kestrel-os/kestrel/boot"
	"github.com/kestrel-os/kestrel/drivers/pl011"
	"github.com/kestrel-os/kestrel/internal/dtb"
	"github.com/kestrel-os/kestrel/internal/klog"
	"github.com/kestrel-os/kestrel/internal/mm"
	"github.com/kestrel-os/kestrel/internal/trap"
	"github.com/kestrel-os/kestrel/internal/version"
	"github.com/kestrel-os/kestrel/proc"
)

// main is reached through the chain boot/_start -> _rt0_arm64_linux ->
// runtime startup -> main.main: _start is the ELF entry (the kernel links
// with -ldflags="-E _start") and enters the runtime's own startup once the
// boot core has a stack, so by the time kmain runs the Go runtime is fully
// initialized.
func main() {
	kmain()
}

func kmain() {
	// Every fatal error path ends here: log what little can still be
	// logged and park the core.
	defer func() {
		if r := recover(); r != nil {
			klog.Early("kestrel: fatal error, halting")
			arm64.Halt()
		}
	}()

	cpu := &arm64.CPU{}
	cpu.Init()

	if cpu.CoreID != 0 {
		arm64.HaltSecondaryCore()
	}

	arm64.InstallVectorTable()

	klog.Early("kestrel: boot core up, EL" + elName(arm64.CurrentEL()))

	dtbBlob := unsafe.Slice((*byte)(unsafe.Pointer(boot.DeviceTreeAddr())), maxDeviceTreeSize)
	tree, err := dtb.Parse(dtbBlob)
	if err != nil {
		panic("kestrel: device tree parse failed: " + err.Error())
	}

	ramBase, ramLen, ok := tree.MemoryRange()
	if !ok {
		panic("kestrel: no memory node in device tree")
	}

	alloc := mm.NewPhysPageAllocator(uintptr(ramBase), uintptr(ramLen))
	reserveKernelImage(alloc, uintptr(ramBase))

	board := selectBoard()

	kernelTable := mm.NewTranslationTable()
	kernelBlocks := initialKernelBlocks(uintptr(ramBase), board.MMIOWindows())
	for _, b := range kernelBlocks {
		kernelTable.Insert(b)
	}
	kernelTable.Activate()

	trap.KernelFaultHandler = &mm.KernelFaultHandler{Table: kernelTable, Blocks: &kernelBlocks}
	trap.Syscalls = proc.LogSyscallTable{}

	klog.Attach(discoverConsole(tree, board))

	log.Printf("kestrel %s starting", version.String())

	if rb, ok := board.(interface{ LogVideoCoreInfo() }); ok {
		rb.LogVideoCoreInfo()
	}

	userBinary := embeddedUserProgram()

	p, err := proc.NewProcess(userBinary, alloc, kernelBlocks)
	if err != nil {
		log.Fatalf("boot: failed to construct init process: %v", err)
	}

	trap.UserFaultHandler = p.FaultHandler()
	trap.ActiveProcess = p

	p.Table().Activate()
	p.MarkRunning()

	frame := p.Frame()
	arm64.ResumeUserspace(&frame, p.Sp())
}

const maxDeviceTreeSize = 1 << 20

func elName(el int) string {
	switch el {
	case 1:
		return "1"
	case 2:
		return "2"
	default:
		return "?"
	}
}

// discoverConsole prefers the first PL011 the firmware actually describes
// over the board's compiled-in default, so a QEMU invocation with a
// relocated UART still gets a console. The discovered device must fall
// inside a device window the board already mapped; anything else is
// ignored in favor of the default.
func discoverConsole(tree *dtb.Tree, board consoleBoard) *pl011.UART {
	nodes := tree.Root.FindCompatible("arm,pl011")
	if len(nodes) == 0 {
		return board.Console()
	}

	regs := nodes[0].Regs()
	if len(regs) == 0 {
		return board.Console()
	}

	base := uintptr(regs[0].Address)
	for _, w := range board.MMIOWindows() {
		if base >= w.VirtualAddress && base < w.VirtualAddress+w.Length {
			return pl011.New(base)
		}
	}

	return board.Console()
}

// reserveKernelImage carves the kernel's own load region out of the
// allocator so user/process pages are never handed out from under it. The
// kernel's link-time footprint is assumed to fit within the first 16 MiB of
// RAM, matching both boards' default load addresses.
func reserveKernelImage(alloc *mm.PhysPageAllocator, ramBase uintptr) {
	for off := uintptr(0); off < kernelImageSize; off += mm.PageSize {
		alloc.Reserve(ramBase + off)
	}
}

const kernelImageSize = 16 << 20

// initialKernelBlocks builds the minimal kernel mapping needed before the
// table is activated: the kernel's own image (including the exception
// vector table and trampoline it loaded with) identity-mapped as normal
// memory, plus the board's device-memory windows. Everything else the
// kernel touches afterward is mapped lazily by trap.KernelFaultHandler.
func initialKernelBlocks(ramBase uintptr, mmio []mm.MemoryBlock) []mm.MemoryBlock {
	blocks := []mm.MemoryBlock{
		{
			VirtualAddress:  ramBase,
			PhysicalAddress: ramBase,
			Length:          kernelImageSize,
			Permission:      mm.KernelRWX,
			Type:            mm.MemNormal,
		},
	}

	return append(blocks, mmio...)
}
