// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mm

import "github.com/kestrel-os/kestrel/internal/klog"

var log = klog.Module("mm")

// KernelFaultHandler services data aborts taken while kernel code accesses
// an address outside its current identity mapping. The kernel table starts
// out covering only its own reserved image plus the board's device windows;
// everything else is mapped lazily, one page at a time, the first time the
// kernel actually touches it. Blocks grows the same list a Process overlays
// on top of its own table, so newly-mapped kernel pages stay reachable from
// user mode too.
type KernelFaultHandler struct {
	Table  *TranslationTable
	Blocks *[]MemoryBlock
}

func (h *KernelFaultHandler) HandleDataAbort(addr uintptr, esr uint64) bool {
	page := addr &^ (PageSize - 1)

	if _, mapped := h.Table.Translate(page); mapped {
		return true
	}

	block := MemoryBlock{
		VirtualAddress:  page,
		PhysicalAddress: page,
		Length:          PageSize,
		Permission:      KernelRWX,
		Type:            MemNormal,
	}

	*h.Blocks = append(*h.Blocks, block)
	h.Table.Insert(block)
	h.Table.Activate()

	return true
}

// UserRegion bounds the virtual addresses a UserFaultHandler will grow a
// process's mapping into on demand.
type UserRegion struct {
	Base uintptr
	Size uintptr
}

// Contains reports whether addr falls within the region.
func (r UserRegion) Contains(addr uintptr) bool {
	return addr >= r.Base && addr < r.Base+r.Size
}

// UserFaultHandler grows a user process's translation table by mapping in a
// fresh page for a fault inside its allowed heap/stack region. Addresses
// outside that region are rejected rather than auto-mapped, so a stray
// pointer cannot silently drain the allocator.
type UserFaultHandler struct {
	Table  *TranslationTable
	Alloc  *PhysPageAllocator
	Region UserRegion
}

func (h *UserFaultHandler) HandleDataAbort(addr uintptr, esr uint64) bool {
	if !h.Region.Contains(addr) {
		return false
	}

	page := addr &^ (PageSize - 1)

	if _, mapped := h.Table.Translate(page); mapped {
		return true
	}

	phys, ok := h.Alloc.Alloc()
	if !ok {
		log.Printf("out of physical pages servicing fault at %#x", addr)
		return false
	}

	h.Table.Insert(MemoryBlock{
		VirtualAddress:  page,
		PhysicalAddress: phys,
		Length:          PageSize,
		Permission:      KernelRWUserRWX,
		Type:            MemNormal,
	})

	h.Table.Activate()

	return true
}
