// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mm implements the kernel's physical page allocator, hardware
// translation tables, and the fault handlers that grow both on demand.
package mm

import "fmt"

// PageSize is the only granule this kernel supports.
const PageSize = 4096

// PhysicalRange is a run of contiguous, page-aligned, free physical memory.
type PhysicalRange struct {
	Base uintptr
	Len  uintptr
}

func (r PhysicalRange) end() uintptr { return r.Base + r.Len }

// PhysPageAllocator hands out single pages from a set of free ranges kept
// sorted by base address, non-overlapping and non-adjacent (adjacent ranges
// are always coalesced into one).
type PhysPageAllocator struct {
	free []PhysicalRange
}

// NewPhysPageAllocator creates an allocator over [base, base+length), which
// must be page-aligned on both ends.
func NewPhysPageAllocator(base, length uintptr) *PhysPageAllocator {
	if base%PageSize != 0 || length%PageSize != 0 {
		panic(fmt.Sprintf("mm: misaligned physical range base=%#x len=%#x", base, length))
	}

	return &PhysPageAllocator{
		free: []PhysicalRange{{Base: base, Len: length}},
	}
}

// Alloc removes one page from the allocator and returns its physical
// address. It always takes from the last range, an O(1) operation.
func (a *PhysPageAllocator) Alloc() (uintptr, bool) {
	if len(a.free) == 0 {
		return 0, false
	}

	last := &a.free[len(a.free)-1]
	addr := last.end() - PageSize
	last.Len -= PageSize

	if last.Len == 0 {
		a.free = a.free[:len(a.free)-1]
	}

	return addr, true
}

// Reserve removes a specific page from the free set, used to carve out the
// kernel image and other fixed regions before general allocation begins. It
// reports false if the page was not free.
func (a *PhysPageAllocator) Reserve(addr uintptr) bool {
	for i := range a.free {
		r := a.free[i]

		if addr < r.Base || addr >= r.end() {
			continue
		}

		switch {
		case addr == r.Base && r.Len == PageSize:
			a.free = append(a.free[:i], a.free[i+1:]...)
		case addr == r.Base:
			a.free[i].Base += PageSize
			a.free[i].Len -= PageSize
		case addr == r.end()-PageSize:
			a.free[i].Len -= PageSize
		default:
			tail := PhysicalRange{Base: addr + PageSize, Len: r.end() - (addr + PageSize)}
			a.free[i].Len = addr - r.Base
			a.free = append(a.free[:i+1], append([]PhysicalRange{tail}, a.free[i+1:]...)...)
		}

		return true
	}

	return false
}

// Free returns a page to the allocator, merging it with an adjacent free
// range on either side when possible. It panics on double-free, detected
// when addr already lies inside a free range.
func (a *PhysPageAllocator) Free(addr uintptr) {
	idx := 0
	for idx < len(a.free) && a.free[idx].Base < addr {
		idx++
	}

	if idx < len(a.free) && addr >= a.free[idx].Base && addr < a.free[idx].end() {
		panic(fmt.Sprintf("mm: double free of page %#x", addr))
	}
	if idx > 0 && addr >= a.free[idx-1].Base && addr < a.free[idx-1].end() {
		panic(fmt.Sprintf("mm: double free of page %#x", addr))
	}

	mergeLeft := idx > 0 && a.free[idx-1].end() == addr
	mergeRight := idx < len(a.free) && a.free[idx].Base == addr+PageSize

	switch {
	case mergeLeft && mergeRight:
		a.free[idx-1].Len += PageSize + a.free[idx].Len
		a.free = append(a.free[:idx], a.free[idx+1:]...)
	case mergeLeft:
		a.free[idx-1].Len += PageSize
	case mergeRight:
		a.free[idx].Base = addr
		a.free[idx].Len += PageSize
	default:
		r := PhysicalRange{Base: addr, Len: PageSize}
		a.free = append(a.free[:idx], append([]PhysicalRange{r}, a.free[idx:]...)...)
	}
}

// Ranges returns a copy of the current free list, for inspection in tests
// and diagnostics.
func (a *PhysPageAllocator) Ranges() []PhysicalRange {
	out := make([]PhysicalRange, len(a.free))
	copy(out, a.free)
	return out
}
