// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mm

import "testing"

func TestKernelFaultHandlerMapsOnDemand(t *testing.T) {
	tt := NewTranslationTable()
	var blocks []MemoryBlock
	h := &KernelFaultHandler{Table: tt, Blocks: &blocks}

	if !h.HandleDataAbort(0x40010000+0x8, 0) {
		t.Fatal("expected kernel fault to resolve")
	}

	pa, ok := tt.Translate(0x40010000)
	if !ok || pa != 0x40010000 {
		t.Fatalf("expected identity mapping at fault page, got %#x, %v", pa, ok)
	}

	if len(blocks) != 1 || blocks[0].VirtualAddress != 0x40010000 {
		t.Fatalf("expected fault to be recorded in the kernel block list, got %+v", blocks)
	}

	if !h.HandleDataAbort(0x40010000+0x10, 0) {
		t.Fatal("re-fault on already-mapped page should resolve")
	}
	if len(blocks) != 1 {
		t.Fatalf("expected no new block recorded for an already-mapped page, got %+v", blocks)
	}
}

func TestUserFaultHandlerMapsInRegion(t *testing.T) {
	alloc := NewPhysPageAllocator(0x50000000, 4*PageSize)
	tt := NewTranslationTable()
	h := &UserFaultHandler{
		Table: tt,
		Alloc: alloc,
		Region: UserRegion{
			Base: 0x100000000,
			Size: 16 * 1024 * 1024,
		},
	}

	resolved := h.HandleDataAbort(0x100000000+0x42, 0)
	if !resolved {
		t.Fatal("expected fault inside region to resolve")
	}

	if _, ok := tt.Translate(0x100000000); !ok {
		t.Fatal("expected page to be mapped after fault handled")
	}
}

func TestUserFaultHandlerRejectsOutsideRegion(t *testing.T) {
	alloc := NewPhysPageAllocator(0x50000000, PageSize)
	tt := NewTranslationTable()
	h := &UserFaultHandler{
		Table:  tt,
		Alloc:  alloc,
		Region: UserRegion{Base: 0x100000000, Size: 16 * 1024 * 1024},
	}

	if h.HandleDataAbort(0xdeadbeef, 0) {
		t.Fatal("expected out-of-region fault to be rejected")
	}
}

func TestUserFaultHandlerExhaustion(t *testing.T) {
	alloc := NewPhysPageAllocator(0x50000000, PageSize)
	tt := NewTranslationTable()
	h := &UserFaultHandler{
		Table:  tt,
		Alloc:  alloc,
		Region: UserRegion{Base: 0x100000000, Size: 16 * 1024 * 1024},
	}

	if !h.HandleDataAbort(0x100000000, 0) {
		t.Fatal("first fault should succeed")
	}
	if h.HandleDataAbort(0x100000000+PageSize, 0) {
		t.Fatal("expected second fault to fail once pages are exhausted")
	}
}

func TestUserFaultHandlerIdempotentOnAlreadyMapped(t *testing.T) {
	alloc := NewPhysPageAllocator(0x50000000, 2*PageSize)
	tt := NewTranslationTable()
	h := &UserFaultHandler{
		Table:  tt,
		Alloc:  alloc,
		Region: UserRegion{Base: 0x100000000, Size: 16 * 1024 * 1024},
	}

	h.HandleDataAbort(0x100000000, 0)
	if !h.HandleDataAbort(0x100000000+0x10, 0) {
		t.Fatal("re-fault on already-mapped page should resolve without consuming another page")
	}

	if len(alloc.Ranges()) != 1 || alloc.Ranges()[0].Len != PageSize {
		t.Fatalf("expected only one page consumed, ranges=%+v", alloc.Ranges())
	}
}
