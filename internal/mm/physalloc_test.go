// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mm

import "testing"

func TestAllocTakesFromTail(t *testing.T) {
	a := NewPhysPageAllocator(0x40000000, 3*PageSize)

	addr, ok := a.Alloc()
	if !ok || addr != 0x40000000+2*PageSize {
		t.Fatalf("Alloc() = %#x, %v, want last page", addr, ok)
	}

	if len(a.Ranges()) != 1 || a.Ranges()[0].Len != 2*PageSize {
		t.Fatalf("unexpected ranges after alloc: %+v", a.Ranges())
	}
}

func TestAllocExhaustion(t *testing.T) {
	a := NewPhysPageAllocator(0x40000000, PageSize)

	if _, ok := a.Alloc(); !ok {
		t.Fatal("expected first alloc to succeed")
	}

	if _, ok := a.Alloc(); ok {
		t.Fatal("expected allocator to be exhausted")
	}
}

func TestReserveSplitsMiddle(t *testing.T) {
	a := NewPhysPageAllocator(0x40000000, 3*PageSize)

	if !a.Reserve(0x40000000 + PageSize) {
		t.Fatal("Reserve() failed for middle page")
	}

	ranges := a.Ranges()
	if len(ranges) != 2 {
		t.Fatalf("expected reserve to split range in two, got %+v", ranges)
	}
	if ranges[0].Base != 0x40000000 || ranges[0].Len != PageSize {
		t.Errorf("unexpected left range: %+v", ranges[0])
	}
	if ranges[1].Base != 0x40000000+2*PageSize || ranges[1].Len != PageSize {
		t.Errorf("unexpected right range: %+v", ranges[1])
	}
}

func TestFreeCoalescesBothSides(t *testing.T) {
	a := NewPhysPageAllocator(0x40000000, 3*PageSize)

	mid := uintptr(0x40000000 + PageSize)
	if !a.Reserve(mid) {
		t.Fatal("Reserve failed")
	}

	a.Free(mid)

	ranges := a.Ranges()
	if len(ranges) != 1 || ranges[0].Base != 0x40000000 || ranges[0].Len != 3*PageSize {
		t.Fatalf("expected fully coalesced range, got %+v", ranges)
	}
}

func TestFreeNoAdjacentRange(t *testing.T) {
	a := NewPhysPageAllocator(0x40000000, PageSize)

	// Free a page well past the allocator's only range: nothing to merge
	// with on either side, so it must appear as its own range.
	a.Free(0x40000000 + 4*PageSize)

	ranges := a.Ranges()
	if len(ranges) != 2 {
		t.Fatalf("expected two disjoint free ranges, got %+v", ranges)
	}
	if ranges[1].Base != 0x40000000+4*PageSize || ranges[1].Len != PageSize {
		t.Fatalf("unexpected inserted range: %+v", ranges[1])
	}
}

func TestReserveUnavailablePage(t *testing.T) {
	a := NewPhysPageAllocator(0x40000000, PageSize)
	a.Alloc()

	if a.Reserve(0x40000000) {
		t.Fatal("expected Reserve of already-allocated page to fail")
	}
}

func TestFreeDoubleFreePanics(t *testing.T) {
	a := NewPhysPageAllocator(0x40000000, PageSize)
	addr, _ := a.Alloc()
	a.Free(addr)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()

	a.Free(addr)
}

func TestNewPhysPageAllocatorPanicsOnMisalignment(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on misaligned base")
		}
	}()

	NewPhysPageAllocator(1, PageSize)
}

func TestReserveFreeAllocRoundTrip(t *testing.T) {
	a := NewPhysPageAllocator(0x40000000, 2*PageSize)
	last := uintptr(0x40000000 + PageSize)

	if !a.Reserve(last) {
		t.Fatal("Reserve failed for a free page")
	}
	a.Free(last)

	if len(a.Ranges()) != 1 {
		t.Fatalf("expected freed page to coalesce back, ranges=%+v", a.Ranges())
	}

	addr, ok := a.Alloc()
	if !ok || addr != last {
		t.Fatalf("Alloc() after free = %#x, %v, want the freed page %#x", addr, ok, last)
	}
}
