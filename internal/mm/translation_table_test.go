// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mm

import "testing"

func TestInsertAndTranslateRoundTrip(t *testing.T) {
	tt := NewTranslationTable()

	tt.Insert(MemoryBlock{
		VirtualAddress:  0x1000000,
		PhysicalAddress: 0x40001000,
		Length:          PageSize,
		Permission:      KernelRWX,
		Type:            MemNormal,
	})

	got, ok := tt.Translate(0x1000000 + 0x20)
	if !ok {
		t.Fatal("expected mapping to resolve")
	}
	if got != 0x40001000+0x20 {
		t.Fatalf("Translate() = %#x, want %#x", got, 0x40001000+0x20)
	}
}

func TestTranslateUnmapped(t *testing.T) {
	tt := NewTranslationTable()

	if _, ok := tt.Translate(0x2000000); ok {
		t.Fatal("expected unmapped address to miss")
	}
}

func TestInsertLastWriteWins(t *testing.T) {
	tt := NewTranslationTable()
	va := uintptr(0x1000000)

	tt.Insert(MemoryBlock{VirtualAddress: va, PhysicalAddress: 0x40000000, Length: PageSize, Permission: KernelRWX, Type: MemNormal})
	tt.Insert(MemoryBlock{VirtualAddress: va, PhysicalAddress: 0x50000000, Length: PageSize, Permission: KernelRWUserRWX, Type: MemNormal})

	got, ok := tt.Translate(va)
	if !ok || got != 0x50000000 {
		t.Fatalf("Translate() = %#x, %v, want second mapping to win", got, ok)
	}
}

func TestInsertMultiPageBlock(t *testing.T) {
	tt := NewTranslationTable()

	tt.Insert(MemoryBlock{
		VirtualAddress:  0x1000000,
		PhysicalAddress: 0x40000000,
		Length:          4 * PageSize,
		Permission:      KernelRWX,
		Type:            MemNormal,
	})

	for i := uintptr(0); i < 4; i++ {
		got, ok := tt.Translate(0x1000000 + i*PageSize)
		if !ok || got != 0x40000000+i*PageSize {
			t.Errorf("page %d: Translate() = %#x, %v", i, got, ok)
		}
	}
}

func TestKernelBlocksReachableUnderUserTable(t *testing.T) {
	// A process's table must still resolve kernel addresses overlaid onto
	// it, or the kernel becomes unreachable the moment the user table goes
	// live.
	tt := NewTranslationTable()

	userBlock := MemoryBlock{VirtualAddress: 0x100000000, PhysicalAddress: 0x41000000, Length: PageSize, Permission: KernelRWUserRWX, Type: MemNormal}
	kernelBlock := MemoryBlock{VirtualAddress: 0x40000000, PhysicalAddress: 0x40000000, Length: PageSize, Permission: KernelRWX, Type: MemNormal}

	tt.Insert(userBlock)
	tt.Insert(kernelBlock)

	if _, ok := tt.Translate(0x100000000); !ok {
		t.Error("user block not reachable")
	}
	if _, ok := tt.Translate(0x40000000); !ok {
		t.Error("overlaid kernel block not reachable")
	}
}
