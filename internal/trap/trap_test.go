// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package trap

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		ec   uint64
		want Class
	}{
		{0x0, ClassUnknown},
		{0x1, ClassTrapped},
		{0x10, ClassTrapped},
		{0x11, ClassSVC64},
		{0x15, ClassSVC64},
		{0x24, ClassDataAbortLowerEL},
		{0x25, ClassDataAbortSameEL},
		{0x20, ClassOther},
		{0x22, ClassOther},
		{0x3f, ClassOther},
	}

	for _, c := range cases {
		esr := c.ec << 26
		if got := classify(esr); got != c.want {
			t.Errorf("classify(ec=%#x) = %v, want %v", c.ec, got, c.want)
		}
	}
}

func TestFrameFromUserspace(t *testing.T) {
	kernel := &Frame{Spsr: 0x3c5} // EL1h
	if kernel.FromUserspace() {
		t.Error("EL1h frame reported as userspace")
	}

	user := &Frame{Spsr: 0x0} // EL0t
	if !user.FromUserspace() {
		t.Error("EL0t frame not reported as userspace")
	}
}

type stubFaultHandler struct {
	called  bool
	resolve bool
}

func (s *stubFaultHandler) HandleDataAbort(addr uintptr, esr uint64) bool {
	s.called = true
	return s.resolve
}

func TestDispatchUserDataAbortResolved(t *testing.T) {
	stub := &stubFaultHandler{resolve: true}
	UserFaultHandler = stub
	defer func() { UserFaultHandler = nil }()

	frame := &Frame{Spsr: 0}
	esr := uint64(0x24) << 26

	Dispatch(esr, 0x1000, frame, 0)

	if !stub.called {
		t.Error("user fault handler was not invoked")
	}
}

type stubSyscallHandler struct {
	gotID, gotArg uint64
}

func (s *stubSyscallHandler) HandleSyscall(id, arg uint64, frame *Frame) uint64 {
	s.gotID, s.gotArg = id, arg
	return 0
}

func TestDispatchSVCUsesX10X11(t *testing.T) {
	stub := &stubSyscallHandler{}
	Syscalls = stub
	defer func() { Syscalls = nil }()

	frame := &Frame{Spsr: 0}
	frame.Regs[10] = 42
	frame.Regs[11] = 99

	Dispatch(uint64(0x15)<<26, 0, frame, 0)

	if stub.gotID != 42 || stub.gotArg != 99 {
		t.Fatalf("HandleSyscall(id=%d, arg=%d), want id=42, arg=99", stub.gotID, stub.gotArg)
	}
}

func TestDispatchUnresolvedPanics(t *testing.T) {
	stub := &stubFaultHandler{resolve: false}
	UserFaultHandler = stub
	defer func() { UserFaultHandler = nil }()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on unresolved data abort")
		}
	}()

	Dispatch(uint64(0x24)<<26, 0x2000, &Frame{Spsr: 0}, 0)
}

func TestDispatchUnknownClassLogsAndIgnores(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic on unknown exception class: %v", r)
		}
	}()

	if got := Dispatch(uint64(0x3f)<<26, 0x3000, &Frame{Spsr: 0x3c5}, 0); got != 0 {
		t.Errorf("Dispatch(unknown) = %d, want 0", got)
	}
}

func TestDispatchSyscallReturnReachesX0(t *testing.T) {
	Syscalls = syscallReturning{v: 7}
	defer func() { Syscalls = nil }()

	frame := &Frame{Spsr: 0}
	Dispatch(uint64(0x15)<<26, 0, frame, 0)

	if frame.Regs[0] != 7 {
		t.Fatalf("saved x0 = %d after syscall, want 7", frame.Regs[0])
	}
}

type syscallReturning struct{ v uint64 }

func (s syscallReturning) HandleSyscall(id, arg uint64, frame *Frame) uint64 { return s.v }

type stubSink struct {
	saved   bool
	resumed bool
}

func (s *stubSink) SaveFrame(frame *Frame, sp uint64) { s.saved = true }
func (s *stubSink) Resumed()                          { s.resumed = true }

func TestDispatchNotifiesProcessSink(t *testing.T) {
	sink := &stubSink{}
	ActiveProcess = sink
	Syscalls = syscallReturning{}
	defer func() { ActiveProcess, Syscalls = nil, nil }()

	Dispatch(uint64(0x15)<<26, 0, &Frame{Spsr: 0}, 0)

	if !sink.saved || !sink.resumed {
		t.Fatalf("sink saved=%v resumed=%v, want both", sink.saved, sink.resumed)
	}
}

func TestDispatchKernelFrameSkipsProcessSink(t *testing.T) {
	sink := &stubSink{}
	ActiveProcess = sink
	KernelFaultHandler = &stubFaultHandler{resolve: true}
	defer func() { ActiveProcess, KernelFaultHandler = nil, nil }()

	Dispatch(uint64(0x25)<<26, 0x5000, &Frame{Spsr: 0x3c5}, 0)

	if sink.saved || sink.resumed {
		t.Fatalf("sink saved=%v resumed=%v for a kernel-origin frame, want neither", sink.saved, sink.resumed)
	}
}
