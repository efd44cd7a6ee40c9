// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package proc

import (
	"github.com/kestrel-os/kestrel/internal/klog"
	"github.com/kestrel-os/kestrel/internal/trap"
)

var log = klog.Module("proc")

// LogSyscallTable is the kernel's only concrete supervisor-call table: it
// logs every id/arg pair it sees and takes no further action. The single
// resident process has nothing to ask the kernel for yet, so there are no
// concrete calls to dispatch to.
type LogSyscallTable struct{}

// HandleSyscall implements trap.SyscallHandler.
func (LogSyscallTable) HandleSyscall(id, arg uint64, frame *trap.Frame) uint64 {
	log.Printf("system call id=%d arg=%d", id, arg)
	return 0
}
