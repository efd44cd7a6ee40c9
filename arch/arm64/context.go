// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

import "github.com/kestrel-os/kestrel/internal/trap"

// defined in context_arm64.s
func resumeUserspace(frame *trap.Frame, sp uint64)

// ResumeUserspace loads a saved register frame and ERETs into EL0, never
// returning to its caller. The hardware resumes exactly where the process
// last trapped (or, for a brand new process, at its entry point with sp
// set up by proc.NewProcess). sp is carried separately from frame rather
// than as a Frame field, since Frame's 264-byte layout is also aliased
// directly onto the exception trampoline's stack frame.
func ResumeUserspace(frame *trap.Frame, sp uint64) {
	resumeUserspace(frame, sp)
}
