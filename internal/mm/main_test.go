// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mm

import (
	"os"
	"testing"
)

// TestMain replaces the TTBR0_EL1 indirection with an in-process fake
// before any test runs: the real MRS/MSR pair in activate_arm64.s can only
// execute at EL1, and a test binary built with GOARCH=arm64 runs as an
// ordinary unprivileged EL0 process like any other Go test.
func TestMain(m *testing.M) {
	var active uint64
	ttbr0.current = func() uint64 { return active }
	ttbr0.write = func(root uint64) { active = root }

	os.Exit(m.Run())
}
