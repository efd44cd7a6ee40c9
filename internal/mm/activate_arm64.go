// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mm

// currentTTBR0 and writeTTBR0 are defined in activate_arm64.s. writeTTBR0
// wraps the full activation sequence: DSB, MAIR/TCR/TTBR0 programming, TLB
// invalidation, and the MMU/cache enable, with an ISB after each step that
// needs one.
func currentTTBR0() uint64
func writeTTBR0(root uint64)

// ttbr0 is the indirection TranslationTable.Activate calls through. Real
// bootstrapped code leaves it pointed at the MRS/MSR pair above; host-side
// unit tests, which run as an unprivileged EL0 process and cannot touch
// TTBR0_EL1 at all, replace it with an in-memory fake.
var ttbr0 = struct {
	current func() uint64
	write   func(uint64)
}{current: currentTTBR0, write: writeTTBR0}

// Activate installs this table as the active TTBR0_EL1, skipping the write
// (and the accompanying barrier/TLB-invalidate sequence) when it is already
// current. Fault handlers re-activate after every mapping they insert; the
// check makes that the same observable behavior at lower cost.
func (t *TranslationTable) Activate() {
	root := uint64(t.RootPhysical())

	if ttbr0.current() == root {
		return
	}

	ttbr0.write(root)
}
