// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package version reports the kernel's own build version, stamped in at
// link time via -ldflags and validated as a semver string the same way
// cmd/kestrel-image validates the version it writes into an image header.
package version

import "github.com/Masterminds/semver/v3"

// Raw is overridden at link time, e.g.:
//
//	go build -ldflags "-X github.com/kestrel-os/kestrel/internal/version.Raw=0.3.0"
var Raw = "0.0.0-dev"

// Parsed returns Raw as a validated semver.Version.
func Parsed() (*semver.Version, error) {
	return semver.NewVersion(Raw)
}

// String returns Raw verbatim, for logging where a parse failure shouldn't
// be fatal.
func String() string {
	return Raw
}
