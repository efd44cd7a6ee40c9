// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package klog is the kernel's two-tier logging facade: a raw builtin
// print for messages emitted before any console driver exists, and a
// standard log.Logger once one does.
package klog

import (
	"io"
	"log"
)

// Early prints a message using the Go builtin print, for use before a
// console device has been attached (e.g. while still discovering the
// device tree). It never allocates and never blocks.
func Early(msg string) {
	print(msg, "\n")
}

// Attach installs w (typically a drivers/pl011.UART) as the destination for
// every subsequent log.Printf/log.Fatalf call.
func Attach(w io.Writer) {
	log.SetOutput(w)
	log.SetFlags(0)
}

// deferredWriter resolves the output destination on every write instead of
// at logger construction. Module loggers are created in package variable
// initializers, long before Attach runs; snapshotting log.Writer() there
// would pin them to the pre-console sink forever.
type deferredWriter struct{}

func (deferredWriter) Write(p []byte) (int, error) {
	return log.Writer().Write(p)
}

// Module returns a logger prefixed with "name: ", so every subsystem's
// messages carry a short tag identifying their origin. Its output follows
// wherever Attach points the default logger, no matter when it was created.
func Module(name string) *log.Logger {
	return log.New(deferredWriter{}, name+": ", 0)
}
