// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command kestrel-image is a host-side build tool: it concatenates a built
// kernel ELF/binary with a user program blob into a single boot image QEMU
// or a Raspberry Pi 4B's firmware can load directly, stamping a small
// version header validated with semver. It never runs on the target and is
// never linked into the kernel binary.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
)

const imageMagic = 0x4b455354 // "KEST"

func main() {
	kernelPath := flag.String("kernel", "", "path to the built kernel binary")
	userPath := flag.String("user", "", "path to the built user program binary")
	outPath := flag.String("out", "kestrel.img", "path to write the boot image to")
	ver := flag.String("version", "0.0.0-dev", "semver version string to stamp into the image header")
	watch := flag.Bool("watch", false, "rebuild whenever a file in the directory containing -user changes")
	flag.Parse()

	if *kernelPath == "" || *userPath == "" {
		log.Fatal("kestrel-image: -kernel and -user are required")
	}

	if _, err := semver.NewVersion(*ver); err != nil {
		log.Fatalf("kestrel-image: invalid -version %q: %v", *ver, err)
	}

	if err := build(*kernelPath, *userPath, *outPath, *ver); err != nil {
		log.Fatalf("kestrel-image: %v", err)
	}

	if *watch {
		watchAndRebuild(*userPath, *kernelPath, *outPath, *ver)
	}
}

func build(kernelPath, userPath, outPath, ver string) error {
	lockPath := outPath + ".lock"
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}
	defer lock.Close()

	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("locking %s: %w", lockPath, err)
	}
	defer unix.Flock(int(lock.Fd()), unix.LOCK_UN)

	kernel, err := os.ReadFile(kernelPath)
	if err != nil {
		return fmt.Errorf("reading kernel: %w", err)
	}

	user, err := os.ReadFile(userPath)
	if err != nil {
		return fmt.Errorf("reading user program: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	if err := writeHeader(out, ver, len(kernel), len(user)); err != nil {
		return err
	}

	if _, err := out.Write(kernel); err != nil {
		return fmt.Errorf("writing kernel: %w", err)
	}
	if err := padTo4K(out, len(kernel)); err != nil {
		return err
	}
	if _, err := out.Write(user); err != nil {
		return fmt.Errorf("writing user program: %w", err)
	}

	return nil
}

// header layout: magic(4) version-len(4) version-bytes kernel-len(8) user-len(8)
func writeHeader(w io.Writer, ver string, kernelLen, userLen int) error {
	var buf []byte
	put32 := func(v uint32) { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); buf = append(buf, b...) }
	put64 := func(v uint64) { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); buf = append(buf, b...) }

	put32(imageMagic)
	put32(uint32(len(ver)))
	buf = append(buf, []byte(ver)...)
	put64(uint64(kernelLen))
	put64(uint64(userLen))

	_, err := w.Write(buf)
	return err
}

func padTo4K(w io.WriteSeeker, written int) error {
	pad := (4096 - written%4096) % 4096
	if pad == 0 {
		return nil
	}
	_, err := w.Write(make([]byte, pad))
	return err
}

func watchAndRebuild(userPath, kernelPath, outPath, ver string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("kestrel-image: fsnotify: %v", err)
	}
	defer watcher.Close()

	dir := userPath
	if idx := lastSlash(userPath); idx >= 0 {
		dir = userPath[:idx]
	}

	if err := watcher.Add(dir); err != nil {
		log.Fatalf("kestrel-image: watching %s: %v", dir, err)
	}

	log.Printf("kestrel-image: watching %s for changes", dir)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Printf("kestrel-image: rebuilding after change to %s", event.Name)
			if err := build(kernelPath, userPath, outPath, ver); err != nil {
				log.Printf("kestrel-image: rebuild failed: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("kestrel-image: watch error: %v", err)
		}
	}
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
