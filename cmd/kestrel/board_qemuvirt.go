// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !rpi4

package main

import "github.com/kestrel-os/kestrel/board/qemuvirt"

func selectBoard() consoleBoard {
	qemuvirt.Board.Init()
	return qemuvirt.Board
}
