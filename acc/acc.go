// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acc controls an ACC central card and the ACDC front-end
// boards connected to it: board discovery, configuration, link phase
// calibration, trigger programming and run control.
package acc // import "github.com/go-lpc/psec/acc"

import (
	"github.com/go-lpc/psec/regs"
)

// Transport gives access to the ACC registers.
//
// Implementations must serialize requests: a reply is always the one
// of the last issued read.
type Transport interface {
	Write(addr, v uint64) error
	Read(addr uint64) (uint64, error)
	ReadBlock(req regs.ReadRequest) ([]uint64, error)
}

// Burster is implemented by transports that need to be switched in
// and out of the burst data streaming mode.
type Burster interface {
	StartBurst() error
	StopBurst() error
}
