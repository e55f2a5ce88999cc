// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/regs"
)

type config struct {
	mode   TriggerMode
	mask   uint8 // active board mask
	events int   // number of software triggers per run

	trig struct {
		polarity uint64
		start    uint64 // validation window start
		window   uint64 // validation window length
	}

	coinc struct {
		mask    uint64
		delay   [regs.NumSlots]uint64
		stretch [regs.NumSlots]uint64
	}

	boards  map[int]acdc.Params // per-slot ACDC parameters
	timeout int                 // slow-control polling iterations
	calMask uint16              // calibration channel mask
	reset   bool                // reset the boards at run start
}

func newConfig() config {
	cfg := config{
		mode:    TrigSoftware,
		mask:    0xff,
		events:  100,
		boards:  make(map[int]acdc.Params),
		timeout: DefaultTimeout,
		calMask: 0x7fff,
	}
	cfg.coinc.mask = 0x0f
	for i := range cfg.coinc.stretch {
		cfg.coinc.stretch[i] = 5
	}
	return cfg
}

func (cfg *config) params(slot int) acdc.Params {
	if p, ok := cfg.boards[slot]; ok {
		return p
	}
	return acdc.DefaultParams()
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the message stream of the device.
func WithLogger(msg log.MsgStream) Option {
	return func(dev *Device) {
		dev.msg = msg
	}
}

// WithTriggerMode sets the trigger mode programmed at configuration.
func WithTriggerMode(mode TriggerMode) Option {
	return func(dev *Device) {
		dev.cfg.mode = mode
	}
}

// WithBoardMask sets the mask of the boards taking part in the run.
func WithBoardMask(mask uint8) Option {
	return func(dev *Device) {
		dev.cfg.mask = mask
	}
}

// WithEvents sets the number of software triggers issued per run.
func WithEvents(n int) Option {
	return func(dev *Device) {
		dev.cfg.events = n
	}
}

// WithTrigPolarity sets the polarity of the SMA trigger input.
func WithTrigPolarity(pol uint64) Option {
	return func(dev *Device) {
		dev.cfg.trig.polarity = pol
	}
}

// WithValidation sets the start and length of the trigger validation
// window.
func WithValidation(start, window uint64) Option {
	return func(dev *Device) {
		dev.cfg.trig.start = start
		dev.cfg.trig.window = window
	}
}

// WithCoincidence sets the coincidence trigger mask and the per-slot
// delays and stretches.
func WithCoincidence(mask uint64, delay, stretch [regs.NumSlots]uint64) Option {
	return func(dev *Device) {
		dev.cfg.coinc.mask = mask
		dev.cfg.coinc.delay = delay
		dev.cfg.coinc.stretch = stretch
	}
}

// WithBoard sets the parameters of the ACDC board in the given slot.
func WithBoard(slot int, p acdc.Params) Option {
	return func(dev *Device) {
		dev.cfg.boards[slot] = p
	}
}

// WithTimeout sets the number of 10µs polling iterations allowed for
// a slow-control read.
func WithTimeout(n int) Option {
	return func(dev *Device) {
		dev.cfg.timeout = n
	}
}

// WithCalMask sets the channel mask used when the calibration input
// is enabled.
func WithCalMask(mask uint16) Option {
	return func(dev *Device) {
		dev.cfg.calMask = mask
	}
}

// WithResetOnStart resets the active boards at the start of each run.
func WithResetOnStart(v bool) Option {
	return func(dev *Device) {
		dev.cfg.reset = v
	}
}
