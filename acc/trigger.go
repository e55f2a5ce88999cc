// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/regs"
	"github.com/hashicorp/go-multierror"
)

// TriggerMode selects how events are triggered.
type TriggerMode int

const (
	TrigOff           TriggerMode = 0 // no trigger
	TrigSoftware      TriggerMode = 1 // software triggers from the ACC
	TrigSelf          TriggerMode = 2 // ACDC self-trigger
	TrigSelfValidated TriggerMode = 3 // ACDC self-trigger validated by the ACC
	TrigCoincident    TriggerMode = 4 // ACC coincidence of ACDC self-triggers
	TrigSMAValidated  TriggerMode = 5 // self-trigger validated by the ACC SMA input
)

var trigNames = []string{
	TrigOff:           "off",
	TrigSoftware:      "software",
	TrigSelf:          "self",
	TrigSelfValidated: "self-validated",
	TrigCoincident:    "coincident",
	TrigSMAValidated:  "sma-validated",
}

func (mode TriggerMode) String() string {
	if mode < 0 || int(mode) >= len(trigNames) {
		return "TriggerMode(" + strconv.Itoa(int(mode)) + ")"
	}
	return trigNames[mode]
}

// ParseTriggerMode parses a trigger mode from its name or number.
func ParseTriggerMode(s string) (TriggerMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range trigNames {
		if s == name {
			return TriggerMode(i), nil
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v >= len(trigNames) {
		return 0, fmt.Errorf("acc: could not parse trigger mode %q: %w", s, ErrTriggerMode)
	}
	return TriggerMode(v), nil
}

// trigStep is one register programming procedure of a trigger mode.
type trigStep struct {
	name  string
	apply func(dev *Device, mode TriggerMode, mask uint8) error
}

var (
	stepOff = trigStep{"off", func(dev *Device, mode TriggerMode, mask uint8) error {
		dev.msg.Warnf("trigger source turned off")
		return nil
	}}
	stepSource = trigStep{"hardware-source", func(dev *Device, mode TriggerMode, mask uint8) error {
		dev.setHardwareTrigSrc(int(mode), mask)
		return nil
	}}
	stepValidTimeout = trigStep{"validation-timeout", func(dev *Device, mode TriggerMode, mask uint8) error {
		// 40 clock ticks: 1µs.
		dev.command(regs.Encode(regs.OpValidTimeout, mask, 40))
		return nil
	}}
	stepSelfTrigger = trigStep{"self-trigger", (*Device).setupSelfTrigger}
	stepCoincidence = trigStep{"coincidence", func(dev *Device, mode TriggerMode, mask uint8) error {
		dev.write(regs.CoincMask, dev.cfg.coinc.mask)
		for i := 0; i < regs.NumSlots; i++ {
			dev.write(regs.Reg(regs.CoincDelay, i), dev.cfg.coinc.delay[i])
			dev.write(regs.Reg(regs.CoincStretch, i), dev.cfg.coinc.stretch[i])
		}
		return nil
	}}
	stepSMAValidation = trigStep{"sma-validation", func(dev *Device, mode TriggerMode, mask uint8) error {
		dev.write(regs.TrigPolarity, dev.cfg.trig.polarity)
		dev.write(regs.ValidStart, dev.cfg.trig.start)
		dev.write(regs.ValidWindow, dev.cfg.trig.window)
		return nil
	}}
)

// triggerSteps returns the ordered programming procedures of mode.
// Each validated mode extends the procedures of the simpler mode it
// builds upon.
func triggerSteps(mode TriggerMode) ([]trigStep, error) {
	var (
		selfValidated = []trigStep{stepSource, stepValidTimeout, stepSelfTrigger}
		coincident    = concatSteps([]trigStep{stepCoincidence}, selfValidated)
		smaValidated  = concatSteps([]trigStep{stepSMAValidation}, coincident)
	)

	switch mode {
	case TrigOff:
		return []trigStep{stepOff}, nil
	case TrigSoftware:
		return []trigStep{stepSource}, nil
	case TrigSelf:
		return []trigStep{stepSelfTrigger}, nil
	case TrigSelfValidated:
		return selfValidated, nil
	case TrigCoincident:
		return coincident, nil
	case TrigSMAValidated:
		return smaValidated, nil
	}
	return nil, newError(KindConfig, -1, "setup trigger",
		fmt.Errorf("mode %d: %w", int(mode), ErrTriggerMode),
	)
}

func concatSteps(steps ...[]trigStep) []trigStep {
	var o []trigStep
	for _, s := range steps {
		o = append(o, s...)
	}
	return o
}

// SetupTrigger programs the trigger mode on the boards in mask.
func (dev *Device) SetupTrigger(mode TriggerMode, mask uint8) error {
	err := dev.setupTrigger(mode, mask)
	if e := dev.check(); e != nil {
		return e
	}
	return err
}

func (dev *Device) setupTrigger(mode TriggerMode, mask uint8) error {
	steps, err := triggerSteps(mode)
	if err != nil {
		dev.msg.Errorf("could not setup trigger: %+v", err)
		return err
	}

	var errs *multierror.Error
	for _, step := range steps {
		dev.msg.Debugf("trigger %v: %s", mode, step.name)
		if err := step.apply(dev, mode, mask); err != nil {
			errs = multierror.Append(errs, err)
		}
		if dev.err != nil {
			break
		}
	}
	return errs.ErrorOrNil()
}

// hardware trigger sources for the ACC and the ACDCs, by mode.
var trigSources = map[int][2]uint64{
	0: {0, 0},
	1: {1, 1},
	2: {0, 2},
	3: {2, 1},
	4: {5, 3},
}

// SetHardwareTrigSrc selects the hardware trigger source of the ACC
// slots and of the ACDCs in mask. Unknown sources disable triggers.
func (dev *Device) SetHardwareTrigSrc(src int, mask uint8) error {
	dev.setHardwareTrigSrc(src, mask)
	return dev.check()
}

func (dev *Device) setHardwareTrigSrc(src int, mask uint8) {
	srcs := trigSources[src]
	for i := 0; i < regs.NumSlots; i++ {
		v := uint64(0)
		if regs.Has(mask, i) {
			v = srcs[0]
		}
		dev.write(regs.Reg(regs.AccTrigMode, i), v)
	}
	dev.command(regs.Encode(regs.OpTrigMode, mask, uint16(srcs[1])))
}

// disableTriggers turns off the triggers of every slot.
func (dev *Device) disableTriggers() {
	for i := 0; i < regs.NumSlots; i++ {
		dev.write(regs.Reg(regs.AccTrigMode, i), 0)
	}
	dev.command(regs.Encode(regs.OpTrigMode, 0xff, 0))
}

// setupSelfTrigger programs the self-trigger mask, polarity and
// thresholds of each discovered board in mask. Boards with an invalid
// threshold table are reported and skipped for threshold programming.
func (dev *Device) setupSelfTrigger(mode TriggerMode, mask uint8) error {
	var errs *multierror.Error
	for _, brd := range dev.boards {
		if !regs.Has(mask, brd.Slot) {
			continue
		}
		var (
			p    = brd.Params
			bmsk = brd.Mask()
		)
		for chip := 0; chip < acdc.NumChips; chip++ {
			dev.command(regs.Encode(regs.OpSelfTrig, bmsk, regs.SelfTrigMaskPayload(chip, p.SelfTrigMask)))
		}
		dev.command(regs.Encode(regs.OpSelfTrig, bmsk, regs.SelfTrigPolarityPayload(p.SelfTrigPolarity)))

		if len(p.Thresholds) != acdc.NumChannels {
			err := newError(KindConfig, brd.Slot, "self-trigger thresholds",
				fmt.Errorf("got %d values, want %d: %w", len(p.Thresholds), acdc.NumChannels, ErrThresholds),
			)
			dev.msg.Errorf("%+v", err)
			errs = multierror.Append(errs, err)
			continue
		}
		for chip := 0; chip < acdc.NumChips; chip++ {
			for ch := 0; ch < acdc.NumChanPerChip; ch++ {
				thr := p.Thresholds[acdc.NumChanPerChip*chip+ch]
				dev.command(regs.Encode(regs.OpThreshold+regs.Op(ch), bmsk, regs.ChipPayload(chip, thr)))
			}
		}
	}
	return errs.ErrorOrNil()
}
