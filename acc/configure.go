// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"fmt"
	"time"

	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/regs"
	"github.com/hashicorp/go-multierror"
)

// Configure discovers the connected boards and brings the ACC and its
// boards into a state ready to take data: per-board setup, link
// training and phase calibration, calibration input, trigger mode.
//
// Errors affecting a single board do not stop the configuration of the
// other boards; they are collected and returned together.
func (dev *Device) Configure() error {
	dev.msg.Infof("configuring (trigger=%v, mask=0x%02x)...", dev.cfg.mode, dev.cfg.mask)

	if _, err := dev.Discover(); err != nil {
		return fmt.Errorf("acc: could not discover ACDC boards: %w", err)
	}

	var errs *multierror.Error
	collect := func(err error) {
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	// leftovers from a previous session.
	dev.write(regs.ClearSlowRX, regs.FlushValue)
	collect(dev.check())

	for _, brd := range dev.boards {
		collect(dev.configureBoard(brd))
	}

	dev.disableTriggers()
	dev.enableTransfer(regs.TransferIdle, 0xff)
	dev.write(regs.AutoTransmit, 0)
	dev.dumpData(dev.cfg.mask)
	dev.write(regs.TrainLinks, 0)
	dev.sleep(250 * time.Microsecond)
	if err := dev.check(); err != nil {
		errs = multierror.Append(errs, err)
		return errs
	}

	ps := dev.scanLinkPhase(dev.cfg.mask)
	if err := dev.check(); err != nil {
		errs = multierror.Append(errs, err)
		return errs
	}
	for ch, phase := range ps.Phase {
		if phase < 0 {
			continue
		}
		dev.msg.Infof("link %d: phase=%d (window=%d)", ch, phase, ps.Width[ch])
	}

	for _, brd := range dev.boards {
		if !regs.Has(dev.cfg.mask, brd.Slot) {
			continue
		}
		dev.toggleCal(brd.Params.CalibMode, dev.cfg.calMask, brd.Mask())
	}
	collect(dev.check())

	collect(dev.setupTrigger(dev.cfg.mode, dev.cfg.mask))
	collect(dev.check())

	dev.write(regs.BackpressDepth, regs.DepthDefault)
	collect(dev.check())

	if err := errs.ErrorOrNil(); err != nil {
		dev.msg.Errorf("configuration failed: %+v", err)
		return err
	}
	dev.msg.Infof("configuring... [done]")
	return nil
}

func (dev *Device) configureBoard(brd *acdc.Board) error {
	var (
		p    = brd.Params
		mask = brd.Mask()
		errs *multierror.Error
	)

	if p.Reset {
		dev.resetACDC(mask)
		dev.sleep(5 * time.Millisecond)
	}

	inf, err := dev.readSlowControl(brd.Slot, dev.cfg.timeout)
	switch {
	case err != nil:
		errs = multierror.Append(errs, err)
		dev.err = nil
	default:
		dev.checkInfo(brd.Slot, inf)
		if !inf.Locked(acdc.LockSys) {
			dev.msg.Warnf("ACDC%d: unlocked system PLL, configuring jitter-cleaner PLL...", brd.Slot)
			dev.configJCPLL(0xff)
			dev.resetACDC(0xff)
			dev.sleep(5 * time.Millisecond)

			inf, err = dev.readSlowControl(brd.Slot, dev.cfg.timeout)
			switch {
			case err != nil:
				errs = multierror.Append(errs, err)
				dev.err = nil
			case !inf.HeaderOK():
				dev.msg.Warnf("ACDC%d: invalid info frame", brd.Slot)
			case !inf.Locked(acdc.LockSys):
				dev.msg.Errorf("ACDC%d: unlocked system PLL", brd.Slot)
			}
		}
	}

	if len(p.Pedestals) == acdc.NumChips {
		dev.setPedestals(mask, p.Pedestals)
	} else {
		errs = multierror.Append(errs, newError(KindConfig, brd.Slot, "pedestals",
			fmt.Errorf("got %d values, want %d: %w", len(p.Pedestals), acdc.NumChips, ErrPedestals),
		))
	}

	for chip := 0; chip < acdc.NumChips; chip++ {
		dev.command(regs.Encode(regs.OpDLLVdd, mask, regs.ChipPayload(chip, p.DLLVdd)))
	}

	bp := uint16(0)
	if p.Backpressure {
		bp = 1
	}
	dev.command(regs.Encode(regs.OpBackpress, mask, bp))

	if err := dev.check(); err != nil {
		errs = multierror.Append(errs, newError(KindHardware, brd.Slot, "configure", err))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return err
	}
	dev.msg.Infof("ACDC%d configured", brd.Slot)
	return nil
}

func (dev *Device) checkInfo(slot int, inf acdc.InfoFrame) {
	if !inf.HeaderOK() {
		dev.msg.Warnf("ACDC%d: invalid info frame", slot)
	}
	for _, pll := range []struct {
		bit  uint64
		name string
	}{
		{acdc.LockACC, "ACC"},
		{acdc.LockSerial, "serial"},
		{acdc.LockWR, "white-rabbit"},
	} {
		if !inf.Locked(pll.bit) {
			dev.msg.Warnf("ACDC%d: unlocked %s PLL", slot, pll.name)
		}
	}
}
