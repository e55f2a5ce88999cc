// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"fmt"
	"time"

	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/regs"
)

// DefaultTimeout is the default number of polling iterations of a
// slow-control read.
const DefaultTimeout = 1000

const pollPeriod = 10 * time.Microsecond

// ReadSlowControl requests the information frame of the board in the
// given slot and waits for it, polling the RX occupancy up to timeout
// times. It fails with ErrTimeout when the frame is not complete in time.
func (dev *Device) ReadSlowControl(slot, timeout int) (acdc.InfoFrame, error) {
	inf, err := dev.readSlowControl(slot, timeout)
	if e := dev.check(); e != nil {
		return acdc.InfoFrame{}, e
	}
	return inf, err
}

func (dev *Device) readSlowControl(slot, timeout int) (acdc.InfoFrame, error) {
	dev.command(regs.Encode(regs.OpInfo, 1<<slot, 0))

	occ := regs.Reg(regs.RXOccupancy, slot)
	n := dev.read(occ)
	for it := timeout; n < acdc.InfoLen && it > 0 && dev.err == nil; it-- {
		dev.sleep(pollPeriod)
		n = dev.read(occ)
	}
	if dev.err != nil {
		return acdc.InfoFrame{}, dev.err
	}
	if n < acdc.InfoLen {
		return acdc.InfoFrame{}, newError(KindTimeout, slot, "read info frame",
			fmt.Errorf("occupancy=%d after %d iterations: %w", n, timeout, ErrTimeout),
		)
	}

	buf := dev.readBlock(regs.FIFO(regs.Reg(regs.RXBuffer, slot), acdc.InfoLen))
	if dev.err != nil {
		return acdc.InfoFrame{}, dev.err
	}
	inf, err := acdc.ParseInfo(buf)
	if err != nil {
		return inf, newError(KindHardware, slot, "read info frame", err)
	}
	return inf, nil
}
