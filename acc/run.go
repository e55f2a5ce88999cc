// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-lpc/psec/regs"
)

// Start enables data transfer and triggers for a new run.
func (dev *Device) Start(run uint32) error {
	dev.msg.Infof("start run %d...", run)
	mask := dev.cfg.mask

	if dev.cfg.reset {
		dev.resetACDC(mask)
		dev.sleep(5 * time.Millisecond)
	}
	dev.dumpData(mask)
	dev.sleep(time.Millisecond)
	if err := dev.check(); err != nil {
		return err
	}

	if b, ok := dev.tr.(Burster); ok {
		err := b.StartBurst()
		if err != nil {
			return newError(KindHardware, -1, "start burst", err)
		}
	}

	dev.enableTransfer(regs.TransferData, mask)
	dev.write(regs.AutoTransmit, 1)
	dev.setHardwareTrigSrc(int(dev.cfg.mode), mask)
	if err := dev.check(); err != nil {
		return fmt.Errorf("acc: could not start run %d: %w", run, err)
	}
	dev.msg.Infof("start run %d... [done]", run)
	return nil
}

// Stop disables triggers and data transfer.
func (dev *Device) Stop() error {
	dev.msg.Infof("stop run...")
	dev.setHardwareTrigSrc(0, 0xff)
	dev.enableTransfer(regs.TransferIdle, 0xff)
	dev.write(regs.AutoTransmit, 0)
	dev.sleep(100 * time.Microsecond)
	if err := dev.check(); err != nil {
		return fmt.Errorf("acc: could not stop run: %w", err)
	}

	if b, ok := dev.tr.(Burster); ok {
		err := b.StopBurst()
		if err != nil {
			return newError(KindHardware, -1, "stop burst", err)
		}
	}
	dev.msg.Infof("stop run... [done]")
	return nil
}

// softTrigPeriod covers the PSEC4 readout time.
const softTrigPeriod = 300 * time.Microsecond

// Listen issues n software triggers when the device is in software
// trigger mode, or issues them until ctx is done when n is not positive.
// It returns the number of issued triggers.
func (dev *Device) Listen(ctx context.Context, n int) (int, error) {
	if dev.cfg.mode != TrigSoftware {
		return 0, nil
	}

	i := 0
	for n <= 0 || i < n {
		select {
		case <-ctx.Done():
			return i, nil
		default:
		}
		dev.write(regs.SoftTrigger, regs.FlushValue)
		if err := dev.check(); err != nil {
			return i, err
		}
		i++
		dev.sleep(softTrigPeriod)
	}
	return i, nil
}
