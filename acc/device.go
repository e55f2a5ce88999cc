// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"fmt"
	"os"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/regs"
)

// Device is a control session with an ACC and its ACDC boards.
//
// A Device owns the table of discovered boards. Its methods issue
// register transactions synchronously and must not be called
// concurrently.
type Device struct {
	msg   log.MsgStream
	tr    Transport
	sleep func(time.Duration)

	err error // first transport error of the current operation
	cfg config

	boards []*acdc.Board // discovered boards, by increasing slot
}

// New creates a control session over the given transport.
func New(tr Transport, opts ...Option) *Device {
	dev := &Device{
		msg:   log.NewMsgStream("acc", log.LvlInfo, os.Stdout),
		tr:    tr,
		sleep: time.Sleep,
		cfg:   newConfig(),
	}
	for _, opt := range opts {
		opt(dev)
	}
	return dev
}

// Boards returns the boards found by the last discovery.
func (dev *Device) Boards() []*acdc.Board { return dev.boards }

// Board returns the discovered board in the given slot.
func (dev *Device) Board(slot int) (*acdc.Board, bool) {
	for _, brd := range dev.boards {
		if brd.Slot == slot {
			return brd, true
		}
	}
	return nil, false
}

// Mask returns the active board mask.
func (dev *Device) Mask() uint8 { return dev.cfg.mask }

// TriggerMode returns the configured trigger mode.
func (dev *Device) TriggerMode() TriggerMode { return dev.cfg.mode }

// Events returns the number of software triggers of a run.
func (dev *Device) Events() int { return dev.cfg.events }

func (dev *Device) write(addr, v uint64) {
	if dev.err != nil {
		return
	}
	err := dev.tr.Write(addr, v)
	if err != nil {
		dev.err = newError(KindHardware, -1, fmt.Sprintf("write 0x%x", addr), err)
	}
}

func (dev *Device) command(cmd regs.Command) {
	dev.write(regs.ACDCCommand, uint64(cmd))
}

func (dev *Device) read(addr uint64) uint64 {
	if dev.err != nil {
		return 0
	}
	v, err := dev.tr.Read(addr)
	if err != nil {
		dev.err = newError(KindHardware, -1, fmt.Sprintf("read 0x%x", addr), err)
		return 0
	}
	return v
}

func (dev *Device) readBlock(req regs.ReadRequest) []uint64 {
	if dev.err != nil {
		return nil
	}
	if err := req.Validate(); err != nil {
		dev.err = newError(KindConfig, -1, req.String(), err)
		return nil
	}
	vs, err := dev.tr.ReadBlock(req)
	if err != nil {
		dev.err = newError(KindHardware, -1, req.String(), err)
		return nil
	}
	if len(vs) < req.Len {
		dev.err = newError(KindHardware, -1, req.String(),
			fmt.Errorf("got %d words, want %d: %w", len(vs), req.Len, ErrShortRead),
		)
		return nil
	}
	return vs
}

// check returns and clears the pending transport error.
func (dev *Device) check() error {
	err := dev.err
	dev.err = nil
	return err
}

// Discover finds the ACDC boards with an aligned link and creates the
// session board table.
func (dev *Device) Discover() ([]int, error) {
	slots := dev.discover()
	if err := dev.check(); err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, newError(KindHardware, -1, "discover", ErrNoBoards)
	}
	return slots, nil
}

func (dev *Device) discover() []int {
	dev.boards = dev.boards[:0]
	slots := dev.connected()
	if dev.err != nil {
		return nil
	}
	if len(slots) == 0 {
		dev.msg.Warnf("no aligned ACDC, resetting all boards...")
		dev.command(regs.Broadcast(regs.OpReset, 0))
		dev.sleep(10 * time.Millisecond)
		slots = dev.connected()
		if dev.err != nil {
			return nil
		}
		if len(slots) == 0 {
			dev.msg.Errorf("no aligned ACDC after reset")
			return nil
		}
	}

	for _, slot := range slots {
		brd := acdc.NewBoard(slot)
		brd.Params = dev.cfg.params(slot)
		dev.boards = append(dev.boards, brd)
	}
	dev.msg.Infof("connected ACDCs: %v", slots)
	return slots
}

func (dev *Device) connected() []int {
	dev.enableTransfer(regs.TransferIdle, 0xff)
	dev.sleep(time.Millisecond)
	dev.write(regs.ResetRX, regs.FlushValue)
	align := dev.read(regs.Alignment)
	if dev.err != nil {
		return nil
	}
	return regs.Connected(align)
}

// EnableTransfer sets the data transfer mode of the boards in mask.
func (dev *Device) EnableTransfer(mode uint16, mask uint8) error {
	dev.enableTransfer(mode, mask)
	return dev.check()
}

func (dev *Device) enableTransfer(mode uint16, mask uint8) {
	dev.command(regs.Encode(regs.OpTransfer, mask, mode))
}

// DumpData flushes the ACC data buffers of the boards in mask.
func (dev *Device) DumpData(mask uint8) error {
	dev.dumpData(mask)
	return dev.check()
}

func (dev *Device) dumpData(mask uint8) {
	dev.write(regs.DumpData, uint64(mask))
}

// SoftwareTrigger issues one software trigger.
func (dev *Device) SoftwareTrigger() error {
	dev.write(regs.SoftTrigger, regs.FlushValue)
	return dev.check()
}

// ResetACDC resets the boards in mask.
func (dev *Device) ResetACDC(mask uint8) error {
	dev.resetACDC(mask)
	return dev.check()
}

func (dev *Device) resetACDC(mask uint8) {
	dev.command(regs.Encode(regs.OpReset, mask, 0))
	dev.msg.Infof("ACDCs reset (mask=0x%02x)", mask)
}

// ResetACC resets the ACC. This takes about 5 seconds.
func (dev *Device) ResetACC() error {
	dev.write(regs.ResetACC, 1)
	dev.sleep(5 * time.Second)
	dev.write(regs.ResetWord, 1)
	if err := dev.check(); err != nil {
		return err
	}
	dev.msg.Infof("ACC reset")
	return nil
}

// ResetLinks flushes the data path of the active boards while
// automatic transmission is disabled.
func (dev *Device) ResetLinks() error {
	dev.write(regs.AutoTransmit, 0)
	dev.sleep(100 * time.Microsecond)
	dev.dumpData(dev.cfg.mask)
	dev.write(regs.AutoTransmit, 1)
	return dev.check()
}

// SetPedestals programs one pedestal value per chip on the boards in mask.
func (dev *Device) SetPedestals(mask uint8, peds []uint16) error {
	if len(peds) != acdc.NumChips {
		return newError(KindConfig, -1, "set pedestals",
			fmt.Errorf("got %d values, want %d: %w", len(peds), acdc.NumChips, ErrPedestals),
		)
	}
	dev.setPedestals(mask, peds)
	return dev.check()
}

func (dev *Device) setPedestals(mask uint8, peds []uint16) {
	for chip, v := range peds {
		dev.command(regs.Encode(regs.OpPedestal, mask, regs.ChipPayload(chip, v)))
	}
}

// SetPedestal programs the same pedestal value on the chips selected
// by chips, on the boards in mask.
func (dev *Device) SetPedestal(mask uint8, chips uint8, adc uint16) error {
	for chip := 0; chip < acdc.NumChips; chip++ {
		if chips&(1<<chip) == 0 {
			continue
		}
		dev.command(regs.Encode(regs.OpPedestal, mask, regs.ChipPayload(chip, adc)))
	}
	return dev.check()
}

// ToggleCal switches the calibration input of the boards in mask.
// When enabled, chans selects the calibrated channels.
func (dev *Device) ToggleCal(on bool, chans uint16, mask uint8) error {
	dev.toggleCal(on, chans, mask)
	return dev.check()
}

func (dev *Device) toggleCal(on bool, chans uint16, mask uint8) {
	if on {
		dev.command(regs.Encode(regs.OpCalEnable, mask, 1))
		dev.command(regs.Encode(regs.OpCalMask, mask, chans))
		return
	}
	dev.command(regs.Encode(regs.OpCalEnable, mask, 0))
	dev.command(regs.Encode(regs.OpCalMask, mask, 0))
}

var jcpllWords = []uint32{
	// registers 0 and 1: 40 MHz output from a 125 MHz input.
	0x5557c060,
	0xff810081,
	// cycle power-down to force a VCO calibration.
	0x00001802,
	0x00001002,
	0x00001802,
	// toggle the sync bit to align output clocks.
	0x00001802,
	0x00000802,
	0x00001802,
}

// ConfigJCPLL programs the jitter-cleaner PLL of the boards in mask.
func (dev *Device) ConfigJCPLL(mask uint8) error {
	dev.configJCPLL(mask)
	return dev.check()
}

func (dev *Device) configJCPLL(mask uint8) {
	for _, word := range jcpllWords {
		dev.sendPLLWord(word, mask)
		dev.sleep(2 * time.Millisecond)
	}
}

func (dev *Device) sendPLLWord(word uint32, mask uint8) {
	lo, hi := regs.PLLHalves(word)
	dev.command(regs.Encode(regs.OpPLLClear, mask, 0))
	dev.command(regs.Encode(regs.OpPLLLower, mask, lo))
	dev.command(regs.Encode(regs.OpPLLUpper, mask, hi))
	dev.command(regs.Encode(regs.OpPLLSet, mask, 0))
	dev.command(regs.Encode(regs.OpPLLClear, mask, 0))
}
