// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/regs"
)

func TestDiscover(t *testing.T) {
	tr := newFakeTransport()
	tr.regs[regs.Alignment] = 0xfffa // slots 0 and 2

	p := acdc.DefaultParams()
	p.DLLVdd = 0x123
	dev := newTestDevice(tr, WithBoard(2, p))

	slots, err := dev.Discover()
	if err != nil {
		t.Fatalf("could not discover boards: %+v", err)
	}
	if got, want := slots, []int{0, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid slots: got=%v, want=%v", got, want)
	}
	if got, want := len(dev.Boards()), 2; got != want {
		t.Fatalf("invalid number of boards: got=%d, want=%d", got, want)
	}
	brd, ok := dev.Board(2)
	if !ok {
		t.Fatalf("could not find board 2")
	}
	if got, want := brd.Params.DLLVdd, uint16(0x123); got != want {
		t.Fatalf("invalid board params: got=0x%x, want=0x%x", got, want)
	}
	if _, ok := dev.Board(1); ok {
		t.Fatalf("unexpected board 1")
	}

	if got, want := tr.writes, []wr{
		{regs.ACDCCommand, uint64(regs.Encode(regs.OpTransfer, 0xff, regs.TransferIdle))},
		{regs.ResetRX, 0xff},
	}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid writes:\ngot= %+v\nwant=%+v", got, want)
	}
}

func TestDiscoverRetry(t *testing.T) {
	tr := newFakeTransport()
	tr.seq[regs.Alignment] = []uint64{0xffff, 0xff7f}

	var slept []time.Duration
	dev := newTestDevice(tr)
	dev.sleep = func(d time.Duration) { slept = append(slept, d) }

	slots, err := dev.Discover()
	if err != nil {
		t.Fatalf("could not discover boards: %+v", err)
	}
	if got, want := slots, []int{7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid slots: got=%v, want=%v", got, want)
	}

	cmds := tr.commands()
	var resets int
	for _, cmd := range cmds {
		if cmd == regs.Broadcast(regs.OpReset, 0) {
			resets++
		}
	}
	if resets != 1 {
		t.Fatalf("invalid number of broadcast resets: got=%d, want=1", resets)
	}
	if got, want := slept, []time.Duration{time.Millisecond, 10 * time.Millisecond, time.Millisecond}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid sleeps: got=%v, want=%v", got, want)
	}
}

func TestDiscoverNoBoards(t *testing.T) {
	tr := newFakeTransport()
	tr.regs[regs.Alignment] = 0xffff

	dev := newTestDevice(tr)
	_, err := dev.Discover()
	if !errors.Is(err, ErrNoBoards) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, ErrNoBoards)
	}
	if got, want := KindOf(err), KindHardware; got != want {
		t.Fatalf("invalid kind: got=%v, want=%v", got, want)
	}
	if len(dev.Boards()) != 0 {
		t.Fatalf("unexpected boards: %v", dev.Boards())
	}
}

func TestDiscoverTransportError(t *testing.T) {
	tr := newFakeTransport()
	addr := regs.ResetRX
	tr.failAddr = &addr

	dev := newTestDevice(tr)
	_, err := dev.Discover()
	if !errors.Is(err, errFake) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, errFake)
	}
	if got, want := KindOf(err), KindHardware; got != want {
		t.Fatalf("invalid kind: got=%v, want=%v", got, want)
	}
	if len(tr.reads) != 0 {
		t.Fatalf("read issued after a failed write")
	}
}

func TestMaintenance(t *testing.T) {
	for _, tc := range []struct {
		name string
		f    func(dev *Device) error
		want []wr
	}{
		{
			name: "enable-transfer",
			f:    func(dev *Device) error { return dev.EnableTransfer(regs.TransferData, 0x03) },
			want: []wr{{regs.ACDCCommand, 0x03f60003}},
		},
		{
			name: "dump-data",
			f:    func(dev *Device) error { return dev.DumpData(0x05) },
			want: []wr{{regs.DumpData, 0x05}},
		},
		{
			name: "software-trigger",
			f:    func(dev *Device) error { return dev.SoftwareTrigger() },
			want: []wr{{regs.SoftTrigger, 0xff}},
		},
		{
			name: "reset-acdc",
			f:    func(dev *Device) error { return dev.ResetACDC(0x02) },
			want: []wr{{regs.ACDCCommand, 0x02ff0000}},
		},
		{
			name: "reset-acc",
			f:    func(dev *Device) error { return dev.ResetACC() },
			want: []wr{{regs.ResetACC, 1}, {regs.ResetWord, 1}},
		},
		{
			name: "reset-links",
			f:    func(dev *Device) error { return dev.ResetLinks() },
			want: []wr{
				{regs.AutoTransmit, 0},
				{regs.DumpData, 0xff},
				{regs.AutoTransmit, 1},
			},
		},
		{
			name: "pedestals",
			f: func(dev *Device) error {
				return dev.SetPedestals(0x01, []uint16{1, 2, 3, 4, 5})
			},
			want: []wr{
				{regs.ACDCCommand, 0x01a20001},
				{regs.ACDCCommand, 0x01a21002},
				{regs.ACDCCommand, 0x01a22003},
				{regs.ACDCCommand, 0x01a23004},
				{regs.ACDCCommand, 0x01a24005},
			},
		},
		{
			name: "pedestal",
			f:    func(dev *Device) error { return dev.SetPedestal(0x01, 0x12, 0x800) },
			want: []wr{
				{regs.ACDCCommand, 0x01a21800},
				{regs.ACDCCommand, 0x01a24800},
			},
		},
		{
			name: "cal-on",
			f:    func(dev *Device) error { return dev.ToggleCal(true, 0x7fff, 0x01) },
			want: []wr{
				{regs.ACDCCommand, 0x01c10001},
				{regs.ACDCCommand, 0x01c07fff},
			},
		},
		{
			name: "cal-off",
			f:    func(dev *Device) error { return dev.ToggleCal(false, 0x7fff, 0x01) },
			want: []wr{
				{regs.ACDCCommand, 0x01c10000},
				{regs.ACDCCommand, 0x01c00000},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tr := newFakeTransport()
			dev := newTestDevice(tr)
			err := tc.f(dev)
			if err != nil {
				t.Fatalf("error: %+v", err)
			}
			if got, want := tr.writes, tc.want; !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid writes:\ngot= %x\nwant=%x", got, want)
			}
		})
	}
}

func TestSetPedestalsInvalid(t *testing.T) {
	tr := newFakeTransport()
	dev := newTestDevice(tr)
	err := dev.SetPedestals(0xff, []uint16{1, 2})
	if !errors.Is(err, ErrPedestals) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, ErrPedestals)
	}
	if got, want := KindOf(err), KindConfig; got != want {
		t.Fatalf("invalid kind: got=%v, want=%v", got, want)
	}
	if len(tr.writes) != 0 {
		t.Fatalf("unexpected writes: %+v", tr.writes)
	}
}

func TestConfigJCPLL(t *testing.T) {
	tr := newFakeTransport()
	dev := newTestDevice(tr)
	err := dev.ConfigJCPLL(0x01)
	if err != nil {
		t.Fatalf("could not configure JC-PLL: %+v", err)
	}

	cmds := tr.commands()
	if got, want := len(cmds), 5*len(jcpllWords); got != want {
		t.Fatalf("invalid number of commands: got=%d, want=%d", got, want)
	}
	want := []regs.Command{
		regs.Encode(regs.OpPLLClear, 0x01, 0),
		regs.Encode(regs.OpPLLLower, 0x01, 0xc060),
		regs.Encode(regs.OpPLLUpper, 0x01, 0x5557),
		regs.Encode(regs.OpPLLSet, 0x01, 0),
		regs.Encode(regs.OpPLLClear, 0x01, 0),
	}
	if got := cmds[:5]; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid first PLL word:\ngot= %v\nwant=%v", got, want)
	}
}
