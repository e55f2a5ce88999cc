// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acdc

import (
	"fmt"
	"io"

	"golang.org/x/xerrors"
)

// InfoLen is the length, in 64-bit words, of an ACDC information frame.
const InfoLen = 32

const (
	infoHeader0 = 0x1234
	infoHeader1 = 0xbbbb
	infoFooter0 = 0xbbbb
	infoFooter1 = 0x4321
)

// PLL lock bits, from word 6 of the information frame.
const (
	LockWR     = 0x1 // white-rabbit PLL
	LockSerial = 0x2 // serial link PLL
	LockACC    = 0x4 // ACC clock PLL
	LockSys    = 0x8 // system (jitter-cleaner) PLL
)

// InfoFrame is the slow-control information frame of an ACDC board.
type InfoFrame struct {
	Raw []uint64
}

// ParseInfo wraps a raw information frame.
func ParseInfo(buf []uint64) (InfoFrame, error) {
	if len(buf) < InfoLen {
		return InfoFrame{}, xerrors.Errorf(
			"acdc: short info frame (len=%d, want=%d)", len(buf), InfoLen,
		)
	}
	return InfoFrame{Raw: buf}, nil
}

// HeaderOK returns whether the leading header word is valid.
func (inf InfoFrame) HeaderOK() bool {
	return inf.Raw[0]&0xffff == infoHeader0
}

// Valid returns whether both header and footer words are valid.
func (inf InfoFrame) Valid() bool {
	return inf.Raw[0] == infoHeader0 && inf.Raw[1] == infoHeader1 &&
		inf.Raw[30] == infoFooter0 && inf.Raw[31] == infoFooter1
}

func (inf InfoFrame) Firmware() uint64 { return inf.Raw[2] }

// Date returns the firmware date.
func (inf InfoFrame) Date() (year, month, day int) {
	year = int(inf.Raw[3])
	month = int(inf.Raw[4]>>8) & 0xff
	day = int(inf.Raw[4]) & 0xff
	return year, month, day
}

// Locks returns the PLL lock bits.
func (inf InfoFrame) Locks() uint64 { return inf.Raw[6] & 0xf }

// Locked returns whether all PLLs selected by bits are locked.
func (inf InfoFrame) Locked(bits uint64) bool {
	return inf.Raw[6]&bits == bits
}

func (inf InfoFrame) FLLLocks() uint64 { return (inf.Raw[6] >> 4) & 0x1f }
func (inf InfoFrame) Backpressure() bool { return inf.Raw[5]&0x2 != 0 }
func (inf InfoFrame) ParityError() bool { return inf.Raw[5]&0x1 != 0 }
func (inf InfoFrame) Events() uint64 { return inf.u32(15) }
func (inf InfoFrame) IDFrames() uint64 { return inf.u32(17) }
func (inf InfoFrame) Triggers() uint64 { return inf.u32(11) }
func (inf InfoFrame) Accepted() uint64 { return inf.u32(13) }
func (inf InfoFrame) WRTimeFIFO() uint64 { return inf.Raw[26] }
func (inf InfoFrame) SysTimeFIFO() uint64 { return inf.Raw[27] }

// PSECFIFO returns the FIFO occupancy of the given PSEC4 chip.
func (inf InfoFrame) PSECFIFO(chip int) uint64 { return inf.Raw[21+chip] }

func (inf InfoFrame) u32(i int) uint64 {
	return inf.Raw[i]<<16 | inf.Raw[i+1]
}

// WriteTo writes a human readable summary of the frame to w.
func (inf InfoFrame) WriteTo(w io.Writer) (int64, error) {
	var (
		n   int64
		err error
	)
	pr := func(format string, args ...interface{}) {
		if err != nil {
			return
		}
		var nn int
		nn, err = fmt.Fprintf(w, format, args...)
		n += int64(nn)
	}

	b2i := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}

	y, m, d := inf.Date()
	status := "wrong"
	if inf.Valid() {
		status = "correct"
	}
	pr("  firmware:         0x%x (%04x/%02x/%02x)\n", inf.Firmware(), y, m, d)
	pr("  header/footer:    %4x %4x %4x %4x (%s)\n", inf.Raw[0], inf.Raw[1], inf.Raw[30], inf.Raw[31], status)
	pr("  PLL locks:        acc=%d serial=%d sys=%d wr=%d\n",
		b2i(inf.Locked(LockACC)), b2i(inf.Locked(LockSerial)),
		b2i(inf.Locked(LockSys)), b2i(inf.Locked(LockWR)),
	)
	pr("  FLL locks:        %8x\n", inf.FLLLocks())
	pr("  backpressure:     %8d\n", b2i(inf.Backpressure()))
	pr("  parity error:     %8d\n", b2i(inf.ParityError()))
	pr("  events:           %8d\n", inf.Events())
	pr("  ID frames:        %8d\n", inf.IDFrames())
	pr("  triggers (all):   %8d\n", inf.Triggers())
	pr("  triggers (acc.):  %8d\n", inf.Accepted())
	for i := 0; i < NumChips; i++ {
		pr("  PSEC%d FIFO:       %8d\n", i, inf.PSECFIFO(i))
	}
	pr("  WR time FIFO:     %8d\n", inf.WRTimeFIFO())
	pr("  sys time FIFO:    %8d\n", inf.SysTimeFIFO())

	return n, err
}
