// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/regs"
)

// ACC PLL lock bits, from word 2 of the ACC information frame.
const (
	AccLockSys    = 0x1
	AccLockSerial = 0x2
	AccLockDPA1   = 0x4
	AccLockDPA2   = 0x8
)

// AccInfo is the information frame of the ACC.
type AccInfo struct {
	Raw []uint64
}

func (inf AccInfo) Firmware() uint64 { return inf.Raw[0] }

// Date returns the firmware date.
func (inf AccInfo) Date() (year, month, day int) {
	v := inf.Raw[1]
	year = int(v>>16) & 0xffff
	month = int(v>>8) & 0xff
	day = int(v) & 0xff
	return year, month, day
}

// Locked returns whether all PLLs selected by bits are locked.
func (inf AccInfo) Locked(bits uint64) bool { return inf.Raw[2]&bits == bits }

// Links returns the link status words.
func (inf AccInfo) Links() []uint64 { return inf.Raw[16:20] }

// AccLinkStats is the extended information frame of the ACC, holding
// the per-link FIFO occupancies and error counters.
type AccLinkStats struct {
	Raw []uint64
}

// PRBSErrors returns the PRBS error counters of both lanes of link ch.
func (ls AccLinkStats) PRBSErrors(ch int) [2]uint64 { return ls.pair(16, ch) }

// SymbolErrors returns the symbol error counters of both lanes of link ch.
func (ls AccLinkStats) SymbolErrors(ch int) [2]uint64 { return ls.pair(32, ch) }

// ParityErrors returns the parity error counters of both lanes of link ch.
func (ls AccLinkStats) ParityErrors(ch int) [2]uint64 { return ls.pair(64, ch) }

// RXOccupancy returns the RX FIFO occupancy of link ch.
func (ls AccLinkStats) RXOccupancy(ch int) uint64 { return ls.Raw[56+ch] }

// SelfTriggers returns the self-trigger count of board ch.
func (ls AccLinkStats) SelfTriggers(ch int) uint64 { return ls.Raw[80+ch] }

func (ls AccLinkStats) pair(beg, ch int) [2]uint64 {
	return [2]uint64{ls.Raw[beg+2*ch], ls.Raw[beg+2*ch+1]}
}

// Versions holds the information frames of an ACC and its boards.
type Versions struct {
	ACC    AccInfo
	Links  AccLinkStats
	Boards map[int]acdc.InfoFrame
}

// WriteTo prints a summary of the firmware versions.
func (vs Versions) WriteTo(w io.Writer) (int64, error) {
	o := new(strings.Builder)
	y, m, d := vs.ACC.Date()
	fmt.Fprintf(o, "ACC firmware: 0x%x (%04d-%02d-%02d)\n", vs.ACC.Firmware(), y, m, d)
	fmt.Fprintf(o, "  PLL: sys=%v serial=%v dpa1=%v dpa2=%v\n",
		vs.ACC.Locked(AccLockSys), vs.ACC.Locked(AccLockSerial),
		vs.ACC.Locked(AccLockDPA1), vs.ACC.Locked(AccLockDPA2),
	)
	if len(vs.Links.Raw) == regs.AccInfoExtLen {
		fmt.Fprintf(o, "  %-12s", "link")
		for ch := 0; ch < regs.NumLinks; ch++ {
			fmt.Fprintf(o, " %9d", ch)
		}
		o.WriteString("\n")
		for _, row := range []struct {
			name string
			f    func(ch int) uint64
		}{
			{"rx-fifo", vs.Links.RXOccupancy},
			{"prbs-err", func(ch int) uint64 { v := vs.Links.PRBSErrors(ch); return v[0] + v[1] }},
			{"symbol-err", func(ch int) uint64 { v := vs.Links.SymbolErrors(ch); return v[0] + v[1] }},
			{"parity-err", func(ch int) uint64 { v := vs.Links.ParityErrors(ch); return v[0] + v[1] }},
			{"self-trig", vs.Links.SelfTriggers},
		} {
			fmt.Fprintf(o, "  %-12s", row.name)
			for ch := 0; ch < regs.NumLinks; ch++ {
				fmt.Fprintf(o, " %9d", row.f(ch))
			}
			o.WriteString("\n")
		}
	}
	for slot := 0; slot < regs.NumSlots; slot++ {
		inf, ok := vs.Boards[slot]
		if !ok {
			continue
		}
		fmt.Fprintf(o, "ACDC%d:\n", slot)
		_, _ = inf.WriteTo(o)
	}
	n, err := io.WriteString(w, o.String())
	return int64(n), err
}

// Version reads the information frames of the ACC and of all the
// boards answering a broadcast information request.
func (dev *Device) Version() (Versions, error) {
	vs := Versions{Boards: make(map[int]acdc.InfoFrame)}

	raw := dev.readBlock(regs.Block(regs.AccInfo, regs.AccInfoLen))
	if err := dev.check(); err != nil {
		return vs, fmt.Errorf("acc: could not read ACC info frame: %w", err)
	}
	vs.ACC = AccInfo{Raw: raw}

	ext := dev.readBlock(regs.Block(regs.AccInfoExt, regs.AccInfoExtLen))
	if err := dev.check(); err != nil {
		return vs, fmt.Errorf("acc: could not read ACC link counters: %w", err)
	}
	vs.Links = AccLinkStats{Raw: ext}

	dev.write(regs.ClearSlowRX, regs.FlushValue)
	dev.command(regs.Broadcast(regs.OpInfo, 0))
	dev.sleep(500 * time.Microsecond)

	for slot := 0; slot < regs.NumSlots; slot++ {
		occ := dev.read(regs.Reg(regs.RXOccupancy, slot))
		if dev.err != nil {
			break
		}
		if occ <= 5 {
			continue
		}
		if occ > 255 {
			occ = 255
		}
		buf := dev.readBlock(regs.FIFO(regs.Reg(regs.RXBuffer, slot), int(occ)))
		if dev.err != nil {
			break
		}
		inf, err := acdc.ParseInfo(buf)
		if err != nil {
			dev.msg.Warnf("ACDC%d: %+v", slot, err)
			continue
		}
		vs.Boards[slot] = inf
	}
	if err := dev.check(); err != nil {
		return vs, fmt.Errorf("acc: could not read ACDC info frames: %w", err)
	}
	return vs, nil
}
