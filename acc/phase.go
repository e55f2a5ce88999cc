// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-lpc/psec/regs"
)

// PhaseScan holds the link error counters recorded for each phase
// offset, and the phase programmed for each link channel.
type PhaseScan struct {
	Decode [regs.NumPhases][regs.NumLinks]uint64 // symbol decode errors
	PRBS   [regs.NumPhases][regs.NumLinks]uint64 // PRBS errors

	Phase [regs.NumLinks]int // programmed phase, -1 if left untouched
	Width [regs.NumLinks]int // width of the error-free window
}

// Errors returns the decode error counts of channel ch, by phase offset.
func (ps *PhaseScan) Errors(ch int) [regs.NumPhases]uint64 {
	var o [regs.NumPhases]uint64
	for i := range o {
		o[i] = ps.Decode[i][ch]
	}
	return o
}

// WriteTo writes the scan table to w.
func (ps *PhaseScan) WriteTo(w io.Writer) (int64, error) {
	o := new(strings.Builder)
	fmt.Fprintf(o, "fast link phase scan\nphase ")
	for ch := 0; ch < regs.NumLinks; ch++ {
		fmt.Fprintf(o, " %10s", fmt.Sprintf("acdc%d/ch%d", ch/2, ch%2))
	}
	o.WriteString("\n")
	for i := 0; i < regs.NumPhases; i++ {
		fmt.Fprintf(o, "%5d ", i)
		for ch := 0; ch < regs.NumLinks; ch++ {
			fmt.Fprintf(o, " %5d/%-4d", uint32(ps.Decode[i][ch]), uint32(ps.PRBS[i][ch]))
		}
		o.WriteString("\n")
	}
	o.WriteString("set:  ")
	for ch := 0; ch < regs.NumLinks; ch++ {
		if ps.Phase[ch] < 0 {
			fmt.Fprintf(o, " %10s", "-")
			continue
		}
		fmt.Fprintf(o, " %10d", ps.Phase[ch])
	}
	o.WriteString("\n")

	n, err := io.WriteString(w, o.String())
	return int64(n), err
}

// ScanLinkPhase sweeps the clock sampling phase of the serial links
// over a full clock cycle, recording the error counters at each offset,
// then programs each link channel selected by mask in the middle of its
// widest error-free phase window.
func (dev *Device) ScanLinkPhase(mask uint8) (*PhaseScan, error) {
	ps := dev.scanLinkPhase(mask)
	if err := dev.check(); err != nil {
		return nil, err
	}
	return ps, nil
}

func (dev *Device) scanLinkPhase(mask uint8) *PhaseScan {
	ps := new(PhaseScan)
	for ch := range ps.Phase {
		ps.Phase[ch] = -1
	}

	for i := 0; i < regs.NumPhases; i++ {
		dev.write(regs.PhaseReset, 0)
		for ch := 0; ch < regs.NumLinks; ch++ {
			dev.write(regs.PhaseChannel, uint64(ch))
			dev.write(regs.PhaseStep, 0)
		}

		dev.enableTransfer(regs.TransferIdle, 0xff)
		dev.sleep(time.Millisecond)
		dev.enableTransfer(regs.TransferPRBS, 0xff)
		dev.sleep(100 * time.Microsecond)
		dev.write(regs.ResetErrCount, 0)
		dev.sleep(time.Millisecond)

		decode := dev.readBlock(regs.Block(regs.DecodeErrors, regs.ErrCountLen))
		prbs := dev.readBlock(regs.Block(regs.PRBSErrors, regs.ErrCountLen))
		if dev.err != nil {
			return ps
		}
		copy(ps.Decode[i][:], decode)
		copy(ps.PRBS[i][:], prbs)
	}

	dev.enableTransfer(regs.TransferIdle, 0xff)
	if mask == 0 {
		return ps
	}

	for ch := 0; ch < regs.NumLinks; ch++ {
		if !regs.Has(mask, ch) {
			continue
		}
		phase, width := bestPhase(ps.Errors(ch))
		ps.Phase[ch] = phase
		ps.Width[ch] = width

		dev.write(regs.PhaseReset, 0)
		dev.write(regs.PhaseChannel, uint64(ch))
		for j := 0; j < phase; j++ {
			dev.write(regs.PhaseStep, 0)
		}
	}

	// links need at least 1ms to realign.
	dev.sleep(time.Millisecond)
	dev.write(regs.ResetErrCount, 0)

	o := new(strings.Builder)
	_, _ = ps.WriteTo(o)
	dev.msg.Debugf("%s", o.String())
	return ps
}

// bestPhase returns the phase offset in the middle of the longest
// circular run of error-free offsets, and the length of that run.
//
// Runs are scanned over two consecutive cycles so a run wrapping from
// the last offset to the first one is seen whole. Among runs of equal
// length, the first one completed in scan order wins.
// A channel without any error has no preferred phase: 0 is returned.
func bestPhase(errs [regs.NumPhases]uint64) (phase, width int) {
	const n = regs.NumPhases
	var (
		stop   = 0
		length = 0
		best   = 0
		clean  = true
	)
	for i := 0; i < 2*n; i++ {
		imod := i % n
		if errs[imod] == 0 {
			length++
			continue
		}
		clean = false
		if length > best {
			stop = imod
			best = length
		}
		length = 0
	}
	if clean {
		return 0, n
	}
	phase = ((stop-best/2)%n + n) % n
	return phase, best
}
