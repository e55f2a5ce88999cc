// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acdc

import (
	"github.com/go-lpc/psec/internal/errs"
	"golang.org/x/xerrors"
)

const (
	startMarker = 0xac9c // bits 63-48 of header word 1
	dataMarker  = 0xcac9 // bits 15-0 of header word 4
)

var (
	ErrEmptyBuffer   = xerrors.New("acdc: empty buffer")
	ErrHeaderCorrupt = xerrors.New("acdc: corrupt buffer header")
	ErrGeometry      = xerrors.New("acdc: invalid buffer geometry")
)

// Waveforms maps a channel index to its ordered samples.
type Waveforms map[int][]uint16

// Decode decodes a raw ACDC waveform buffer into per-channel
// waveforms.
//
// Samples are 12-bit values packed five per 64-bit word, most
// significant field first, starting after the 5-word header.
// A buffer that does not yield exactly NumChannels channels of
// NumSamples samples is rejected with ErrGeometry; the partially
// decoded waveforms are still returned alongside that error.
// All decoding errors are of kind errs.KindFatal.
func Decode(buf []uint64) (Waveforms, error) {
	if len(buf) == 0 {
		return nil, fatal(ErrEmptyBuffer)
	}
	if len(buf) < HeaderLen {
		return nil, fatal(xerrors.Errorf("buffer too short (%d words): %w", len(buf), ErrHeaderCorrupt))
	}

	if v := (buf[1] >> 48) & 0xffff; v != startMarker {
		return nil, fatal(xerrors.Errorf(
			"start marker=0x%04x, want=0x%04x: %w",
			v, startMarker, ErrHeaderCorrupt,
		))
	}
	if v := buf[4] & 0xffff; v != dataMarker {
		return nil, fatal(xerrors.Errorf(
			"data marker=0x%04x, want=0x%04x: %w",
			v, dataMarker, ErrHeaderCorrupt,
		))
	}

	var (
		wfs  = make(Waveforms, NumChannels)
		ch   = 0
		cur  = make([]uint16, 0, NumSamples)
		next = func() {
			wfs[ch] = cur
			ch++
			cur = make([]uint16, 0, NumSamples)
		}
	)
	for _, w := range buf[HeaderLen:] {
		for j := SamplesPerWord - 1; j >= 0; j-- {
			cur = append(cur, uint16(w>>(12*j))&0xfff)
			if len(cur) == NumSamples {
				next()
			}
		}
	}
	if len(cur) > 0 {
		next()
	}

	if len(wfs) != NumChannels {
		return wfs, fatal(xerrors.Errorf(
			"decoded %d channels, want=%d: %w",
			len(wfs), NumChannels, ErrGeometry,
		))
	}
	for i, wf := range wfs {
		if len(wf) != NumSamples {
			return wfs, fatal(xerrors.Errorf(
				"channel %d has %d samples, want=%d: %w",
				i, len(wf), NumSamples, ErrGeometry,
			))
		}
	}

	return wfs, nil
}

func fatal(err error) error {
	return errs.New(errs.KindFatal, "acdc", -1, "decode", err)
}
