// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acdc describes ACDC front-end boards: their configuration
// parameters, the decoding of their waveform buffers and of their
// slow-control information frames.
package acdc // import "github.com/go-lpc/psec/acdc"

// Board geometry.
const (
	NumChips       = 5   // PSEC4 chips per board
	NumChanPerChip = 6   // channels per PSEC4 chip
	NumChannels    = 30  // channels per board
	NumSamples     = 256 // samples per channel
	SamplesPerWord = 5   // 12-bit samples packed in a 64-bit word

	// BufferLen is the number of 64-bit words of a well-formed
	// waveform buffer: the header and the packed samples.
	BufferLen = HeaderLen + NumChannels*NumSamples/SamplesPerWord
	HeaderLen = 5
)

// Params holds the configuration of one ACDC board.
type Params struct {
	Reset            bool     // reset the board before configuring it
	Pedestals        []uint16 // pedestal DAC, one per chip
	SelfTrigPolarity uint16   // self-trigger polarity
	Thresholds       []uint16 // self-trigger thresholds, one per channel
	SelfTrigMask     uint32   // self-trigger channel mask (30 bits)
	CalibMode        bool     // route the calibration input
	DLLVdd           uint16   // DLL supply voltage DAC
	Backpressure     bool     // enable ACC backpressure
}

// DefaultParams returns the default configuration of an ACDC board.
func DefaultParams() Params {
	p := Params{
		Pedestals:    []uint16{0x800, 0x800, 0x800, 0x800, 0x800},
		DLLVdd:       0xcff,
		Thresholds:   make([]uint16, NumChannels),
		Backpressure: true,
	}
	for i := range p.Thresholds {
		p.Thresholds[i] = 0x780
	}
	return p
}

// Board is an ACDC board connected to an ACC slot.
type Board struct {
	Slot   int // ACC slot index (0-7)
	Params Params

	wfs Waveforms // waveforms of the last parsed buffer
	evt int       // number of parsed buffers
}

// NewBoard creates a new board in the given ACC slot, with default
// parameters.
func NewBoard(slot int) *Board {
	return &Board{
		Slot:   slot,
		Params: DefaultParams(),
	}
}

// Mask returns the board mask selecting this board.
func (b *Board) Mask() uint8 { return 1 << b.Slot }

// Parse decodes buf and stores the resulting waveforms, replacing
// the ones from the previous buffer.
func (b *Board) Parse(buf []uint64) error {
	wfs, err := Decode(buf)
	b.wfs = wfs
	if err != nil {
		return err
	}
	b.evt++
	return nil
}

// Waveforms returns the waveforms of the last parsed buffer.
func (b *Board) Waveforms() Waveforms { return b.wfs }

// Events returns the number of successfully parsed buffers.
func (b *Board) Events() int { return b.evt }
