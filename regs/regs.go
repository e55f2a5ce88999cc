// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs describes the ACC register map and the command words
// the ACC relays to its ACDC front-end boards.
//
// All bit-level arithmetic on register values lives in this package:
// callers build commands from named opcodes, board masks and payloads.
package regs // import "github.com/go-lpc/psec/regs"

// ACC register addresses.
const (
	DumpData       uint64 = 0x0001 // dump ACC RX data for the boards in mask
	ClearSlowRX    uint64 = 0x0002 // clear slow-control RX buffers
	SoftTrigger    uint64 = 0x0010 // issue a software trigger
	ResetRX        uint64 = 0x0020 // reset RX buffers
	AutoTransmit   uint64 = 0x0023 // enable automatic data transmission
	AccTrigMode    uint64 = 0x0030 // +slot: ACC trigger mode for one board
	TrigPolarity   uint64 = 0x0038 // SMA trigger polarity
	ValidStart     uint64 = 0x0039 // validation window start
	ValidWindow    uint64 = 0x003a // validation window length
	CoincMask      uint64 = 0x003f // coincidence trigger mask
	CoincDelay     uint64 = 0x0040 // +slot: coincidence delay
	CoincStretch   uint64 = 0x0048 // +slot: coincidence stretch
	ResetErrCount  uint64 = 0x0053 // reset link error counters
	PhaseReset     uint64 = 0x0054 // reset link phase / global phase step
	PhaseChannel   uint64 = 0x0055 // select link channel for phase stepping
	PhaseStep      uint64 = 0x0056 // step selected link channel by one offset
	BackpressDepth uint64 = 0x0057 // backpressure FIFO depth
	TrainLinks     uint64 = 0x0060 // train serial links
	ACDCCommand    uint64 = 0x0100 // relay a command word to the ACDCs

	AccInfo      uint64 = 0x1000 // ACC information frame
	Alignment    uint64 = 0x1011 // link alignment word
	AccInfoExt   uint64 = 0x1100 // extended ACC information frame
	PRBSErrors   uint64 = 0x1110 // per-channel PRBS error counters
	DecodeErrors uint64 = 0x1120 // per-channel symbol decode error counters
	RXOccupancy  uint64 = 0x1138 // +slot: RX buffer occupancy
	RXBuffer     uint64 = 0x1200 // +slot: RX buffer

	ResetACC  uint64 = 0x1ffffffff // full ACC reset
	ResetWord uint64 = 0x0000      // re-arm after a full ACC reset
)

// Reply lengths, in 64-bit words.
const (
	AccInfoLen    = 32
	AccInfoExtLen = 96
	ErrCountLen   = 8
	InfoFrameLen  = 32
)

// Register constants.
const (
	NumSlots     = 8    // number of ACDC slots on an ACC
	NumLinks     = 8    // number of serial link channels
	NumPhases    = 24   // number of link phase offsets
	FlushValue   = 0xff // value written to clear/reset/trigger registers
	DepthDefault = 0xe1 // default backpressure FIFO depth
)

// Transfer modes for the OpTransfer command.
const (
	TransferIdle uint16 = 0
	TransferPRBS uint16 = 1
	TransferData uint16 = 3
)

// Reg returns the address of a per-slot register.
func Reg(base uint64, slot int) uint64 {
	return base + uint64(slot)
}

// Connected decodes the alignment word into the list of slots with
// an aligned link. A slot is connected when its bit is cleared.
func Connected(align uint64) []int {
	var (
		bits  = ^uint16(align)
		slots []int
	)
	for i := 0; i < NumSlots; i++ {
		if bits&(1<<i) != 0 {
			slots = append(slots, i)
		}
	}
	return slots
}

// Mask returns the board mask with the bits of all slots set.
func Mask(slots ...int) uint8 {
	var m uint8
	for _, i := range slots {
		m |= 1 << i
	}
	return m
}

// Has returns whether slot is selected by mask.
func Has(mask uint8, slot int) bool {
	return mask&(1<<slot) != 0
}
