// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regs

import "fmt"

// Op is an ACDC command opcode.
type Op uint8

const (
	OpDLLVdd       Op = 0xa0 // DLL supply voltage, per chip
	OpPedestal     Op = 0xa2 // pedestal DAC, per chip
	OpThreshold    Op = 0xa6 // +channel: self-trigger threshold, per chip
	OpTrigMode     Op = 0xb0
	OpSelfTrig     Op = 0xb1 // self-trigger mask and polarity
	OpValidTimeout Op = 0xb2
	OpBackpress    Op = 0xb7
	OpCalMask      Op = 0xc0
	OpCalEnable    Op = 0xc1
	OpInfo         Op = 0xd0 // request an info frame
	OpPLLClear     Op = 0xf1
	OpPLLLower     Op = 0xf3
	OpPLLUpper     Op = 0xf4
	OpPLLSet       Op = 0xf5
	OpTransfer     Op = 0xf6 // data transfer mode
	OpReset        Op = 0xff
)

func (op Op) String() string {
	if op >= OpThreshold && op < OpThreshold+6 {
		return fmt.Sprintf("threshold[%d]", op-OpThreshold)
	}
	switch op {
	case OpDLLVdd:
		return "dll-vdd"
	case OpPedestal:
		return "pedestal"
	case OpTrigMode:
		return "trig-mode"
	case OpSelfTrig:
		return "self-trig"
	case OpValidTimeout:
		return "valid-timeout"
	case OpBackpress:
		return "backpressure"
	case OpCalMask:
		return "cal-mask"
	case OpCalEnable:
		return "cal-enable"
	case OpInfo:
		return "info"
	case OpPLLClear:
		return "pll-clear"
	case OpPLLLower:
		return "pll-lower"
	case OpPLLUpper:
		return "pll-upper"
	case OpPLLSet:
		return "pll-set"
	case OpTransfer:
		return "transfer"
	case OpReset:
		return "reset"
	}
	return fmt.Sprintf("op(0x%02x)", uint8(op))
}

// Command is a 32-bit ACDC command word, written to the ACDCCommand
// register of the ACC:
//
//	bits 31-24: board mask
//	bits 23-16: opcode
//	bits 15-0:  payload
type Command uint64

// Encode builds the command word for op, targeting the boards in mask.
func Encode(op Op, mask uint8, payload uint16) Command {
	return Command(uint64(mask)<<24 | uint64(op)<<16 | uint64(payload))
}

// Broadcast builds the command word for op, targeting every board.
func Broadcast(op Op, payload uint16) Command {
	return Encode(op, 0xff, payload)
}

// Decode splits a command word into its fields.
func (cmd Command) Decode() (op Op, mask uint8, payload uint16) {
	mask = uint8(cmd >> 24)
	op = Op(cmd >> 16)
	payload = uint16(cmd)
	return op, mask, payload
}

func (cmd Command) String() string {
	op, mask, payload := cmd.Decode()
	return fmt.Sprintf("cmd{op=%v, mask=0x%02x, payload=0x%04x}", op, mask, payload)
}

// ChipPayload packs a per-chip value: the chip index goes in bits
// 15-12 and the value is truncated to its low 12 bits.
func ChipPayload(chip int, v uint16) uint16 {
	return uint16(chip&0xf)<<12 | v&0xfff
}

// SplitChipPayload is the inverse of ChipPayload.
func SplitChipPayload(payload uint16) (chip int, v uint16) {
	return int(payload >> 12), payload & 0xfff
}

// SelfTrigMaskPayload returns the self-trigger mask payload for chip:
// the 6 channel bits of that chip, extracted from the 30-bit board mask.
func SelfTrigMaskPayload(chip int, mask uint32) uint16 {
	return uint16(chip&0xf)<<12 | uint16(mask>>(6*chip))&0x3f
}

// SelfTrigPolarityPayload returns the self-trigger polarity payload.
func SelfTrigPolarityPayload(pol uint16) uint16 {
	return 0x6000 | pol&0xfff
}

// PLLHalves splits a 32-bit PLL programming word in the two halves
// sent with OpPLLLower and OpPLLUpper.
func PLLHalves(word uint32) (lower, upper uint16) {
	return uint16(word), uint16(word >> 16)
}
