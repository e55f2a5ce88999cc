// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regs

import (
	"encoding/binary"
	"fmt"
)

// Read flags.
const (
	// FlagNoAddrInc reads the same address repeatedly instead of
	// incrementing it after each word. Used to drain FIFO-like buffers.
	FlagNoAddrInc uint8 = 0x08
)

// ReadRequest describes a multi-word register read.
type ReadRequest struct {
	Addr  uint64
	Len   int // number of 64-bit words
	Flags uint8
}

// Single returns a request for one word at addr.
func Single(addr uint64) ReadRequest {
	return ReadRequest{Addr: addr, Len: 1}
}

// Block returns a request for n words starting at addr.
func Block(addr uint64, n int) ReadRequest {
	return ReadRequest{Addr: addr, Len: n}
}

// FIFO returns a request draining n words from addr.
func FIFO(addr uint64, n int) ReadRequest {
	return ReadRequest{Addr: addr, Len: n, Flags: FlagNoAddrInc}
}

func (req ReadRequest) String() string {
	return fmt.Sprintf("read{addr=0x%x, len=%d, flags=0x%02x}", req.Addr, req.Len, req.Flags)
}

// Validate checks the request can be issued in one transaction.
func (req ReadRequest) Validate() error {
	if req.Len <= 0 || req.Len > 255 {
		return fmt.Errorf("regs: invalid read length %d for addr=0x%x", req.Len, req.Addr)
	}
	return nil
}

// Words decodes a little-endian byte stream into 64-bit words.
// Trailing bytes that do not make up a full word are ignored.
func Words(p []byte) []uint64 {
	n := len(p) / 8
	o := make([]uint64, n)
	for i := range o {
		o[i] = binary.LittleEndian.Uint64(p[8*i:])
	}
	return o
}

// PutWords encodes words as a little-endian byte stream.
func PutWords(p []byte, words []uint64) []byte {
	for _, w := range words {
		p = binary.LittleEndian.AppendUint64(p, w)
	}
	return p
}
