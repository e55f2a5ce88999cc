// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/regs"
)

var errFake = errors.New("fake transport failure")

type wr struct {
	addr uint64
	v    uint64
}

// fakeTransport records register writes and serves scripted reads.
type fakeTransport struct {
	mu sync.Mutex

	writes []wr
	reads  []uint64 // addresses of single reads

	regs  map[uint64]uint64   // values served by Read when no script is left
	seq   map[uint64][]uint64 // successive values served by Read
	block func(req regs.ReadRequest, n int) []uint64
	nblk  map[uint64]int // number of block reads per address

	failAddr *uint64 // writes at this address fail
	bursts   []bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		regs: make(map[uint64]uint64),
		seq:  make(map[uint64][]uint64),
		nblk: make(map[uint64]int),
	}
}

func (tr *fakeTransport) Write(addr, v uint64) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.failAddr != nil && *tr.failAddr == addr {
		return errFake
	}
	tr.writes = append(tr.writes, wr{addr, v})
	return nil
}

func (tr *fakeTransport) Read(addr uint64) (uint64, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.reads = append(tr.reads, addr)
	if vs := tr.seq[addr]; len(vs) > 0 {
		tr.seq[addr] = vs[1:]
		return vs[0], nil
	}
	return tr.regs[addr], nil
}

func (tr *fakeTransport) ReadBlock(req regs.ReadRequest) ([]uint64, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	n := tr.nblk[req.Addr]
	tr.nblk[req.Addr]++
	if tr.block != nil {
		if vs := tr.block(req, n); vs != nil {
			return vs, nil
		}
	}
	return make([]uint64, req.Len), nil
}

func (tr *fakeTransport) StartBurst() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.bursts = append(tr.bursts, true)
	return nil
}

func (tr *fakeTransport) StopBurst() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.bursts = append(tr.bursts, false)
	return nil
}

// commands returns the ACDC command words written so far.
func (tr *fakeTransport) commands() []regs.Command {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	var cmds []regs.Command
	for _, w := range tr.writes {
		if w.addr == regs.ACDCCommand {
			cmds = append(cmds, regs.Command(w.v))
		}
	}
	return cmds
}

// writesAt returns the values written at addr.
func (tr *fakeTransport) writesAt(addr uint64) []uint64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	var vs []uint64
	for _, w := range tr.writes {
		if w.addr == addr {
			vs = append(vs, w.v)
		}
	}
	return vs
}

// index returns the position of the first write matching f, or -1.
func (tr *fakeTransport) index(f func(w wr) bool) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i, w := range tr.writes {
		if f(w) {
			return i
		}
	}
	return -1
}

func (tr *fakeTransport) reset() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.writes = nil
	tr.reads = nil
}

func isCmd(op regs.Op) func(w wr) bool {
	return func(w wr) bool {
		if w.addr != regs.ACDCCommand {
			return false
		}
		got, _, _ := regs.Command(w.v).Decode()
		return got == op
	}
}

func isWrite(addr uint64) func(w wr) bool {
	return func(w wr) bool { return w.addr == addr }
}

var quiet = WithLogger(log.NewMsgStream("acc", log.LvlError, io.Discard))

func newTestDevice(tr Transport, opts ...Option) *Device {
	dev := New(tr, append([]Option{quiet}, opts...)...)
	dev.sleep = func(time.Duration) {}
	return dev
}

// infoFrame returns a valid ACDC information frame with the given
// PLL lock bits.
func infoFrame(locks uint64) []uint64 {
	buf := make([]uint64, acdc.InfoLen)
	buf[0] = 0x1234
	buf[1] = 0xbbbb
	buf[2] = 0x0102
	buf[3] = 2026
	buf[4] = 0x0a10
	buf[6] = locks
	buf[30] = 0xbbbb
	buf[31] = 0x4321
	return buf
}

// serveInfo makes tr answer slow-control requests with the given
// information frames, by slot.
func serveInfo(tr *fakeTransport, frames map[int][]uint64) {
	for slot := range frames {
		tr.regs[regs.Reg(regs.RXOccupancy, slot)] = acdc.InfoLen
	}
	tr.block = func(req regs.ReadRequest, n int) []uint64 {
		for slot, buf := range frames {
			if req.Addr == regs.Reg(regs.RXBuffer, slot) {
				return buf
			}
		}
		return nil
	}
}
