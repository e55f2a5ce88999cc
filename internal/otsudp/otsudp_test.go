// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package otsudp

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/psec/regs"
	"github.com/stretchr/testify/require"
)

// firmware is a fake OTS UDP firmware backed by a register map.
type firmware struct {
	conn net.PacketConn

	mu    sync.Mutex
	regs  map[uint64]uint64
	fifo  map[uint64][]uint64
	drops int // number of read requests to ignore
	reads int
}

func newFirmware(t *testing.T) *firmware {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	fw := &firmware{
		conn: conn,
		regs: make(map[uint64]uint64),
		fifo: make(map[uint64][]uint64),
	}
	go fw.serve()
	t.Cleanup(func() { _ = conn.Close() })
	return fw
}

func (fw *firmware) addr() string { return fw.conn.LocalAddr().String() }

func (fw *firmware) serve() {
	buf := make([]byte, maxSize)
	for {
		n, src, err := fw.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		p := buf[:n]
		var (
			typ   = p[0] & typeMask
			flags = p[0] &^ typeMask
			count = int(p[1])
			addr  = binary.LittleEndian.Uint64(p[2:hdrLen])
			data  = regs.Words(p[hdrLen:])
		)

		fw.mu.Lock()
		switch typ {
		case typeWrite:
			for i, v := range data {
				fw.regs[addr+uint64(i)] = v
			}
			fw.mu.Unlock()
		case typeRead:
			fw.reads++
			if fw.drops > 0 {
				fw.drops--
				fw.mu.Unlock()
				continue
			}
			out := make([]uint64, count)
			for i := range out {
				switch {
				case flags&regs.FlagNoAddrInc != 0:
					q := fw.fifo[addr]
					if len(q) > 0 {
						out[i] = q[0]
						fw.fifo[addr] = q[1:]
					}
				default:
					out[i] = fw.regs[addr+uint64(i)]
				}
			}
			fw.mu.Unlock()
			reply := encode(nil, p[0], uint8(count), addr, out...)
			_, _ = fw.conn.WriteTo(reply, src)
		default:
			fw.mu.Unlock()
		}
	}
}

func quiet() Option {
	return WithLogger(log.NewMsgStream("otsudp", log.LvlError, io.Discard))
}

func TestWriteRead(t *testing.T) {
	fw := newFirmware(t)

	c, err := Dial(fw.addr(), quiet())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Write(0x1011, 0xfffc))

	// writes are not acknowledged: wait for the firmware to apply it.
	require.Eventually(t, func() bool {
		fw.mu.Lock()
		defer fw.mu.Unlock()
		return fw.regs[0x1011] == 0xfffc
	}, time.Second, time.Millisecond)

	v, err := c.Read(0x1011)
	require.NoError(t, err)
	require.Equal(t, uint64(0xfffc), v)
}

func TestReadBlock(t *testing.T) {
	fw := newFirmware(t)
	fw.mu.Lock()
	for i := uint64(0); i < 8; i++ {
		fw.regs[0x1110+i] = 100 + i
	}
	fw.fifo[0x1200] = []uint64{1, 2, 3, 4}
	fw.mu.Unlock()

	c, err := Dial(fw.addr(), quiet())
	require.NoError(t, err)
	defer c.Close()

	vs, err := c.ReadBlock(regs.Block(0x1110, 8))
	require.NoError(t, err)
	require.Equal(t, []uint64{100, 101, 102, 103, 104, 105, 106, 107}, vs)

	vs, err = c.ReadBlock(regs.FIFO(0x1200, 3))
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, vs)

	_, err = c.ReadBlock(regs.Block(0x1110, 0))
	require.Error(t, err)
}

func TestReadRetry(t *testing.T) {
	fw := newFirmware(t)
	fw.mu.Lock()
	fw.regs[0x1000] = 42
	fw.drops = 2
	fw.mu.Unlock()

	c, err := Dial(fw.addr(), quiet(), WithTimeout(20*time.Millisecond), WithRetries(3))
	require.NoError(t, err)
	defer c.Close()

	v, err := c.Read(0x1000)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	require.Equal(t, 3, fw.reads)
}

func TestReadTimeout(t *testing.T) {
	fw := newFirmware(t)
	fw.mu.Lock()
	fw.drops = 10
	fw.mu.Unlock()

	c, err := Dial(fw.addr(), quiet(), WithTimeout(10*time.Millisecond), WithRetries(1))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Read(0x1000)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTimeout), "got=%+v", err)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	require.Equal(t, 2, fw.reads)
}

func TestBurst(t *testing.T) {
	fw := newFirmware(t)

	c, err := Dial(fw.addr(), quiet())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.StartBurst())
	require.Eventually(t, func() bool {
		fw.mu.Lock()
		defer fw.mu.Unlock()
		return fw.regs[BurstControl] == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, c.StopBurst())
	require.Eventually(t, func() bool {
		fw.mu.Lock()
		defer fw.mu.Unlock()
		return fw.regs[BurstControl] == 0
	}, time.Second, time.Millisecond)
}
