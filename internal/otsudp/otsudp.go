// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package otsudp implements the OTS UDP register protocol used to
// access the registers of an ACC.
//
// A request is made of a 10-byte header followed by 64-bit
// little-endian data words:
//
//	[type|flags:1][count:1][addr:8][data:8*count]
//
// Replies to read requests echo the request header, followed by the
// read words.
package otsudp // import "github.com/go-lpc/psec/internal/otsudp"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/psec/regs"
)

const (
	typeRead  uint8 = 0x0
	typeWrite uint8 = 0x1
	typeMask  uint8 = 0x7

	hdrLen   = 10
	maxWords = 255
	maxSize  = hdrLen + 8*maxWords
)

// BurstControl is the register switching the firmware in and out of the
// burst data streaming mode.
const BurstControl uint64 = 0x9

var ErrTimeout = errors.New("otsudp: read timeout")

// Conn is a connection to an OTS UDP firmware.
type Conn struct {
	mu   sync.Mutex
	conn net.Conn
	msg  log.MsgStream

	timeout time.Duration // per attempt read timeout
	retries int           // number of resent requests on timeout

	wbuf []byte
	rbuf []byte
}

// Option configures a Conn.
type Option func(*Conn)

// WithTimeout sets the read timeout of a single attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.timeout = d
	}
}

// WithRetries sets how many times a read request is resent after a
// timeout.
func WithRetries(n int) Option {
	return func(c *Conn) {
		c.retries = n
	}
}

func WithLogger(msg log.MsgStream) Option {
	return func(c *Conn) {
		c.msg = msg
	}
}

// Dial connects to the firmware at the given UDP address.
func Dial(addr string, opts ...Option) (*Conn, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("otsudp: could not dial %q: %w", addr, err)
	}
	return newConn(conn, opts...), nil
}

func newConn(conn net.Conn, opts ...Option) *Conn {
	c := &Conn{
		conn:    conn,
		msg:     log.NewMsgStream("otsudp", log.LvlInfo, os.Stdout),
		timeout: 100 * time.Millisecond,
		retries: 3,
		wbuf:    make([]byte, 0, maxSize),
		rbuf:    make([]byte, maxSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// Write writes v at register addr.
func (c *Conn) Write(addr, v uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wbuf = encode(c.wbuf[:0], typeWrite, 1, addr, v)
	_, err := c.conn.Write(c.wbuf)
	if err != nil {
		return fmt.Errorf("otsudp: could not write 0x%x at 0x%x: %w", v, addr, err)
	}
	return nil
}

// Read reads the register at addr.
func (c *Conn) Read(addr uint64) (uint64, error) {
	vs, err := c.ReadBlock(regs.Single(addr))
	if err != nil {
		return 0, err
	}
	return vs[0], nil
}

// ReadBlock issues a multi-word read.
func (c *Conn) ReadBlock(req regs.ReadRequest) ([]uint64, error) {
	err := req.Validate()
	if err != nil {
		return nil, fmt.Errorf("otsudp: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	typ := typeRead | req.Flags
	c.wbuf = encode(c.wbuf[:0], typ, uint8(req.Len), req.Addr)

	for i := 0; i <= c.retries; i++ {
		if i > 0 {
			c.msg.Warnf("%v: retry %d/%d", req, i, c.retries)
		}
		_, err = c.conn.Write(c.wbuf)
		if err != nil {
			return nil, fmt.Errorf("otsudp: could not send %v: %w", req, err)
		}

		vs, err := c.recv(typ, req)
		switch {
		case err == nil:
			return vs, nil
		case errors.Is(err, ErrTimeout):
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("otsudp: no reply to %v after %d attempts: %w", req, c.retries+1, ErrTimeout)
}

// recv waits for the reply to req, dropping stale replies.
func (c *Conn) recv(typ uint8, req regs.ReadRequest) ([]uint64, error) {
	err := c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	if err != nil {
		return nil, fmt.Errorf("otsudp: could not set read deadline: %w", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		n, err := c.conn.Read(c.rbuf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("otsudp: could not read reply to %v: %w", req, err)
		}
		p := c.rbuf[:n]
		if n < hdrLen {
			c.msg.Warnf("short reply (len=%d)", n)
			continue
		}
		var (
			rtyp  = p[0]
			count = int(p[1])
			addr  = binary.LittleEndian.Uint64(p[2:hdrLen])
		)
		if rtyp != typ || count != req.Len || addr != req.Addr {
			c.msg.Debugf("dropping stale reply (type=0x%x, count=%d, addr=0x%x)", rtyp, count, addr)
			continue
		}
		if len(p)-hdrLen < 8*count {
			return nil, fmt.Errorf(
				"otsudp: short reply to %v (len=%d, want=%d)",
				req, len(p)-hdrLen, 8*count,
			)
		}
		return regs.Words(p[hdrLen : hdrLen+8*count]), nil
	}
}

// StartBurst switches the firmware into burst streaming mode.
func (c *Conn) StartBurst() error {
	return c.Write(BurstControl, 1)
}

// StopBurst switches the firmware out of burst streaming mode.
func (c *Conn) StopBurst() error {
	return c.Write(BurstControl, 0)
}

func encode(p []byte, typ, count uint8, addr uint64, data ...uint64) []byte {
	p = append(p, typ, count)
	p = binary.LittleEndian.AppendUint64(p, addr)
	return regs.PutWords(p, data)
}
