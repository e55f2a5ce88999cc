// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package burst records the UDP burst packet stream sent by an ACC
// into per-board sinks.
//
// Each ACDC event spans PacketsPerEvent consecutive packets. A packet
// carries a 2-byte header (a type byte and an 8-bit sequence number)
// followed by a little-endian stream of 64-bit words. The first packet
// of an event starts with the event preamble, whose low byte is the
// identifier of the emitting board.
package burst // import "github.com/go-lpc/psec/burst"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/psec/internal/errs"
)

const (
	PacketsPerEvent = 8
	HeaderLen       = 2 // packet header length, in bytes

	preamble     = 0x123456789abcde00
	preambleMask = 0xffffffffffffff00
	startMarker  = 0xac9c000000000000
	startMask    = 0xffff000000000000
)

// ErrUnknownBoard is a configuration error, wrapped by the fatal error
// returned when an event header names a board that is not part of the
// recorder configuration.
var ErrUnknownBoard error = errs.New(errs.KindConfig, "burst", -1, "", errors.New("unknown board"))

// Stats holds the packet counters of a recorder.
type Stats struct {
	Packets    uint64 // packets received
	Written    uint64 // packets routed to a sink
	Events     uint64 // complete events written
	Gaps       uint64 // sequence number gaps
	BadHeaders uint64 // discarded packets expected to start an event
	Unknown    uint64 // events from unknown boards
	Discarded  uint64 // packets discarded after a desynchronization
}

// Recorder routes the packets of each event to the sink of the board
// that emitted it.
//
// A Recorder is not safe for concurrent use: feed it from a single
// consumer goroutine.
type Recorder struct {
	msg   log.MsgStream
	ids   []int
	sinks []io.Writer

	pos  int // position of the next packet within its event
	last int // sequence number of the previous packet, -1 if none
	dst  int // sink index of the current event, -1 if unresolved

	buffered bool
	evt      []byte // current event, when buffering

	stats Stats
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the message stream of the recorder.
func WithLogger(msg log.MsgStream) Option {
	return func(rec *Recorder) {
		rec.msg = msg
	}
}

// WithEventBuffering makes the recorder accumulate the packets of an
// event and write them to the sink only once the event is complete.
// Events interrupted by a sequence gap are dropped.
func WithEventBuffering() Option {
	return func(rec *Recorder) {
		rec.buffered = true
	}
}

// NewRecorder creates a recorder routing events of board ids[i] into
// sinks[i].
func NewRecorder(ids []int, sinks []io.Writer, opts ...Option) (*Recorder, error) {
	if len(ids) != len(sinks) {
		return nil, fmt.Errorf(
			"burst: mismatched number of board ids (%d) and sinks (%d)",
			len(ids), len(sinks),
		)
	}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("burst: duplicate board id %d", id)
		}
		seen[id] = true
	}

	rec := &Recorder{
		msg:   log.NewMsgStream("burst", log.LvlInfo, os.Stdout),
		ids:   append([]int(nil), ids...),
		sinks: append([]io.Writer(nil), sinks...),
		last:  -1,
		dst:   -1,
	}
	for _, opt := range opts {
		opt(rec)
	}
	return rec, nil
}

// Stats returns the packet counters.
func (rec *Recorder) Stats() Stats { return rec.stats }

// Record processes one packet.
//
// Malformed or out-of-sequence packets are discarded and the recorder
// resynchronizes on the next event header. An event header naming an
// unknown board yields an errs.KindFatal error wrapping ErrUnknownBoard;
// the event is dropped and recording may continue with the next packet.
// Errors from the sinks are returned as is.
func (rec *Recorder) Record(pkt []byte) error {
	rec.stats.Packets++
	if len(pkt) < HeaderLen {
		rec.msg.Debugf("short packet (len=%d)", len(pkt))
		rec.stats.Discarded++
		rec.resync()
		return nil
	}

	seq := int(pkt[1])
	if rec.last >= 0 && seq != (rec.last+1)%256 {
		rec.msg.Debugf("packet sequence gap: got=%d, want=%d", seq, (rec.last+1)%256)
		rec.stats.Gaps++
		rec.resync()
	}
	rec.last = seq

	payload := pkt[HeaderLen:]
	if rec.pos == 0 {
		id, ok := eventHeader(payload)
		if !ok {
			rec.stats.BadHeaders++
			return nil
		}
		dst := rec.sink(id)
		if dst < 0 {
			rec.stats.Unknown++
			rec.dst = -1
			return errs.New(errs.KindFatal, "burst", id, "route event", ErrUnknownBoard)
		}
		rec.dst = dst
	}

	if rec.dst < 0 {
		rec.stats.Discarded++
		rec.resync()
		return nil
	}

	err := rec.write(payload)
	if err != nil {
		return fmt.Errorf("burst: could not write packet to sink of board %d: %w", rec.ids[rec.dst], err)
	}

	rec.stats.Written++
	rec.pos = (rec.pos + 1) % PacketsPerEvent
	if rec.pos == 0 {
		rec.stats.Events++
		if rec.buffered {
			err = rec.flush()
			if err != nil {
				return fmt.Errorf("burst: could not write event to sink of board %d: %w", rec.ids[rec.dst], err)
			}
		}
	}
	return nil
}

func (rec *Recorder) write(p []byte) error {
	if rec.buffered {
		rec.evt = append(rec.evt, p...)
		return nil
	}
	_, err := rec.sinks[rec.dst].Write(p)
	return err
}

func (rec *Recorder) flush() error {
	defer func() { rec.evt = rec.evt[:0] }()
	_, err := rec.sinks[rec.dst].Write(rec.evt)
	return err
}

// resync drops the current event and waits for a new event header.
func (rec *Recorder) resync() {
	rec.pos = 0
	rec.dst = -1
	rec.evt = rec.evt[:0]
}

func (rec *Recorder) sink(id int) int {
	for i, v := range rec.ids {
		if v == id {
			return i
		}
	}
	return -1
}

// eventHeader checks whether p starts with an event preamble and
// returns the emitting board identifier.
func eventHeader(p []byte) (int, bool) {
	if len(p) < 16 {
		return 0, false
	}
	var (
		w0 = binary.LittleEndian.Uint64(p[0:8])
		w1 = binary.LittleEndian.Uint64(p[8:16])
	)
	if w0&preambleMask != preamble || w1&startMask != startMarker {
		return 0, false
	}
	return int(w0 & 0xff), true
}
