// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package burst

import (
	"fmt"
	"io"

	"github.com/go-lpc/psec/regs"
)

// Event is a recorded event, as found in a raw data file.
type Event struct {
	Board int      // identifier of the emitting board
	Words []uint64 // event words, starting with the preamble
}

// ReadEvents reads a raw data file written by a Recorder and splits it
// into events. Words found before the first event preamble are skipped;
// a trailing partial word is ignored.
func ReadEvents(r io.Reader) ([]Event, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("burst: could not read raw data: %w", err)
	}
	return SplitEvents(regs.Words(raw)), nil
}

// SplitEvents splits a word stream on event preambles.
func SplitEvents(ws []uint64) []Event {
	var (
		evts []Event
		beg  = -1
	)
	for i := range ws {
		if !isPreamble(ws[i:]) {
			continue
		}
		if beg >= 0 {
			evts = append(evts, newEvent(ws[beg:i]))
		}
		beg = i
	}
	if beg >= 0 {
		evts = append(evts, newEvent(ws[beg:]))
	}
	return evts
}

func newEvent(ws []uint64) Event {
	return Event{
		Board: int(ws[0] & 0xff),
		Words: ws,
	}
}

func isPreamble(ws []uint64) bool {
	return len(ws) >= 2 &&
		ws[0]&preambleMask == preamble &&
		ws[1]&startMask == startMarker
}
