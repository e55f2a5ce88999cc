// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acdc

import (
	"math"
	"strings"
	"testing"
)

func makeInfo() []uint64 {
	buf := make([]uint64, InfoLen)
	buf[0] = 0x1234
	buf[1] = 0xbbbb
	buf[2] = 0x0105
	buf[3] = 0x2022
	buf[4] = 0x0914
	buf[5] = 0x2
	buf[6] = 0x1f<<4 | LockSys | LockACC | LockSerial
	buf[11], buf[12] = 0x1, 0x0002
	buf[13], buf[14] = 0x0, 0x0042
	buf[15], buf[16] = 0x2, 0x0010
	buf[17], buf[18] = 0x0, 0x0007
	for i := 0; i < NumChips; i++ {
		buf[21+i] = uint64(10 + i)
	}
	buf[26] = 3
	buf[27] = 4
	buf[30] = 0xbbbb
	buf[31] = 0x4321
	return buf
}

func TestInfoFrame(t *testing.T) {
	inf, err := ParseInfo(makeInfo())
	if err != nil {
		t.Fatalf("could not parse info frame: %+v", err)
	}

	if !inf.HeaderOK() || !inf.Valid() {
		t.Fatalf("invalid header/footer")
	}
	if got, want := inf.Firmware(), uint64(0x105); got != want {
		t.Fatalf("invalid firmware: got=0x%x, want=0x%x", got, want)
	}
	y, m, d := inf.Date()
	if y != 0x2022 || m != 0x09 || d != 0x14 {
		t.Fatalf("invalid date: got=%x/%x/%x", y, m, d)
	}
	if !inf.Locked(LockSys | LockACC | LockSerial) {
		t.Fatalf("PLLs should be locked")
	}
	if inf.Locked(LockWR) {
		t.Fatalf("WR PLL should not be locked")
	}
	if got, want := inf.Locks(), uint64(0xe); got != want {
		t.Fatalf("invalid locks: got=0x%x, want=0x%x", got, want)
	}
	if got, want := inf.FLLLocks(), uint64(0x1f); got != want {
		t.Fatalf("invalid FLL locks: got=0x%x, want=0x%x", got, want)
	}
	if !inf.Backpressure() || inf.ParityError() {
		t.Fatalf("invalid status bits")
	}

	for _, tc := range []struct {
		name string
		got  uint64
		want uint64
	}{
		{"triggers", inf.Triggers(), 0x10002},
		{"accepted", inf.Accepted(), 0x42},
		{"events", inf.Events(), 0x20010},
		{"id-frames", inf.IDFrames(), 7},
		{"psec-2", inf.PSECFIFO(2), 12},
		{"wr-time", inf.WRTimeFIFO(), 3},
		{"sys-time", inf.SysTimeFIFO(), 4},
	} {
		if tc.got != tc.want {
			t.Errorf("%s: got=0x%x, want=0x%x", tc.name, tc.got, tc.want)
		}
	}

	o := new(strings.Builder)
	_, err = inf.WriteTo(o)
	if err != nil {
		t.Fatalf("could not write info frame: %+v", err)
	}
	for _, want := range []string{
		"(correct)",
		"acc=1 serial=1 sys=1 wr=0",
		"PSEC4 FIFO:",
		"sys time FIFO:",
	} {
		if !strings.Contains(o.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, o.String())
		}
	}
}

func TestInfoFrameHeader(t *testing.T) {
	buf := makeInfo()
	buf[0] = 0xdead0000 | 0x1234
	inf, err := ParseInfo(buf)
	if err != nil {
		t.Fatalf("could not parse info frame: %+v", err)
	}
	if !inf.HeaderOK() {
		t.Fatalf("header check only considers the low 16 bits")
	}
	if inf.Valid() {
		t.Fatalf("frame should not be fully valid")
	}

	_, err = ParseInfo(buf[:10])
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestStats(t *testing.T) {
	wfs := Waveforms{
		2: {1, 2, 3, 4},
		0: {10, 10, 10, 10},
		5: nil,
	}
	if got, want := wfs.Channels(), []int{0, 2, 5}; len(got) != len(want) || got[0] != 0 || got[1] != 2 || got[2] != 5 {
		t.Fatalf("invalid channels: got=%v, want=%v", got, want)
	}

	sts := wfs.Stats()
	if got, want := len(sts), 3; got != want {
		t.Fatalf("invalid stats: got=%d, want=%d", got, want)
	}
	if sts[0].Mean != 10 || sts[0].StdDev != 0 {
		t.Fatalf("invalid stats for ch=0: %+v", sts[0])
	}
	if sts[1].Mean != 2.5 || sts[1].Min != 1 || sts[1].Max != 4 {
		t.Fatalf("invalid stats for ch=2: %+v", sts[1])
	}
	if want := math.Sqrt(5.0 / 3.0); math.Abs(sts[1].StdDev-want) > 1e-12 {
		t.Fatalf("invalid std-dev for ch=2: got=%v, want=%v", sts[1].StdDev, want)
	}

	m := wfs.Matrix()
	r, c := m.Dims()
	if r != NumChannels || c != NumSamples {
		t.Fatalf("invalid matrix dims: (%d, %d)", r, c)
	}
	if got, want := m.At(2, 3), 4.0; got != want {
		t.Fatalf("invalid matrix element: got=%v, want=%v", got, want)
	}
}
