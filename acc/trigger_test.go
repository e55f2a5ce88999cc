// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"errors"
	"testing"

	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/regs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerModeString(t *testing.T) {
	for _, tc := range []struct {
		mode TriggerMode
		want string
	}{
		{TrigOff, "off"},
		{TrigSoftware, "software"},
		{TrigSelf, "self"},
		{TrigSelfValidated, "self-validated"},
		{TrigCoincident, "coincident"},
		{TrigSMAValidated, "sma-validated"},
		{TriggerMode(9), "TriggerMode(9)"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			if got, want := tc.mode.String(), tc.want; got != want {
				t.Fatalf("invalid name: got=%q, want=%q", got, want)
			}
			if tc.mode > TrigSMAValidated {
				return
			}
			mode, err := ParseTriggerMode(tc.want)
			if err != nil {
				t.Fatalf("could not parse %q: %+v", tc.want, err)
			}
			if mode != tc.mode {
				t.Fatalf("invalid mode: got=%v, want=%v", mode, tc.mode)
			}
		})
	}

	mode, err := ParseTriggerMode(" 4")
	require.NoError(t, err)
	assert.Equal(t, TrigCoincident, mode)

	for _, s := range []string{"", "6", "-1", "bad"} {
		_, err := ParseTriggerMode(s)
		assert.True(t, errors.Is(err, ErrTriggerMode), "mode %q: err=%v", s, err)
	}
}

func TestTriggerSteps(t *testing.T) {
	names := func(steps []trigStep) []string {
		var o []string
		for _, s := range steps {
			o = append(o, s.name)
		}
		return o
	}

	for _, tc := range []struct {
		mode TriggerMode
		want []string
	}{
		{TrigOff, []string{"off"}},
		{TrigSoftware, []string{"hardware-source"}},
		{TrigSelf, []string{"self-trigger"}},
		{TrigSelfValidated, []string{"hardware-source", "validation-timeout", "self-trigger"}},
		{TrigCoincident, []string{"coincidence", "hardware-source", "validation-timeout", "self-trigger"}},
		{TrigSMAValidated, []string{"sma-validation", "coincidence", "hardware-source", "validation-timeout", "self-trigger"}},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			steps, err := triggerSteps(tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(steps))
		})
	}
}

func TestSetupTriggerSMA(t *testing.T) {
	tr := newFakeTransport()
	dev := newTestDevice(tr,
		WithTrigPolarity(1),
		WithValidation(10, 20),
	)
	dev.boards = []*acdc.Board{acdc.NewBoard(0)}

	err := dev.SetupTrigger(TrigSMAValidated, 0x01)
	require.NoError(t, err)

	var (
		sma   = tr.index(isWrite(regs.TrigPolarity))
		coinc = tr.index(isWrite(regs.CoincMask))
		src   = tr.index(isWrite(regs.AccTrigMode))
		valid = tr.index(isCmd(regs.OpValidTimeout))
		self  = tr.index(isCmd(regs.OpSelfTrig))
		thr   = tr.index(isCmd(regs.OpThreshold))
	)
	for _, i := range []int{sma, coinc, src, valid, self, thr} {
		require.NotEqual(t, -1, i)
	}
	assert.True(t, sma < coinc && coinc < src && src < valid && valid < self && self < thr,
		"invalid order: sma=%d coinc=%d src=%d valid=%d self=%d thr=%d",
		sma, coinc, src, valid, self, thr,
	)

	assert.Equal(t, []uint64{1}, tr.writesAt(regs.TrigPolarity))
	assert.Equal(t, []uint64{10}, tr.writesAt(regs.ValidStart))
	assert.Equal(t, []uint64{20}, tr.writesAt(regs.ValidWindow))
	assert.Equal(t, []uint64{0x0f}, tr.writesAt(regs.CoincMask))
	assert.Equal(t, []uint64{5}, tr.writesAt(regs.Reg(regs.CoincStretch, 7)))

	// sma-validated mode has no dedicated hardware source.
	for i := 0; i < regs.NumSlots; i++ {
		assert.Equal(t, []uint64{0}, tr.writesAt(regs.Reg(regs.AccTrigMode, i)))
	}

	var (
		selfTrig   int
		thresholds int
	)
	for _, cmd := range tr.commands() {
		op, mask, payload := cmd.Decode()
		switch {
		case op == regs.OpSelfTrig:
			selfTrig++
			assert.Equal(t, uint8(0x01), mask)
		case op >= regs.OpThreshold && op < regs.OpThreshold+acdc.NumChanPerChip:
			thresholds++
			_, v := regs.SplitChipPayload(payload)
			assert.Equal(t, uint16(0x780), v)
		}
	}
	assert.Equal(t, acdc.NumChips+1, selfTrig)
	assert.Equal(t, acdc.NumChannels, thresholds)
}

func TestSetupTriggerInvalidMode(t *testing.T) {
	tr := newFakeTransport()
	dev := newTestDevice(tr)

	err := dev.SetupTrigger(TriggerMode(7), 0xff)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTriggerMode))
	assert.Equal(t, KindConfig, KindOf(err))
	assert.Empty(t, tr.writes)
}

func TestSetupTriggerThresholds(t *testing.T) {
	tr := newFakeTransport()
	dev := newTestDevice(tr)

	bad := acdc.NewBoard(1)
	bad.Params.Thresholds = bad.Params.Thresholds[:10]
	dev.boards = []*acdc.Board{acdc.NewBoard(0), bad, acdc.NewBoard(2)}

	err := dev.SetupTrigger(TrigSelf, 0x07)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrThresholds))
	assert.Equal(t, KindConfig, KindOf(err))

	thresholds := make(map[uint8]int)
	selfTrig := make(map[uint8]int)
	for _, cmd := range tr.commands() {
		op, mask, _ := cmd.Decode()
		switch {
		case op == regs.OpSelfTrig:
			selfTrig[mask]++
		case op >= regs.OpThreshold && op < regs.OpThreshold+acdc.NumChanPerChip:
			thresholds[mask]++
		}
	}
	assert.Equal(t, map[uint8]int{0x01: 30, 0x04: 30}, thresholds)
	assert.Equal(t, map[uint8]int{0x01: 6, 0x02: 6, 0x04: 6}, selfTrig)
}

func TestSetHardwareTrigSrc(t *testing.T) {
	for _, tc := range []struct {
		src  int
		acc  uint64
		acdc uint16
	}{
		{0, 0, 0},
		{1, 1, 1},
		{2, 0, 2},
		{3, 2, 1},
		{4, 5, 3},
		{5, 0, 0},
		{42, 0, 0},
	} {
		tr := newFakeTransport()
		dev := newTestDevice(tr)
		require.NoError(t, dev.SetHardwareTrigSrc(tc.src, 0x81))

		for i := 0; i < regs.NumSlots; i++ {
			want := uint64(0)
			if i == 0 || i == 7 {
				want = tc.acc
			}
			assert.Equal(t, []uint64{want}, tr.writesAt(regs.Reg(regs.AccTrigMode, i)), "src=%d slot=%d", tc.src, i)
		}
		cmds := tr.commands()
		require.Len(t, cmds, 1)
		assert.Equal(t, regs.Encode(regs.OpTrigMode, 0x81, tc.acdc), cmds[0], "src=%d", tc.src)
	}
}
