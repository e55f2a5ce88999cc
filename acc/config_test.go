// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"strings"
	"testing"

	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/conddb"
	"github.com/go-lpc/psec/regs"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
trigger: coincident
board_mask: 3
events: 500
timeout: 200
sma:
  polarity: 1
  start: 4
  window: 8
coincidence:
  mask: 3
  delay: [1, 2, 3, 4, 5, 6, 7, 8]
boards:
  - slot: 1
    reset: true
    pedestals: [1, 2, 3, 4, 5]
    calib: true
    backpressure: false
    self_trig_mask: 63
`

func TestFileConfig(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(testConfig)))

	var cfg FileConfig
	require.NoError(t, v.Unmarshal(&cfg))

	opts, err := cfg.Options()
	require.NoError(t, err)

	dev := newTestDevice(newFakeTransport(), opts...)
	assert.Equal(t, TrigCoincident, dev.TriggerMode())
	assert.Equal(t, uint8(0x03), dev.Mask())
	assert.Equal(t, 500, dev.cfg.events)
	assert.Equal(t, 200, dev.cfg.timeout)
	assert.Equal(t, uint16(0x7fff), dev.cfg.calMask)
	assert.Equal(t, uint64(1), dev.cfg.trig.polarity)
	assert.Equal(t, uint64(4), dev.cfg.trig.start)
	assert.Equal(t, uint64(8), dev.cfg.trig.window)
	assert.Equal(t, uint64(3), dev.cfg.coinc.mask)
	assert.Equal(t, [regs.NumSlots]uint64{1, 2, 3, 4, 5, 6, 7, 8}, dev.cfg.coinc.delay)
	assert.Equal(t, [regs.NumSlots]uint64{5, 5, 5, 5, 5, 5, 5, 5}, dev.cfg.coinc.stretch)

	p := dev.cfg.params(1)
	assert.True(t, p.Reset)
	assert.True(t, p.CalibMode)
	assert.False(t, p.Backpressure)
	assert.Equal(t, []uint16{1, 2, 3, 4, 5}, p.Pedestals)
	assert.Equal(t, uint32(0x3f), p.SelfTrigMask)
	assert.Equal(t, uint16(0xcff), p.DLLVdd)
	assert.Len(t, p.Thresholds, acdc.NumChannels)

	assert.Equal(t, acdc.DefaultParams(), dev.cfg.params(0))
}

func TestFileConfigInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  FileConfig
	}{
		{"trigger", FileConfig{Trigger: "sometimes"}},
		{"slot", FileConfig{Boards: []BoardConfig{{Slot: 8}}}},
		{"delays", func() FileConfig {
			var cfg FileConfig
			cfg.Coincidence.Delay = []uint64{1, 2}
			return cfg
		}()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.cfg.Options()
			require.Error(t, err)
			assert.Equal(t, KindConfig, KindOf(err))
		})
	}
}

func TestFromDB(t *testing.T) {
	cfg := conddb.ACC{
		Name:         "cosmics",
		TriggerMode:  "self-validated",
		BoardMask:    0x01,
		Events:       10,
		TrigPolarity: 1,
		ValidStart:   2,
		ValidWindow:  3,
		CoincMask:    0x0f,
		CalMask:      0x00ff,
		Timeout:      50,
	}
	boards := []conddb.ACDC{{
		Slot:         0,
		Pedestals:    [5]uint16{1, 2, 3, 4, 5},
		Polarity:     1,
		SelfTrigMask: 0x3f,
		DLLVdd:       0x100,
		Backpressure: true,
		Thresholds:   []uint16{1, 2, 3},
	}}

	opts, err := FromDB(cfg, boards)
	require.NoError(t, err)

	dev := newTestDevice(newFakeTransport(), opts...)
	assert.Equal(t, TrigSelfValidated, dev.TriggerMode())
	assert.Equal(t, uint8(0x01), dev.Mask())
	assert.Equal(t, 50, dev.cfg.timeout)
	assert.Equal(t, uint16(0x00ff), dev.cfg.calMask)
	assert.Equal(t, uint64(3), dev.cfg.trig.window)

	p := dev.cfg.params(0)
	assert.Equal(t, []uint16{1, 2, 3, 4, 5}, p.Pedestals)
	assert.Equal(t, uint16(1), p.SelfTrigPolarity)
	assert.Equal(t, []uint16{1, 2, 3}, p.Thresholds)
	assert.True(t, p.Backpressure)

	_, err = FromDB(conddb.ACC{TriggerMode: "never"}, nil)
	assert.ErrorIs(t, err, ErrTriggerMode)
}
