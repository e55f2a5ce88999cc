// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"fmt"

	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/conddb"
	"github.com/go-lpc/psec/regs"
)

// FileConfig is the run configuration of an ACC, as read from a
// configuration file.
type FileConfig struct {
	Trigger      string `mapstructure:"trigger"`
	BoardMask    uint8  `mapstructure:"board_mask"`
	Events       int    `mapstructure:"events"`
	Timeout      int    `mapstructure:"timeout"`
	CalMask      uint16 `mapstructure:"cal_mask"`
	ResetOnStart bool   `mapstructure:"reset_on_start"`

	SMA struct {
		Polarity uint64 `mapstructure:"polarity"`
		Start    uint64 `mapstructure:"start"`
		Window   uint64 `mapstructure:"window"`
	} `mapstructure:"sma"`

	Coincidence struct {
		Mask    uint64   `mapstructure:"mask"`
		Delay   []uint64 `mapstructure:"delay"`
		Stretch []uint64 `mapstructure:"stretch"`
	} `mapstructure:"coincidence"`

	Boards []BoardConfig `mapstructure:"boards"`
}

// BoardConfig is the configuration of one ACDC board.
type BoardConfig struct {
	Slot         int      `mapstructure:"slot"`
	Reset        bool     `mapstructure:"reset"`
	Pedestals    []uint16 `mapstructure:"pedestals"`
	Polarity     uint16   `mapstructure:"polarity"`
	Thresholds   []uint16 `mapstructure:"thresholds"`
	SelfTrigMask uint32   `mapstructure:"self_trig_mask"`
	Calib        bool     `mapstructure:"calib"`
	DLLVdd       uint16   `mapstructure:"dll_vdd"`
	Backpressure *bool    `mapstructure:"backpressure"`
}

// Options converts the configuration into device options.
// Zero values select the defaults.
func (cfg FileConfig) Options() ([]Option, error) {
	var opts []Option
	if cfg.Trigger != "" {
		mode, err := ParseTriggerMode(cfg.Trigger)
		if err != nil {
			return nil, newError(KindConfig, -1, "trigger", err)
		}
		opts = append(opts, WithTriggerMode(mode))
	}
	if cfg.BoardMask != 0 {
		opts = append(opts, WithBoardMask(cfg.BoardMask))
	}
	if cfg.Events != 0 {
		opts = append(opts, WithEvents(cfg.Events))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.CalMask != 0 {
		opts = append(opts, WithCalMask(cfg.CalMask))
	}
	if cfg.ResetOnStart {
		opts = append(opts, WithResetOnStart(true))
	}
	opts = append(opts,
		WithTrigPolarity(cfg.SMA.Polarity),
		WithValidation(cfg.SMA.Start, cfg.SMA.Window),
	)

	if c := cfg.Coincidence; c.Mask != 0 || len(c.Delay) != 0 || len(c.Stretch) != 0 {
		delay, err := perSlot("coincidence delay", c.Delay, 0)
		if err != nil {
			return nil, err
		}
		stretch, err := perSlot("coincidence stretch", c.Stretch, 5)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCoincidence(c.Mask, delay, stretch))
	}

	for _, brd := range cfg.Boards {
		if brd.Slot < 0 || brd.Slot >= regs.NumSlots {
			return nil, newError(KindConfig, brd.Slot, "board", fmt.Errorf("invalid slot"))
		}
		p := acdc.DefaultParams()
		p.Reset = brd.Reset
		if brd.Pedestals != nil {
			p.Pedestals = brd.Pedestals
		}
		if brd.Thresholds != nil {
			p.Thresholds = brd.Thresholds
		}
		p.SelfTrigPolarity = brd.Polarity
		p.SelfTrigMask = brd.SelfTrigMask
		p.CalibMode = brd.Calib
		if brd.DLLVdd != 0 {
			p.DLLVdd = brd.DLLVdd
		}
		if brd.Backpressure != nil {
			p.Backpressure = *brd.Backpressure
		}
		opts = append(opts, WithBoard(brd.Slot, p))
	}
	return opts, nil
}

func perSlot(name string, vs []uint64, def uint64) ([regs.NumSlots]uint64, error) {
	var arr [regs.NumSlots]uint64
	switch len(vs) {
	case 0:
		for i := range arr {
			arr[i] = def
		}
	case regs.NumSlots:
		copy(arr[:], vs)
	default:
		return arr, newError(KindConfig, -1, name,
			fmt.Errorf("got %d values, want %d", len(vs), regs.NumSlots),
		)
	}
	return arr, nil
}

// FromDB converts an ACC configuration and its board configurations,
// as stored in the configuration database, into device options.
func FromDB(cfg conddb.ACC, boards []conddb.ACDC) ([]Option, error) {
	mode, err := ParseTriggerMode(cfg.TriggerMode)
	if err != nil {
		return nil, newError(KindConfig, -1, "trigger", err)
	}

	opts := []Option{
		WithTriggerMode(mode),
		WithBoardMask(cfg.BoardMask),
		WithEvents(cfg.Events),
		WithTrigPolarity(cfg.TrigPolarity),
		WithValidation(cfg.ValidStart, cfg.ValidWindow),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.CalMask != 0 {
		opts = append(opts, WithCalMask(cfg.CalMask))
	}
	if cfg.CoincMask != 0 {
		stretch, _ := perSlot("coincidence stretch", nil, 5)
		opts = append(opts, WithCoincidence(cfg.CoincMask, [regs.NumSlots]uint64{}, stretch))
	}

	for _, brd := range boards {
		slot := int(brd.Slot)
		if slot >= regs.NumSlots {
			return nil, newError(KindConfig, slot, "board", fmt.Errorf("invalid slot"))
		}
		p := acdc.Params{
			Reset:            brd.Reset,
			Pedestals:        append([]uint16(nil), brd.Pedestals[:]...),
			SelfTrigPolarity: brd.Polarity,
			Thresholds:       brd.Thresholds,
			SelfTrigMask:     brd.SelfTrigMask,
			CalibMode:        brd.CalibMode,
			DLLVdd:           brd.DLLVdd,
			Backpressure:     brd.Backpressure,
		}
		opts = append(opts, WithBoard(slot, p))
	}
	return opts, nil
}
