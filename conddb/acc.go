// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import "errors"

// ErrNotFound is returned when a named configuration does not exist.
var ErrNotFound = errors.New("configuration not found")

// ACC is the configuration of an ACC.
type ACC struct {
	Name         string `json:"name"`
	TriggerMode  string `json:"trigger_mode"`
	BoardMask    uint8  `json:"board_mask"`
	Events       int    `json:"events"`
	TrigPolarity uint64 `json:"trig_polarity"`
	ValidStart   uint64 `json:"valid_start"`
	ValidWindow  uint64 `json:"valid_window"`
	CoincMask    uint64 `json:"coinc_mask"`
	CalMask      uint16 `json:"cal_mask"`
	Timeout      int    `json:"timeout"`
}

// ACDC is the configuration of one ACDC board.
type ACDC struct {
	Slot         uint8     `json:"slot"`
	Reset        bool      `json:"reset"`
	Pedestals    [5]uint16 `json:"pedestals"`
	Polarity     uint16    `json:"polarity"`
	SelfTrigMask uint32    `json:"self_trig_mask"`
	CalibMode    bool      `json:"calib"`
	DLLVdd       uint16    `json:"dll_vdd"`
	Backpressure bool      `json:"backpressure"`
	Thresholds   []uint16  `json:"thresholds"`
}
