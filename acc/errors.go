// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"errors"

	"github.com/go-lpc/psec/internal/errs"
)

// Kind classifies errors returned by the psec packages.
type Kind = errs.Kind

const (
	KindUnknown  = errs.KindUnknown
	KindConfig   = errs.KindConfig   // invalid configuration
	KindHardware = errs.KindHardware // transport failure or unexpected hardware state
	KindTimeout  = errs.KindTimeout  // slow-control polling ran out of time
	KindFatal    = errs.KindFatal    // unrecoverable condition for the current operation
)

var (
	ErrTimeout     = errors.New("slow-control timeout")
	ErrTriggerMode = errors.New("invalid trigger mode")
	ErrThresholds  = errors.New("invalid number of trigger thresholds")
	ErrPedestals   = errors.New("invalid number of pedestals")
	ErrNoBoards    = errors.New("no ACDC board connected")
	ErrShortRead   = errors.New("short register read")
)

// Error is the error type returned by Device operations, and by the
// acdc and burst packages.
type Error = errs.Error

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	return errs.KindOf(err)
}

func newError(kind Kind, board int, op string, err error) *Error {
	return errs.New(kind, "acc", board, op, err)
}
