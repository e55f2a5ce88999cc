// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errs holds the error kinds shared by the psec packages.
package errs // import "github.com/go-lpc/psec/internal/errs"

import (
	"errors"
	"fmt"
)

// Kind classifies errors.
type Kind int

const (
	KindUnknown  Kind = iota
	KindConfig        // invalid configuration
	KindHardware      // transport failure or unexpected hardware state
	KindTimeout       // slow-control polling ran out of time
	KindFatal         // unrecoverable condition for the current operation
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindHardware:
		return "hardware"
	case KindTimeout:
		return "timeout"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

// Error is a classified error.
type Error struct {
	Kind  Kind
	Pkg   string // package reporting the error
	Board int    // board identifier, -1 if not board specific
	Op    string
	Err   error
}

// New returns a new error of the given kind.
func New(kind Kind, pkg string, board int, op string, err error) *Error {
	return &Error{Kind: kind, Pkg: pkg, Board: board, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Pkg + ": "
	if e.Board >= 0 {
		msg += fmt.Sprintf("board %d: ", e.Board)
	}
	if e.Op != "" {
		msg += e.Op + ": "
	}
	return msg + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
