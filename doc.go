// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package psec holds code to control and read out PSEC4 digitizer arrays
// through an ACC (central card) and its ACDC front-end boards.
//
// The acc package drives the ACC registers, the burst package records
// the data stream of a run and the acdc package decodes it.
package psec // import "github.com/go-lpc/psec"

import (
	"runtime/debug"
)

const modPath = "github.com/go-lpc/psec"

// Version returns the version of psec, as recorded in the build
// information of the running binary, or "(devel)" when unknown.
func Version() string {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) string {
	if b == nil {
		return "(devel)"
	}

	mod := &b.Main
	if mod.Path != modPath {
		mod = nil
		for _, m := range b.Deps {
			if m.Path == modPath {
				mod = m
				break
			}
		}
	}
	if mod == nil {
		return "(devel)"
	}

	if r := mod.Replace; r != nil {
		switch {
		case r.Version != "":
			return r.Version + " (replaced)"
		default:
			return mod.Version + "*"
		}
	}
	if mod.Version == "" {
		return "(devel)"
	}
	if mod.Sum != "" {
		return mod.Version + " " + mod.Sum
	}
	return mod.Version
}
