// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package burst

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// Sinks is a set of per-board raw data files.
type Sinks struct {
	ids   []int
	fs    []*os.File
	ws    []*bufio.Writer
	names []string
}

// FileName returns the name of the raw data file of board id.
func FileName(radix string, id int, run string) string {
	return fmt.Sprintf("%s_ACDC%d_Run%s_Raw.dat", radix, id, run)
}

// OpenSinks creates one raw data file per board under dir.
func OpenSinks(dir, radix, run string, ids []int) (*Sinks, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("burst: could not create output dir %q: %w", dir, err)
	}

	sinks := &Sinks{ids: append([]int(nil), ids...)}
	for _, id := range ids {
		name := filepath.Join(dir, FileName(radix, id, run))
		f, err := os.Create(name)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("burst: could not create sink for board %d: %w", id, err)
		}
		sinks.fs = append(sinks.fs, f)
		sinks.ws = append(sinks.ws, bufio.NewWriter(f))
		sinks.names = append(sinks.names, name)
	}
	return sinks, nil
}

// IDs returns the board identifiers, in sink order.
func (s *Sinks) IDs() []int { return s.ids }

// Names returns the file names, in sink order.
func (s *Sinks) Names() []string { return s.names }

// Writers returns the sinks as writers, in board order.
func (s *Sinks) Writers() []io.Writer {
	ws := make([]io.Writer, len(s.ws))
	for i, w := range s.ws {
		ws[i] = w
	}
	return ws
}

// Close flushes and closes all files.
func (s *Sinks) Close() error {
	var errs *multierror.Error
	for i, f := range s.fs {
		if i < len(s.ws) {
			if err := s.ws[i].Flush(); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("burst: could not flush %q: %w", f.Name(), err))
			}
		}
		if err := f.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("burst: could not close %q: %w", f.Name(), err))
		}
	}
	s.fs = nil
	s.ws = nil
	return errs.ErrorOrNil()
}
