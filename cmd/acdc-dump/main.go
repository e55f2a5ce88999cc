// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// acdc-dump decodes and displays ACDC raw data files, as recorded
// by acc-daq or acc-srv.
//
// Usage: acdc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> acdc-dump ./acc_ACDC0_Run42_Raw.dat
//	=== event 0 (ACDC 0) ===
//	words:     1541
//	ch     mean   stddev  min  max
//	 0   2047.8     12.3 2011 2088
//	 1   2051.2     11.9 2014 2090
//	[...]
//
//	$> acdc-dump -npy ./out ./acc_ACDC0_Run42_Raw.dat
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-lpc/psec/acdc"
	"github.com/go-lpc/psec/burst"
	"github.com/sbinet/npyio"
)

func main() {
	log.SetPrefix("acdc-dump: ")
	log.SetFlags(0)

	xmain(os.Stdout, os.Args[1:])
}

func xmain(w io.Writer, args []string) {
	var (
		fset = flag.NewFlagSet("acdc-dump", flag.ExitOnError)
		npy  = fset.String("npy", "", "output directory for the .npy export of the waveforms")
		evts = fset.Int("n", -1, "number of events to display (-1: all)")
	)

	fset.Usage = func() {
		fmt.Printf(`acdc-dump decodes and displays ACDC raw data files.

Usage: acdc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> acdc-dump ./acc_ACDC0_Run42_Raw.dat
 $> acdc-dump -npy ./out ./acc_ACDC0_Run42_Raw.dat

Options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input ACDC file")
	}

	for _, fname := range fset.Args() {
		err := process(w, fname, *npy, *evts)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname, npy string, nevts int) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	evts, err := burst.ReadEvents(f)
	if err != nil {
		return fmt.Errorf("could not read events: %w", err)
	}

	if npy != "" {
		err = os.MkdirAll(npy, 0755)
		if err != nil {
			return fmt.Errorf("could not create npy output dir: %w", err)
		}
	}

	bad := 0
	for i, evt := range evts {
		if nevts >= 0 && i >= nevts {
			break
		}
		ws := evt.Words
		if len(ws) > acdc.BufferLen {
			ws = ws[:acdc.BufferLen]
		}

		fmt.Fprintf(wbuf, "=== event %d (ACDC %d) ===\n", i, evt.Board)
		fmt.Fprintf(wbuf, "words: % 8d\n", len(evt.Words))

		wfs, err := acdc.Decode(ws)
		if err != nil {
			if !errors.Is(err, acdc.ErrGeometry) {
				bad++
				fmt.Fprintf(wbuf, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(wbuf, "warning: %v\n", err)
		}

		fmt.Fprintf(wbuf, "ch %8s %8s %4s %4s\n", "mean", "stddev", "min", "max")
		for _, st := range wfs.Stats() {
			fmt.Fprintf(wbuf, "%2d %8.1f %8.1f %4d %4d\n",
				st.Channel, st.Mean, st.StdDev, st.Min, st.Max,
			)
		}

		if npy != "" {
			err = export(npy, fname, i, wfs)
			if err != nil {
				return fmt.Errorf("could not export event %d: %w", i, err)
			}
		}
	}
	fmt.Fprintf(wbuf, "events: %d (corrupt: %d)\n", len(evts), bad)

	return nil
}

// npyName returns the name of the .npy file holding event i of fname.
func npyName(dir, fname string, i int) string {
	base := strings.TrimSuffix(filepath.Base(fname), filepath.Ext(fname))
	return filepath.Join(dir, fmt.Sprintf("%s_evt%06d.npy", base, i))
}

func export(dir, fname string, i int, wfs acdc.Waveforms) error {
	f, err := os.Create(npyName(dir, fname, i))
	if err != nil {
		return fmt.Errorf("could not create npy file: %w", err)
	}
	defer f.Close()

	err = npyio.Write(f, wfs.Matrix())
	if err != nil {
		return fmt.Errorf("could not write npy file: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close npy file: %w", err)
	}
	return nil
}
