// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command acc-ctl is an interactive console to inspect and drive an ACC.
//
// Usage: acc-ctl [OPTIONS]
//
// Example:
//
//	$> acc-ctl -addr 192.168.133.108:2001
//	acc> discover
//	acc> version
//	acc> read 0x1011
//	acc> phase-scan 0xff
//	acc> quit
package main // import "github.com/go-lpc/psec/cmd/acc-ctl"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	mlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/psec"
	"github.com/go-lpc/psec/acc"
	"github.com/go-lpc/psec/internal/cfgfile"
	"github.com/go-lpc/psec/internal/otsudp"
	"github.com/go-lpc/psec/regs"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("acc-ctl: ")
	log.SetFlags(0)

	var (
		fname = flag.String("cfg", "", "path to configuration file")
		addr  = flag.String("addr", "", "ACC [ip]:port (default: from configuration)")
	)

	flag.Parse()

	cfg, err := cfgfile.Load("acc-ctl", *fname)
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}
	if *addr != "" {
		cfg.ACC = *addr
	}
	if cfg.ACC == "" {
		log.Fatalf("missing ACC address")
	}

	err = run(cfg)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(cfg cfgfile.Config) error {
	msg := mlog.NewMsgStream("acc-ctl", cfg.MsgLevel(), os.Stdout)
	tr, err := otsudp.Dial(cfg.ACC,
		otsudp.WithTimeout(cfg.Timeout),
		otsudp.WithRetries(cfg.Retries),
		otsudp.WithLogger(msg),
	)
	if err != nil {
		return fmt.Errorf("could not dial ACC %q: %w", cfg.ACC, err)
	}
	defer tr.Close()

	opts, err := cfg.Run.Options()
	if err != nil {
		return fmt.Errorf("could not load run configuration: %w", err)
	}
	con := newConsole(tr, os.Stdout, append([]acc.Option{acc.WithLogger(msg)}, opts...)...)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	hist := historyFile()
	if f, err := os.Open(hist); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = line.WriteHistory(f)
	}()

	fmt.Fprintf(con.w, "acc-ctl (psec %s), type help for the list of commands.\n", psec.Version())
	for {
		o, err := line.Prompt("acc> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		line.AppendHistory(o)

		quit, err := con.exec(o)
		if err != nil {
			fmt.Fprintf(con.w, "error: %+v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func historyFile() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, ".psec_acc_ctl_history")
}

type console struct {
	tr  acc.Transport
	dev *acc.Device
	w   io.Writer
}

func newConsole(tr acc.Transport, w io.Writer, opts ...acc.Option) *console {
	return &console{
		tr:  tr,
		dev: acc.New(tr, opts...),
		w:   w,
	}
}

const usage = `commands:
  help                      display this help
  discover                  find the connected ACDC boards
  configure                 configure the ACC and its boards
  version                   display firmware versions
  info SLOT                 display the info frame of a board
  read ADDR [N]             read N registers starting at ADDR
  write ADDR VALUE          write VALUE to register ADDR
  trigger [N]               issue N software triggers
  phase-scan [MASK]         calibrate the link phases of the boards in MASK
  pedestal MASK CHIPS ADC   set the pedestals of CHIPS on the boards in MASK
  reset acdc [MASK]|acc|links
  quit                      leave the console
`

// exec executes one console command.
func (con *console) exec(line string) (bool, error) {
	args := strings.Fields(line)
	switch cmd, args := args[0], args[1:]; cmd {
	case "help", "?":
		fmt.Fprint(con.w, usage)

	case "quit", "exit", "q":
		return true, nil

	case "discover":
		slots, err := con.dev.Discover()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(con.w, "connected ACDCs: %v\n", slots)

	case "configure":
		return false, con.dev.Configure()

	case "version":
		vers, err := con.dev.Version()
		if err != nil {
			return false, err
		}
		_, err = vers.WriteTo(con.w)
		return false, err

	case "info":
		slot, err := argUint(args, 0, -1)
		if err != nil {
			return false, err
		}
		if slot >= regs.NumSlots {
			return false, fmt.Errorf("invalid slot %d", slot)
		}
		inf, err := con.dev.ReadSlowControl(int(slot), acc.DefaultTimeout)
		if err != nil {
			return false, err
		}
		_, err = inf.WriteTo(con.w)
		if err != nil {
			return false, err
		}
		spew.Fdump(con.w, inf.Raw)

	case "read":
		addr, err := argUint(args, 0, -1)
		if err != nil {
			return false, err
		}
		n, err := argUint(args, 1, 1)
		if err != nil {
			return false, err
		}
		return false, con.read(addr, int(n))

	case "write":
		addr, err := argUint(args, 0, -1)
		if err != nil {
			return false, err
		}
		v, err := argUint(args, 1, -1)
		if err != nil {
			return false, err
		}
		return false, con.tr.Write(addr, v)

	case "trigger":
		n, err := argUint(args, 0, 1)
		if err != nil {
			return false, err
		}
		for i := uint64(0); i < n; i++ {
			err = con.dev.SoftwareTrigger()
			if err != nil {
				return false, err
			}
		}

	case "phase-scan":
		mask, err := argUint(args, 0, int64(con.dev.Mask()))
		if err != nil {
			return false, err
		}
		ps, err := con.dev.ScanLinkPhase(uint8(mask))
		if err != nil {
			return false, err
		}
		_, err = ps.WriteTo(con.w)
		return false, err

	case "pedestal":
		mask, err := argUint(args, 0, -1)
		if err != nil {
			return false, err
		}
		chips, err := argUint(args, 1, -1)
		if err != nil {
			return false, err
		}
		adc, err := argUint(args, 2, -1)
		if err != nil {
			return false, err
		}
		return false, con.dev.SetPedestal(uint8(mask), uint8(chips), uint16(adc))

	case "reset":
		if len(args) == 0 {
			return false, fmt.Errorf("missing reset target")
		}
		switch args[0] {
		case "acdc":
			mask, err := argUint(args, 1, 0xff)
			if err != nil {
				return false, err
			}
			return false, con.dev.ResetACDC(uint8(mask))
		case "acc":
			return false, con.dev.ResetACC()
		case "links":
			return false, con.dev.ResetLinks()
		default:
			return false, fmt.Errorf("invalid reset target %q", args[0])
		}

	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return false, nil
}

func (con *console) read(addr uint64, n int) error {
	var (
		vs  []uint64
		err error
	)
	switch n {
	case 1:
		var v uint64
		v, err = con.tr.Read(addr)
		vs = []uint64{v}
	default:
		vs, err = con.tr.ReadBlock(regs.Block(addr, n))
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(con.w, 0, 8, 1, ' ', 0)
	for i, v := range vs {
		fmt.Fprintf(tw, "0x%08x\t0x%016x\t%d\n", addr+uint64(i), v, v)
	}
	return tw.Flush()
}

// argUint parses the i-th argument as an unsigned integer.
// A missing argument yields def, or an error when def is negative.
func argUint(args []string, i int, def int64) (uint64, error) {
	if i >= len(args) {
		if def < 0 {
			return 0, fmt.Errorf("missing argument #%d", i+1)
		}
		return uint64(def), nil
	}
	v, err := strconv.ParseUint(args[i], 0, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse argument %q: %w", args[i], err)
	}
	return v, nil
}
