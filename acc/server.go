// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acc

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/psec/burst"
	"github.com/hashicorp/go-multierror"
)

// Server exposes an ACC as a TDAQ run-control process.
type Server struct {
	mu  sync.Mutex
	tr  Transport
	dev *Device

	odir  string // output directory of the recorded files
	radix string // radix of the recorded files
	data  string // UDP address receiving the burst packets

	opts []Option
	recs []burst.Option

	run  uint32
	acq  *acquisition
	trig time.Duration // software trigger period
}

type acquisition struct {
	sinks  *burst.Sinks
	rec    *burst.Recorder
	conn   net.PacketConn
	cancel context.CancelFunc
	done   chan error
}

// NewServer creates a run-control server for the ACC reached through tr.
// Recorded files are written under odir; burst packets are received on
// the UDP address data.
func NewServer(tr Transport, odir, data string, opts ...Option) *Server {
	return &Server{
		tr:    tr,
		odir:  odir,
		radix: "acc",
		data:  data,
		opts:  opts,
		trig:  softTrigPeriod,
	}
}

// WithRecorder sets the options of the recorders created at each run.
func (srv *Server) WithRecorder(opts ...burst.Option) {
	srv.recs = opts
}

// Device returns the device configured by the last /config command.
func (srv *Server) Device() *Device {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.dev
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	srv.mu.Lock()
	defer srv.mu.Unlock()

	opts := append([]Option{WithLogger(ctx.Msg)}, srv.opts...)
	dev := New(srv.tr, opts...)
	err := dev.Configure()
	if err != nil {
		ctx.Msg.Errorf("could not configure ACC: %+v", err)
		return fmt.Errorf("could not configure ACC: %w", err)
	}
	srv.dev = dev
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.dev == nil {
		return fmt.Errorf("acc: /init before /config")
	}
	vs, err := srv.dev.Version()
	if err != nil {
		ctx.Msg.Errorf("could not read versions: %+v", err)
		return fmt.Errorf("could not read versions: %w", err)
	}
	o := new(bytes.Buffer)
	_, _ = vs.WriteTo(o)
	ctx.Msg.Infof("versions:\n%s", o.String())
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.mu.Lock()
	defer srv.mu.Unlock()

	var errs *multierror.Error
	if srv.acq != nil {
		if err := srv.stop(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if srv.dev != nil {
		if err := srv.dev.ResetACDC(srv.dev.Mask()); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	srv.dev = nil
	return errs.ErrorOrNil()
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.dev == nil {
		return fmt.Errorf("acc: /start before /config")
	}
	if srv.acq != nil {
		return fmt.Errorf("acc: run %d already started", srv.run)
	}

	run := srv.run + 1
	if len(req.Body) >= 4 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		run = dec.ReadU32()
	}

	err := srv.start(ctx, run)
	if err != nil {
		ctx.Msg.Errorf("could not start run %d: %+v", run, err)
		return fmt.Errorf("could not start run %d: %w", run, err)
	}
	srv.run = run
	return nil
}

func (srv *Server) start(ctx tdaq.Context, runnbr uint32) error {
	var ids []int
	for _, brd := range srv.dev.Boards() {
		if srv.dev.Mask()&brd.Mask() != 0 {
			ids = append(ids, brd.Slot)
		}
	}

	run := strconv.Itoa(int(runnbr))
	sinks, err := burst.OpenSinks(srv.odir, srv.radix, run, ids)
	if err != nil {
		return fmt.Errorf("could not open output files: %w", err)
	}

	opts := append([]burst.Option{burst.WithLogger(ctx.Msg)}, srv.recs...)
	rec, err := burst.NewRecorder(ids, sinks.Writers(), opts...)
	if err != nil {
		_ = sinks.Close()
		return fmt.Errorf("could not create recorder: %w", err)
	}

	conn, err := net.ListenPacket("udp", srv.data)
	if err != nil {
		_ = sinks.Close()
		return fmt.Errorf("could not listen for data on %q: %w", srv.data, err)
	}

	acq := &acquisition{
		sinks: sinks,
		rec:   rec,
		conn:  conn,
		done:  make(chan error, 1),
	}
	var actx context.Context
	actx, acq.cancel = context.WithCancel(context.Background())
	go func() {
		acq.done <- burst.Acquire(actx, conn, rec)
	}()

	err = srv.dev.Start(runnbr)
	if err != nil {
		acq.cancel()
		<-acq.done
		_ = conn.Close()
		_ = sinks.Close()
		return err
	}

	srv.acq = acq
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.acq == nil {
		return nil
	}
	return srv.stop(ctx)
}

func (srv *Server) stop(ctx tdaq.Context) error {
	acq := srv.acq
	srv.acq = nil

	var errs *multierror.Error
	if err := srv.dev.Stop(); err != nil {
		errs = multierror.Append(errs, err)
	}

	acq.cancel()
	if err := <-acq.done; err != nil {
		errs = multierror.Append(errs, fmt.Errorf("could not record run %d: %w", srv.run, err))
	}
	if err := acq.conn.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := acq.sinks.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}

	st := acq.rec.Stats()
	ctx.Msg.Infof(
		"run %d: packets=%d events=%d gaps=%d bad-headers=%d unknown=%d discarded=%d",
		srv.run, st.Packets, st.Events, st.Gaps, st.BadHeaders, st.Unknown, st.Discarded,
	)
	for _, name := range acq.sinks.Names() {
		ctx.Msg.Infof("output file: %s", name)
	}
	return errs.ErrorOrNil()
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.acq != nil {
		return srv.stop(ctx)
	}
	return nil
}

// Run issues software triggers while a run is active, when the device
// is in software trigger mode.
func (srv *Server) Run(ctx tdaq.Context) error {
	srv.mu.Lock()
	dev := srv.dev
	srv.mu.Unlock()
	if dev == nil || dev.TriggerMode() != TrigSoftware {
		<-ctx.Ctx.Done()
		return nil
	}

	tick := time.NewTicker(srv.trig)
	defer tick.Stop()

	n := 0
	for {
		select {
		case <-ctx.Ctx.Done():
			ctx.Msg.Infof("issued %d software triggers", n)
			return nil
		case <-tick.C:
			srv.mu.Lock()
			if srv.acq == nil {
				srv.mu.Unlock()
				continue
			}
			err := dev.SoftwareTrigger()
			srv.mu.Unlock()
			if err != nil {
				return fmt.Errorf("could not issue software trigger: %w", err)
			}
			n++
			if want := dev.Events(); want > 0 && n >= want {
				<-ctx.Ctx.Done()
				ctx.Msg.Infof("issued %d software triggers", n)
				return nil
			}
		}
	}
}
