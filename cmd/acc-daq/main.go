// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command acc-daq drives an ACC data acquisition in stand-alone mode.
//
// acc-daq configures the ACC and its boards, starts a run and records
// the burst packet stream into one raw data file per board, under a
// new session directory of the output directory.
//
// Usage: acc-daq [OPTIONS]
//
// Example:
//
//	$> acc-daq -cfg ./acc-daq.yaml -run 42 -n 1000
//	$> acc-daq -run 43 -dur 10m
//
// When a run fails, a mail alert is sent to the MAIL_TGTS recipients
// if the MAIL_USERNAME, MAIL_PASSWORD, MAIL_SERVER and MAIL_PORT
// environment variables are set.
package main // import "github.com/go-lpc/psec/cmd/acc-daq"

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/psec"
	"github.com/go-lpc/psec/acc"
	"github.com/go-lpc/psec/burst"
	"github.com/go-lpc/psec/internal/cfgfile"
	"github.com/go-lpc/psec/internal/otsudp"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	mail "gopkg.in/gomail.v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	log.SetPrefix("acc-daq: ")
	log.SetFlags(0)

	var (
		fname  = flag.String("cfg", "", "path to configuration file")
		runnbr = flag.Int("run", -1, "run number")
		nevts  = flag.Int("n", 0, "number of software triggers (default: from configuration)")
		dur    = flag.Duration("dur", 0, "run duration (0: until interrupted or all triggers issued)")
		drain  = flag.Duration("drain", 500*time.Millisecond, "time to wait for in-flight packets after stop")
	)

	flag.Parse()

	if *runnbr < 0 {
		log.Fatalf("invalid run number value")
	}

	cfg, err := cfgfile.Load("acc-daq", *fname)
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}

	w, closer := logOutput(cfg)
	defer closer.Close()
	log.SetOutput(w)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if *dur > 0 {
		ctx, cancel = context.WithTimeout(ctx, *dur)
		defer cancel()
	}

	msg := mlog.NewMsgStream("acc-daq", cfg.MsgLevel(), w)
	err = run(ctx, msg, cfg, uint32(*runnbr), *nevts, *drain)
	if err != nil {
		alertMail(uint32(*runnbr), err)
		log.Printf("could not run acc-daq: %+v", err)
		_ = closer.Close()
		os.Exit(1)
	}
}

// logOutput returns the writer receiving the command messages: stdout,
// mirrored into a rotated log file when one is configured.
func logOutput(cfg cfgfile.Config) (io.Writer, io.Closer) {
	if cfg.Logs.File == "" {
		return os.Stdout, io.NopCloser(nil)
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Logs.File,
		MaxSize:    cfg.Logs.MaxSize,
		MaxAge:     cfg.Logs.MaxAge,
		MaxBackups: cfg.Logs.MaxBackups,
		Compress:   cfg.Logs.Compress,
	}
	return io.MultiWriter(os.Stdout, rotator), rotator
}

// sessionDir returns a new, unique, output directory under base.
func sessionDir(base string, run uint32) string {
	return filepath.Join(base, fmt.Sprintf("run-%06d-%s", run, ulid.Make()))
}

func run(ctx context.Context, msg mlog.MsgStream, cfg cfgfile.Config, run uint32, nevts int, drain time.Duration) error {
	if cfg.ACC == "" {
		return fmt.Errorf("missing ACC address")
	}
	msg.Infof("psec %s", psec.Version())

	opts, err := cfg.DeviceOptions(ctx)
	if err != nil {
		return fmt.Errorf("could not load run configuration: %w", err)
	}
	if nevts > 0 {
		opts = append(opts, acc.WithEvents(nevts))
	}

	tr, err := otsudp.Dial(cfg.ACC,
		otsudp.WithTimeout(cfg.Timeout),
		otsudp.WithRetries(cfg.Retries),
		otsudp.WithLogger(msg),
	)
	if err != nil {
		return fmt.Errorf("could not dial ACC: %w", err)
	}
	defer tr.Close()

	dev := acc.New(tr, append([]acc.Option{acc.WithLogger(msg)}, opts...)...)
	err = dev.Configure()
	if err != nil {
		return fmt.Errorf("could not configure ACC: %w", err)
	}

	vers, err := dev.Version()
	if err != nil {
		return fmt.Errorf("could not read versions: %w", err)
	}
	o := new(strings.Builder)
	_, _ = vers.WriteTo(o)
	msg.Infof("versions:\n%s", o.String())

	var ids []int
	for _, brd := range dev.Boards() {
		if dev.Mask()&brd.Mask() != 0 {
			ids = append(ids, brd.Slot)
		}
	}

	odir := sessionDir(cfg.Output, run)
	sinks, err := burst.OpenSinks(odir, "acc", strconv.Itoa(int(run)), ids)
	if err != nil {
		return fmt.Errorf("could not open output files: %w", err)
	}
	defer sinks.Close()

	rec, err := newRecorder(msg, cfg, sinks.IDs(), sinks.Writers())
	if err != nil {
		return fmt.Errorf("could not create recorder: %w", err)
	}

	conn, err := net.ListenPacket("udp", cfg.Data)
	if err != nil {
		return fmt.Errorf("could not listen for data on %q: %w", cfg.Data, err)
	}
	defer conn.Close()

	acq, stop := context.WithCancel(context.Background())
	defer stop()

	var grp errgroup.Group
	grp.Go(func() error {
		return burst.Acquire(acq, conn, rec)
	})

	err = dev.Start(run)
	if err != nil {
		stop()
		_ = grp.Wait()
		return fmt.Errorf("could not start run %d: %w", run, err)
	}

	start := time.Now()
	n, errTrig := trigger(ctx, dev)
	errStop := dev.Stop()

	time.Sleep(drain)
	stop()
	errAcq := grp.Wait()

	st := rec.Stats()
	msg.Infof(
		"run %d: triggers=%d packets=%d events=%d gaps=%d bad-headers=%d unknown=%d discarded=%d (%v)",
		run, n, st.Packets, st.Events, st.Gaps, st.BadHeaders, st.Unknown, st.Discarded,
		time.Since(start),
	)

	switch {
	case errTrig != nil:
		return fmt.Errorf("could not issue software triggers: %w", errTrig)
	case errStop != nil:
		return fmt.Errorf("could not stop run %d: %w", run, errStop)
	case errAcq != nil:
		return fmt.Errorf("could not record run %d: %w", run, errAcq)
	}

	err = sinks.Close()
	if err != nil {
		return fmt.Errorf("could not close output files: %w", err)
	}
	for _, name := range sinks.Names() {
		msg.Infof("output file: %s", name)
	}
	return nil
}

// newRecorder creates the burst recorder routing the events of boards
// ids into sinks.
func newRecorder(msg mlog.MsgStream, cfg cfgfile.Config, ids []int, sinks []io.Writer) (*burst.Recorder, error) {
	opts := append([]burst.Option{burst.WithLogger(msg)}, cfg.RecorderOptions()...)
	return burst.NewRecorder(ids, sinks, opts...)
}

// trigger issues the software triggers of a run, or waits for ctx to be
// done when the boards are triggered by hardware.
func trigger(ctx context.Context, dev *acc.Device) (int, error) {
	if dev.TriggerMode() != acc.TrigSoftware {
		<-ctx.Done()
		return 0, nil
	}
	return dev.Listen(ctx, dev.Events())
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func alertMail(run uint32, err error) {
	msg, ok := newAlert(run, err)
	if !ok {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err = dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func newAlert(run uint32, err error) (*mail.Message, bool) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 || alertMailTgts[0] == "" {
		return nil, false
	}

	host, _ := os.Hostname()
	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[acc-daq] run %d failed", run))
	msg.SetBody("text/plain", fmt.Sprintf("run:  %d\nhost: %s\nerr:  %+v", run, host, err))
	return msg, true
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
