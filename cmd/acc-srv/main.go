// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command acc-srv starts a TDAQ run-control server driving an ACC.
//
// The ACC address, the burst data address and the run configuration
// are read from the acc-srv.yaml configuration file, searched in
// /etc/psec, $HOME/.psec and the current directory, or from the file
// named by the ACC_SRV_CONFIG environment variable.
package main // import "github.com/go-lpc/psec/cmd/acc-srv"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/psec"
	"github.com/go-lpc/psec/acc"
	"github.com/go-lpc/psec/internal/cfgfile"
	"github.com/go-lpc/psec/internal/otsudp"
)

func main() {
	log.SetPrefix("acc-srv: ")
	log.SetFlags(0)

	cmd := flags.New()

	cfg, err := cfgfile.Load("acc-srv", os.Getenv("ACC_SRV_CONFIG"))
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}
	if cfg.ACC == "" {
		log.Fatalf("missing ACC address")
	}

	opts, err := cfg.DeviceOptions(context.Background())
	if err != nil {
		log.Fatalf("could not load run configuration: %+v", err)
	}

	tr, err := otsudp.Dial(cfg.ACC,
		otsudp.WithTimeout(cfg.Timeout),
		otsudp.WithRetries(cfg.Retries),
	)
	if err != nil {
		log.Fatalf("could not dial ACC: %+v", err)
	}
	defer tr.Close()

	log.Printf("psec %s", psec.Version())
	dev := acc.NewServer(tr, cfg.Output, cfg.Data, opts...)
	dev.WithRecorder(cfg.RecorderOptions()...)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.RunHandle(dev.Run)

	err = srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
