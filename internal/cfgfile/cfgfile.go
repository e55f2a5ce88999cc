// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cfgfile loads the configuration files of the psec commands.
package cfgfile // import "github.com/go-lpc/psec/internal/cfgfile"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/psec/acc"
	"github.com/go-lpc/psec/burst"
	"github.com/go-lpc/psec/conddb"
	"github.com/spf13/viper"
)

// Config is the configuration shared by the psec commands.
type Config struct {
	ACC     string        `mapstructure:"acc"`     // UDP address of the ACC registers
	Data    string        `mapstructure:"data"`    // UDP address receiving burst packets
	Output  string        `mapstructure:"output"`  // output directory
	Timeout time.Duration `mapstructure:"timeout"` // register read timeout
	Retries int           `mapstructure:"retries"`
	Level   string        `mapstructure:"level"` // message stream level

	DB struct {
		Name   string `mapstructure:"name"` // MySQL database, empty to disable
		Config string `mapstructure:"config"`
	} `mapstructure:"db"`

	Logs struct {
		File       string `mapstructure:"file"`
		MaxSize    int    `mapstructure:"max_size"` // megabytes
		MaxAge     int    `mapstructure:"max_age"`  // days
		MaxBackups int    `mapstructure:"max_backups"`
		Compress   bool   `mapstructure:"compress"`
	} `mapstructure:"logs"`

	Recorder struct {
		EventBuffering bool `mapstructure:"event_buffering"` // write complete events only
	} `mapstructure:"recorder"`

	Run acc.FileConfig `mapstructure:"run"`
}

// Load reads the configuration file name.yaml.
//
// When fname is not empty, it names the file to read. Otherwise the
// file is searched in /etc/psec, $HOME/.psec and the current
// directory; a missing file selects the defaults.
// Settings may be overridden by PSEC_XXX environment variables.
func Load(name, fname string) (Config, error) {
	var (
		cfg Config
		v   = viper.New()
	)

	v.SetDefault("data", ":2002")
	v.SetDefault("output", ".")
	v.SetDefault("timeout", 100*time.Millisecond)
	v.SetDefault("retries", 3)
	v.SetDefault("level", "INFO")
	v.SetDefault("logs.max_size", 25)
	v.SetDefault("logs.max_age", 7)
	v.SetDefault("logs.max_backups", 5)

	v.SetEnvPrefix("psec")
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	switch fname {
	case "":
		v.SetConfigName(name)
		v.AddConfigPath("/etc/psec")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".psec"))
		}
		v.AddConfigPath(".")
		err := v.ReadInConfig()
		if err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return cfg, fmt.Errorf("cfgfile: could not read config %q: %w", name, err)
			}
		}
	default:
		v.SetConfigFile(fname)
		err := v.ReadInConfig()
		if err != nil {
			return cfg, fmt.Errorf("cfgfile: could not read config file %q: %w", fname, err)
		}
	}

	err := v.Unmarshal(&cfg)
	if err != nil {
		return cfg, fmt.Errorf("cfgfile: could not decode config %q: %w", name, err)
	}
	return cfg, nil
}

// MsgLevel returns the message stream level named by the configuration.
func (cfg Config) MsgLevel() log.Level {
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG", "DBG":
		return log.LvlDebug
	case "WARN", "WARNING":
		return log.LvlWarning
	case "ERROR", "ERR":
		return log.LvlError
	default:
		return log.LvlInfo
	}
}

// RecorderOptions returns the options of the burst packet recorders.
func (cfg Config) RecorderOptions() []burst.Option {
	var opts []burst.Option
	if cfg.Recorder.EventBuffering {
		opts = append(opts, burst.WithEventBuffering())
	}
	return opts
}

// DeviceOptions returns the ACC device options of the run configuration.
// When a database is configured, the options are read from the named
// database configuration, or from the last recorded one, instead of the
// file.
func (cfg Config) DeviceOptions(ctx context.Context) ([]acc.Option, error) {
	if cfg.DB.Name == "" {
		return cfg.Run.Options()
	}

	db, err := conddb.Open(cfg.DB.Name)
	if err != nil {
		return nil, fmt.Errorf("cfgfile: could not open config db: %w", err)
	}
	defer db.Close()

	name := cfg.DB.Config
	if name == "" {
		name, err = db.LastConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("cfgfile: could not find last config: %w", err)
		}
	}

	accCfg, err := db.ACCConfig(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("cfgfile: could not read ACC config %q: %w", name, err)
	}
	boards, err := db.ACDCConfigs(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("cfgfile: could not read ACDC configs %q: %w", name, err)
	}
	return acc.FromDB(accCfg, boards)
}
