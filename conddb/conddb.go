// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to describe the condition and configuration
// database for PSEC4 digitizer arrays.
package conddb // import "github.com/go-lpc/psec/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var (
	host = "localhost"
	usr  = "username"
	pwd  = "s3cr3t"

	drvName = "mysql"
)

const queryTimeout = 5 * time.Second

// DB exposes convenience methods to easily retrieve configuration data
// from the PSEC database.
type DB struct {
	db   *sql.DB
	name string // name of the PSEC database
}

// Open opens a connection to the PSEC database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastConfig returns the name of the most recent ACC configuration.
func (db *DB) LastConfig(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	name := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name FROM acc_configs ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return name, fmt.Errorf("conddb: could not query last ACC cfg: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&name)
		if err != nil {
			return name, fmt.Errorf("conddb: could not get last ACC cfg value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return name, fmt.Errorf("conddb: could not scan db for last ACC cfg: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return name, fmt.Errorf("conddb: context error while retrieving last ACC cfg: %w", err)
	}

	return name, nil
}

// ACCConfig returns the ACC configuration with the given name.
func (db *DB) ACCConfig(ctx context.Context, name string) (ACC, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		cfg   ACC
		found bool
	)
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT
	name, trigger_mode, board_mask, events,
	trig_polarity, valid_start, valid_window,
	coinc_mask, cal_mask, timeout
FROM acc_configs
WHERE name=?
`,
		name,
	)
	if err != nil {
		return cfg, fmt.Errorf("conddb: could not run ACC cfg query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(
			&cfg.Name, &cfg.TriggerMode, &cfg.BoardMask, &cfg.Events,
			&cfg.TrigPolarity, &cfg.ValidStart, &cfg.ValidWindow,
			&cfg.CoincMask, &cfg.CalMask, &cfg.Timeout,
		)
		if err != nil {
			return cfg, fmt.Errorf("conddb: could not scan ACC cfg %q: %w", name, err)
		}
		found = true
	}

	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: could not scan db for ACC cfg: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: context error while retrieving ACC cfg: %w", err)
	}

	if !found {
		return cfg, fmt.Errorf("conddb: no ACC cfg %q: %w", name, ErrNotFound)
	}

	return cfg, nil
}

// ACDCConfigs returns the board configurations attached to the ACC
// configuration with the given name, thresholds included.
func (db *DB) ACDCConfigs(ctx context.Context, name string) ([]ACDC, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var cfgs []ACDC
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT
	acdc_configs.slot, acdc_configs.reset,
	acdc_configs.ped0, acdc_configs.ped1, acdc_configs.ped2,
	acdc_configs.ped3, acdc_configs.ped4,
	acdc_configs.polarity, acdc_configs.self_trig_mask,
	acdc_configs.calib, acdc_configs.dll_vdd, acdc_configs.backpressure
FROM acdc_configs
JOIN acc_configs ON acc_configs.identifier=acdc_configs.acc_config
WHERE acc_configs.name=?
ORDER BY acdc_configs.slot
`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not run ACDC cfg query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var brd ACDC
		err = rows.Scan(
			&brd.Slot, &brd.Reset,
			&brd.Pedestals[0], &brd.Pedestals[1], &brd.Pedestals[2],
			&brd.Pedestals[3], &brd.Pedestals[4],
			&brd.Polarity, &brd.SelfTrigMask,
			&brd.CalibMode, &brd.DLLVdd, &brd.Backpressure,
		)
		if err != nil {
			return nil, fmt.Errorf("conddb: could not scan row %d for ACDC cfg: %w", i, err)
		}
		i++
		cfgs = append(cfgs, brd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conddb: could not scan db for ACDC cfg: %w", err)
	}
	// release the connection before issuing the thresholds queries.
	rows.Close()

	for i := range cfgs {
		thr, err := db.thresholds(ctx, name, cfgs[i].Slot)
		if err != nil {
			return nil, err
		}
		cfgs[i].Thresholds = thr
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conddb: context error while retrieving ACDC cfg: %w", err)
	}

	return cfgs, nil
}

func (db *DB) thresholds(ctx context.Context, name string, slot uint8) ([]uint16, error) {
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT acdc_thresholds.channel, acdc_thresholds.value
FROM acdc_thresholds
JOIN acc_configs ON acc_configs.identifier=acdc_thresholds.acc_config
WHERE (
	acc_configs.name=? AND acdc_thresholds.slot=?
)
ORDER BY acdc_thresholds.channel
`,
		name, slot,
	)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not run thresholds query (slot=%d): %w", slot, err)
	}
	defer rows.Close()

	var thr []uint16
	for rows.Next() {
		var (
			ch  int
			val uint16
		)
		err = rows.Scan(&ch, &val)
		if err != nil {
			return nil, fmt.Errorf("conddb: could not scan thresholds (slot=%d): %w", slot, err)
		}
		if ch != len(thr) {
			return nil, fmt.Errorf(
				"conddb: non contiguous thresholds (slot=%d, channel=%d, want=%d)",
				slot, ch, len(thr),
			)
		}
		thr = append(thr, val)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conddb: could not scan db for thresholds (slot=%d): %w", slot, err)
	}

	return thr, nil
}
