// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package framedb archives decoded SPI frames into a MySQL database.
package framedb // import "github.com/go-lpc/spidec/framedb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-lpc/spidec/spi"
	"github.com/go-sql-driver/mysql"
)

var (
	drvName = "mysql"
)

const schema = `
CREATE TABLE IF NOT EXISTS frames (
	run        VARCHAR(64)     NOT NULL,
	idx        BIGINT UNSIGNED NOT NULL,
	packet     BIGINT          NOT NULL,
	sample_beg BIGINT UNSIGNED NOT NULL,
	sample_end BIGINT UNSIGNED NOT NULL,
	mosi       BIGINT UNSIGNED NOT NULL,
	miso       BIGINT UNSIGNED NOT NULL,
	ordinal    TINYINT UNSIGNED NOT NULL,
	flags      TINYINT UNSIGNED NOT NULL,
	PRIMARY KEY (run, idx)
)`

const insertFrame = `INSERT INTO frames
	(run, idx, packet, sample_beg, sample_end, mosi, miso, ordinal, flags)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Record is an archived frame.
type Record struct {
	Index  uint64
	Packet spi.PacketID
	Frame  spi.Frame
}

// DB is a frames archive.
type DB struct {
	db   *sql.DB
	name string
}

// DSN returns the data source name of the database dbname served
// over TCP at addr.
func DSN(usr, pwd, addr, dbname string) string {
	cfg := mysql.NewConfig()
	cfg.User = usr
	cfg.Passwd = pwd
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = dbname
	return cfg.FormatDSN()
}

// Open opens a connection to the frames archive described by dsn.
func Open(dsn string) (*DB, error) {
	name := dsn
	if cfg, err := mysql.ParseDSN(dsn); err == nil {
		name = cfg.DBName
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("framedb: could not open %q db: %w", name, err)
	}

	err = ping(db, name)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: name}, nil
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("framedb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// CreateTable creates the frames table if it does not exist yet.
func (db *DB) CreateTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("framedb: could not create frames table: %w", err)
	}
	return nil
}

// Insert archives the records of a run in a single transaction.
func (db *DB) Insert(ctx context.Context, run string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("framedb: could not start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertFrame)
	if err != nil {
		return fmt.Errorf("framedb: could not prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		f := rec.Frame
		_, err = stmt.ExecContext(ctx,
			run, rec.Index, int64(rec.Packet),
			f.Start, f.End, f.Data1, f.Data2, f.Type, f.Flags,
		)
		if err != nil {
			return fmt.Errorf("framedb: could not insert frame %d of run %q: %w", rec.Index, run, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("framedb: could not commit frames of run %q: %w", run, err)
	}
	return nil
}

// Frames returns the archived records of a run, by frame index.
func (db *DB) Frames(ctx context.Context, run string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(ctx,
		`SELECT idx, packet, sample_beg, sample_end, mosi, miso, ordinal, flags
		FROM frames WHERE run=? ORDER BY idx`,
		run,
	)
	if err != nil {
		return nil, fmt.Errorf("framedb: could not query frames of run %q: %w", run, err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var (
			rec Record
			pkt int64
		)
		err = rows.Scan(
			&rec.Index, &pkt,
			&rec.Frame.Start, &rec.Frame.End,
			&rec.Frame.Data1, &rec.Frame.Data2,
			&rec.Frame.Type, &rec.Frame.Flags,
		)
		if err != nil {
			return recs, fmt.Errorf("framedb: could not scan frame of run %q: %w", run, err)
		}
		rec.Packet = spi.PacketID(pkt)
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return recs, fmt.Errorf("framedb: could not scan db for frames: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return recs, fmt.Errorf("framedb: context error while retrieving frames: %w", err)
	}

	return recs, nil
}

// Runs returns the names of the archived runs.
func (db *DB) Runs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(ctx, "SELECT DISTINCT run FROM frames ORDER BY run")
	if err != nil {
		return nil, fmt.Errorf("framedb: could not query runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var run string
		err = rows.Scan(&run)
		if err != nil {
			return runs, fmt.Errorf("framedb: could not scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return runs, fmt.Errorf("framedb: could not scan db for runs: %w", err)
	}

	return runs, nil
}

// Collect returns the records of the published frames [beg, end).
func Collect(res spi.FrameReader, beg, end uint64) ([]Record, error) {
	if end <= beg {
		return nil, nil
	}
	recs := make([]Record, 0, end-beg)
	for i := beg; i < end; i++ {
		f, err := res.Frame(i)
		if err != nil {
			return recs, fmt.Errorf("framedb: could not collect frame %d: %w", i, err)
		}
		recs = append(recs, Record{
			Index:  i,
			Packet: res.PacketContainingFrame(i),
			Frame:  f,
		})
	}
	return recs, nil
}
