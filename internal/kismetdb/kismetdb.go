// Package kismetdb persists devices, packets, auxiliary data, datasources,
// alerts, messages, and snapshots into a single SQLite log file, the way
// kismetdb logs are written: one open transaction at a time, committed and
// reopened on a fixed interval rather than per statement.
package kismetdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/kismetcore/kismet/internal/classfilter"
	"github.com/kismetcore/kismet/internal/eventbus"
	"github.com/kismetcore/kismet/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// LogOpenChannel is published once a fresh or migrated log is ready for
// writes, so interested listeners (system monitor) can emit a one-shot
// snapshot.
const LogOpenChannel = "KISMETDB_LOG_OPEN"

const transactionInterval = 10 * time.Second

// DB is an open kismetdb log: a *sql.DB plus the transaction-cycling timer
// and prepared statements every insert path uses.
type DB struct {
	sqldb *sql.DB
	path  string

	ephemeral bool

	deviceFilter *classfilter.MACFilter
	packetFilter *classfilter.PacketMACFilter
	logDuplicate bool

	mu       sync.Mutex
	tx       *sql.Tx
	stopCh   chan struct{}
	stopped  sync.WaitGroup
	bus      *eventbus.Bus

	stmts preparedStatements
}

// Option configures Open.
type Option func(*DB)

// Ephemeral removes the database file as soon as it's opened, the way an
// ephemeral kismetdb run keeps data only in the live file-descriptor's
// pages.
func Ephemeral() Option { return func(d *DB) { d.ephemeral = true } }

// WithEventBus publishes KISMETDB_LOG_OPEN on bus once the log is ready.
func WithEventBus(bus *eventbus.Bus) Option { return func(d *DB) { d.bus = bus } }

// WithDeviceFilter applies a device-level MAC filter (C9) before every
// devices-table write.
func WithDeviceFilter(f *classfilter.MACFilter) Option { return func(d *DB) { d.deviceFilter = f } }

// WithPacketFilter applies a packet-level MAC filter (C9) before every
// packets-table write.
func WithPacketFilter(f *classfilter.PacketMACFilter) Option {
	return func(d *DB) { d.packetFilter = f }
}

// WithDuplicatePackets controls whether duplicate packets are still
// logged (kis_log_duplicate_packets).
func WithDuplicatePackets(v bool) Option { return func(d *DB) { d.logDuplicate = v } }

// Open opens (creating if needed) the SQLite log at path, applies forward
// -only migrations, prepares every insert statement, and starts the
// transaction-cycling timer.
func Open(path string, opts ...Option) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kismetdb: open %s: %w", path, err)
	}

	if err := applyPragmas(sqldb, "WAL"); err != nil {
		sqldb.Close()
		return nil, err
	}

	d := &DB{sqldb: sqldb, path: path, stopCh: make(chan struct{})}
	for _, opt := range opts {
		opt(d)
	}

	if d.ephemeral {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			sqldb.Close()
			return nil, fmt.Errorf("kismetdb: unlink ephemeral log: %w", err)
		}
	}

	if err := migrateUp(sqldb); err != nil {
		sqldb.Close()
		return nil, err
	}

	stmts, err := prepareStatements(sqldb)
	if err != nil {
		sqldb.Close()
		return nil, err
	}
	d.stmts = stmts

	if err := d.beginTx(); err != nil {
		sqldb.Close()
		return nil, err
	}

	d.stopped.Add(1)
	go d.transactionLoop()

	if d.bus != nil {
		d.bus.Publish(eventbus.Event{Channel: LogOpenChannel, Fields: map[string]any{"path": path}})
	}

	return d, nil
}

func applyPragmas(db *sql.DB, journalMode string) error {
	pragmas := []string{
		"PRAGMA journal_mode = " + journalMode,
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("kismetdb: %s: %w", p, err)
		}
	}
	return nil
}

func migrateUp(sqldb *sql.DB) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("kismetdb: migrations sub-fs: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("kismetdb: iofs source: %w", err)
	}
	driver, err := sqlite.WithInstance(sqldb, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("kismetdb: sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("kismetdb: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("kismetdb: migrate up: %w", err)
	}
	return nil
}

// beginTxLocked opens the single long-lived transaction every insert runs
// inside. Caller must hold d.mu.
func (d *DB) beginTxLocked() error {
	tx, err := d.sqldb.Begin()
	if err != nil {
		return fmt.Errorf("kismetdb: begin transaction: %w", err)
	}
	d.tx = tx
	return nil
}

func (d *DB) beginTx() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.beginTxLocked()
}

// transactionLoop commits the open transaction and starts a new one every
// transactionInterval, bounding how much a crash can lose and how long
// readers can be blocked by WAL checkpoint contention.
func (d *DB) transactionLoop() {
	defer d.stopped.Done()
	ticker := time.NewTicker(transactionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := d.cycleTx(); err != nil {
				monitoring.Logf("kismetdb: transaction cycle failed: %v", err)
			}
		case <-d.stopCh:
			return
		}
	}
}

func (d *DB) cycleTx() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx != nil {
		if err := d.tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
	}
	return d.beginTxLocked()
}

// Close commits the open transaction, stops the cycling timer, switches
// to DELETE journal mode, and closes the underlying database. If the log
// was opened ephemeral, the file is already unlinked.
func (d *DB) Close() error {
	close(d.stopCh)
	d.stopped.Wait()

	d.mu.Lock()
	if d.tx != nil {
		if err := d.tx.Commit(); err != nil {
			d.mu.Unlock()
			return fmt.Errorf("kismetdb: final commit: %w", err)
		}
		d.tx = nil
	}
	d.mu.Unlock()

	if _, err := d.sqldb.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		monitoring.Logf("kismetdb: switch to DELETE journal mode: %v", err)
	}
	return d.sqldb.Close()
}

// Raw exposes the underlying *sql.DB for callers (pcapng export, retention
// timers) that need read-only queries outside the write transaction.
func (d *DB) Raw() *sql.DB { return d.sqldb }
