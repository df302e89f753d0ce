// SPDX-License-Identifier: Apache-2.0

// Package store opens the local SQLite store and brings its schema to the version the
// application expects before handing it out.
//
// Opening is serialised across processes with a lock file next to the database. The schema
// version lives in PRAGMA user_version; an empty database is created directly at the target
// version, an older one is migrated step by step, and a newer one is refused.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/electricsheep/groundwork/internal/migration"
	"github.com/gofrs/flock"
	"github.com/joomcode/errorx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite is the pure Go driver (modernc.org/sqlite).
	DriverSQLite = "sqlite"
	// DriverSQLite3 is the cgo driver (github.com/mattn/go-sqlite3).
	DriverSQLite3 = "sqlite3"

	DefaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 100 * time.Millisecond
)

// CreateFunc builds the latest schema on an empty store.
type CreateFunc func(ctx context.Context, db migration.Execer) error

// Options controls how a store is opened.
type Options struct {
	Path          string
	Driver        string
	TargetVersion int
	Steps         []migration.Step
	Create        CreateFunc
	Logger        *zerolog.Logger
	Journal       journal.Journal
	LockTimeout   time.Duration
	TraceID       string
}

// Store is an open local store at the target schema version.
type Store struct {
	db     *sql.DB
	lock   *flock.Flock
	path   string
	logger *zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Driver == "" {
		o.Driver = DriverSQLite
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.Journal == nil {
		o.Journal = journal.Nop()
	}
}

func (o *Options) validate() error {
	if o.Path == "" {
		return errorx.IllegalArgument.New("store path cannot be empty")
	}
	if o.Driver != DriverSQLite && o.Driver != DriverSQLite3 {
		return errorx.IllegalArgument.New("unsupported store driver %q, expected %q or %q",
			o.Driver, DriverSQLite, DriverSQLite3)
	}
	if o.TargetVersion < 1 {
		return errorx.IllegalArgument.New("target schema version must be positive, got %d", o.TargetVersion)
	}
	if o.Create == nil {
		return errorx.IllegalArgument.New("store schema create function cannot be nil")
	}
	return nil
}

// Open opens the store at opts.Path and brings it to opts.TargetVersion.
// On any failure the store is left closed and the lock released.
func Open(ctx context.Context, opts Options) (*Store, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, NewOpenError(opts.Path, err)
		}
	}

	lock, err := acquireLock(ctx, opts.Path+".lock", opts.LockTimeout)
	if err != nil {
		return nil, err
	}

	s := &Store{lock: lock, path: opts.Path, logger: opts.Logger}
	if err := s.open(ctx, opts); err != nil {
		_ = s.Close()
		opts.Journal.Record(journal.Entry{
			Kind:    journal.KindStore,
			Outcome: "open_failed",
			TraceID: opts.TraceID,
			Err:     err,
			Fields:  map[string]string{"path": opts.Path},
		})
		return nil, err
	}

	opts.Journal.Record(journal.Entry{
		Kind:    journal.KindStore,
		Outcome: "opened",
		TraceID: opts.TraceID,
		Fields: map[string]string{
			"path":    opts.Path,
			"driver":  opts.Driver,
			"version": strconv.Itoa(opts.TargetVersion),
		},
	})

	return s, nil
}

func acquireLock(ctx context.Context, lockPath string, timeout time.Duration) (*flock.Flock, error) {
	lock := flock.New(lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && lockCtx.Err() == nil {
		return nil, NewLockError(lockPath, err)
	}
	if !locked {
		return nil, NewLockError(lockPath, nil)
	}

	return lock, nil
}

func (s *Store) open(ctx context.Context, opts Options) error {
	db, err := sql.Open(opts.Driver, opts.Path)
	if err != nil {
		return NewOpenError(opts.Path, err)
	}
	s.db = db

	if err := db.PingContext(ctx); err != nil {
		return NewOpenError(opts.Path, err)
	}

	// SQLite allows a single writer; pragmas below are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		return NewOpenError(opts.Path, err)
	}

	current, err := readVersion(ctx, db)
	if err != nil {
		return NewOpenError(opts.Path, err)
	}

	if current == 0 {
		return s.create(ctx, opts)
	}

	plan, err := migration.Plan(current, opts.TargetVersion, opts.Steps)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("path", opts.Path).
			Int("current", current).
			Int("target", opts.TargetVersion).
			Msg("Cannot plan schema migration")
		return err
	}

	if len(plan) > 0 {
		s.logger.Info().
			Str("path", opts.Path).
			Int("current", current).
			Int("target", opts.TargetVersion).
			Str("plan", migration.Summary(plan)).
			Msg("Migrating store schema")
	}

	executor := migration.NewExecutor(
		migration.WithLogger(s.logger),
		migration.WithComponent("store"),
		migration.WithVersionWriter(writeVersion),
	)

	for _, step := range plan {
		if err := executor.Apply(ctx, db, step); err != nil {
			opts.Journal.Record(journal.Entry{
				Kind:    journal.KindMigration,
				Outcome: "failed",
				TraceID: opts.TraceID,
				Err:     err,
				Fields:  map[string]string{"path": opts.Path, "step": step.String()},
			})
			return err
		}

		opts.Journal.Record(journal.Entry{
			Kind:    journal.KindMigration,
			Outcome: "applied",
			TraceID: opts.TraceID,
			Reason:  step.Description,
			Fields:  map[string]string{"path": opts.Path, "step": step.String()},
		})
	}

	return nil
}

// create builds the latest schema on an empty database and stamps it with the target version
// in a single transaction.
func (s *Store) create(ctx context.Context, opts Options) error {
	empty, err := isEmpty(ctx, s.db)
	if err != nil {
		return NewOpenError(opts.Path, err)
	}
	if !empty {
		return NewUnversionedStoreError(opts.Path)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewOpenError(opts.Path, err)
	}

	if err := opts.Create(ctx, tx); err != nil {
		_ = tx.Rollback()
		return NewOpenError(opts.Path, err)
	}

	if err := writeVersion(ctx, tx, opts.TargetVersion); err != nil {
		_ = tx.Rollback()
		return NewOpenError(opts.Path, err)
	}

	if err := tx.Commit(); err != nil {
		return NewOpenError(opts.Path, err)
	}

	s.logger.Info().
		Str("path", opts.Path).
		Int("version", opts.TargetVersion).
		Msg("Created store schema")

	opts.Journal.Record(journal.Entry{
		Kind:    journal.KindStore,
		Outcome: "created",
		TraceID: opts.TraceID,
		Fields:  map[string]string{"path": opts.Path, "version": strconv.Itoa(opts.TargetVersion)},
	})

	return nil
}

// Version reads the schema version of the open store.
func (s *Store) Version(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, errorx.IllegalState.New("store %q is closed", s.path)
	}
	return readVersion(ctx, s.db)
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database and releases the store lock. It is safe to call more than once.
func (s *Store) Close() error {
	var errs []error

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
		s.db = nil
	}

	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Str("lockPath", s.lock.Path()).Msg("failed to release store lock")
			errs = append(errs, err)
		}
		s.lock = nil
	}

	if len(errs) > 0 {
		return errorx.ExternalError.Wrap(errs[0], "failed to close store %q", s.path).
			WithUnderlyingErrors(errs[1:]...)
	}

	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errorx.ExternalError.Wrap(err, "failed to execute %q", pragma)
		}
	}

	return nil
}

func readVersion(ctx context.Context, db migration.Execer) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, errorx.ExternalError.Wrap(err, "failed to read schema version")
	}
	return v, nil
}

func writeVersion(ctx context.Context, db migration.Execer, version int) error {
	// PRAGMA does not accept bound parameters.
	_, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}

func isEmpty(ctx context.Context, db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'").Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
