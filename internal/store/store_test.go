// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/electricsheep/groundwork/internal/migration"
	"github.com/electricsheep/groundwork/internal/schema"
	"github.com/gofrs/flock"
	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const version1Schema = `
CREATE TABLE moods (
    id        TEXT    NOT NULL PRIMARY KEY,
    score     INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    createdAt INTEGER,
    updatedAt INTEGER
);
INSERT INTO moods (id, score, timestamp) VALUES ('m1', 4, 1700000000), ('m2', 2, 1700000100);
`

// recordingJournal keeps entries in memory.
type recordingJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *recordingJournal) Record(e journal.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingJournal) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Kind+":"+e.Outcome)
	}
	return out
}

func seedStore(t *testing.T, path string, ddl string, version int) {
	t.Helper()
	db, err := sql.Open(DriverSQLite, path)
	require.NoError(t, err)
	defer db.Close()

	if ddl != "" {
		_, err = db.Exec(ddl)
		require.NoError(t, err)
	}
	_, err = db.Exec("PRAGMA user_version = " + strconv.Itoa(version))
	require.NoError(t, err)
}

func rawVersion(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open(DriverSQLite, path)
	require.NoError(t, err)
	defer db.Close()

	var v int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&v))
	return v
}

func defaultOptions(path string) Options {
	return Options{
		Path:          path,
		TargetVersion: schema.TargetVersion,
		Steps:         schema.Steps(),
		Create:        schema.Create,
		LockTimeout:   500 * time.Millisecond,
	}
}

func TestOpen_FreshStoreIsCreatedAtTarget(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "app.db")
	j := &recordingJournal{}

	opts := defaultOptions(path)
	opts.Journal = j
	s, err := Open(ctx, opts)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.TargetVersion, v)
	assert.Equal(t, path, s.Path())

	_, err = s.DB().Exec("INSERT INTO moods (id, score, timestamp, userId) VALUES ('x', 1, 1, 'u1')")
	require.NoError(t, err)

	assert.Equal(t, []string{"store:created", "store:opened"}, j.outcomes())
}

func TestOpen_MigratesVersion1Store(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	seedStore(t, path, version1Schema, 1)
	j := &recordingJournal{}

	opts := defaultOptions(path)
	opts.Journal = j
	opts.TraceID = "trace-42"
	s, err := Open(ctx, opts)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	rows, err := s.DB().Query("SELECT userId FROM moods ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()
	var users []string
	for rows.Next() {
		var u string
		require.NoError(t, rows.Scan(&u))
		users = append(users, u)
	}
	assert.Equal(t, []string{schema.PlaceholderUserID, schema.PlaceholderUserID}, users)

	assert.Equal(t, []string{"migration:applied", "store:opened"}, j.outcomes())
	assert.Equal(t, "trace-42", j.entries[0].TraceID)
	assert.Equal(t, "1->2", j.entries[0].Fields["step"])
}

func TestOpen_AtTargetRunsNothing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	s, err := Open(ctx, defaultOptions(path))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	called := false
	opts := defaultOptions(path)
	opts.Steps = []migration.Step{
		migration.MustStep(1, 2, "should not run", func(ctx context.Context, db migration.Execer) error {
			called = true
			return nil
		}),
	}
	s, err = Open(ctx, opts)
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, called)
}

func TestOpen_RefusesDowngrade(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	seedStore(t, path, version1Schema, 3)

	s, err := Open(ctx, defaultOptions(path))
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, errorx.IsOfType(err, migration.DowngradeNotSupported), "unexpected error: %v", err)

	assert.Equal(t, 3, rawVersion(t, path), "store must be left untouched")
}

func TestOpen_FailedMigrationLeavesVersionAndReleasesLock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	seedStore(t, path, version1Schema, 1)
	j := &recordingJournal{}

	opts := defaultOptions(path)
	opts.Journal = j
	opts.Steps = []migration.Step{
		migration.MustStep(1, 2, "broken", func(ctx context.Context, db migration.Execer) error {
			if _, err := db.ExecContext(ctx, "ALTER TABLE moods ADD COLUMN userId TEXT"); err != nil {
				return err
			}
			return errors.New("disk full")
		}),
	}

	s, err := Open(ctx, opts)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, errorx.IsOfType(err, migration.MigrationFailed), "unexpected error: %v", err)
	assert.Equal(t, 1, rawVersion(t, path))
	assert.Equal(t, []string{"migration:failed", "store:open_failed"}, j.outcomes())

	// the lock is released: a later open with the real steps succeeds
	s, err = Open(ctx, defaultOptions(path))
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestOpen_GapInRegisteredSteps(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	seedStore(t, path, version1Schema, 1)

	opts := defaultOptions(path)
	opts.TargetVersion = 4
	opts.Steps = []migration.Step{
		migration.MustStep(1, 2, "a", func(ctx context.Context, db migration.Execer) error { return nil }),
		migration.MustStep(3, 4, "b", func(ctx context.Context, db migration.Execer) error { return nil }),
	}

	_, err := Open(ctx, opts)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, migration.MigrationGap))
	assert.Equal(t, 1, rawVersion(t, path), "no step runs when the plan is invalid")
}

func TestOpen_UnversionedStoreWithTables(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	seedStore(t, path, version1Schema, 0)

	_, err := Open(ctx, defaultOptions(path))
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, UnversionedStore))
}

func TestOpen_LockContention(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	other := flock.New(path + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	opts := defaultOptions(path)
	opts.LockTimeout = 200 * time.Millisecond
	_, err = Open(ctx, opts)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, LockError), "unexpected error: %v", err)

	require.NoError(t, other.Unlock())

	s, err := Open(ctx, opts)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{name: "empty path", mutate: func(o *Options) { o.Path = "" }},
		{name: "unknown driver", mutate: func(o *Options) { o.Driver = "postgres" }},
		{name: "zero target", mutate: func(o *Options) { o.TargetVersion = 0 }},
		{name: "missing create", mutate: func(o *Options) { o.Create = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions(filepath.Join(t.TempDir(), "app.db"))
			tt.mutate(&opts)
			_, err := Open(context.Background(), opts)
			require.Error(t, err)
			assert.True(t, errorx.IsOfType(err, errorx.IllegalArgument))
		})
	}
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	s, err := Open(ctx, defaultOptions(path))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Version(ctx)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, errorx.IllegalState))

	_, err = os.Stat(path + ".lock")
	assert.NoError(t, err)
}
