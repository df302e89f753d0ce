// SPDX-License-Identifier: Apache-2.0

// Package schema holds the static registry of schema migrations for the local store.
package schema

import (
	"context"
	_ "embed"

	"github.com/electricsheep/groundwork/internal/migration"
	"github.com/joomcode/errorx"
)

const (
	// TargetVersion is the schema version the application expects.
	TargetVersion = 2

	// PlaceholderUserID is assigned to rows that predate per-user scoping.
	PlaceholderUserID = "placeholder_user"
)

//go:embed schema.sql
var latestSchema string

var steps = []migration.Step{
	migration.MustStep(1, 2, "add userId to moods and index it", addMoodsUserID),
}

// Steps returns the registered migration steps.
func Steps() []migration.Step {
	out := make([]migration.Step, len(steps))
	copy(out, steps)
	return out
}

// Create builds the latest schema on an empty store.
func Create(ctx context.Context, db migration.Execer) error {
	if _, err := db.ExecContext(ctx, latestSchema); err != nil {
		return errorx.ExternalError.Wrap(err, "failed to create schema")
	}
	return nil
}

func addMoodsUserID(ctx context.Context, db migration.Execer) error {
	if _, err := db.ExecContext(ctx, "ALTER TABLE moods ADD COLUMN userId TEXT"); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "UPDATE moods SET userId = ? WHERE userId IS NULL", PlaceholderUserID); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS index_moods_userId ON moods(userId)")
	return err
}
