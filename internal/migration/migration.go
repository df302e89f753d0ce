// SPDX-License-Identifier: Apache-2.0

// Package migration provides forward-only, versioned schema migrations for the local store.
//
// A schema version is a positive integer. Each Step upgrades the store from exactly one version
// to a strictly higher one and runs inside a single transaction together with the write of the
// new version number, so a failed step leaves the store at the version it had before the step.
//
// # Usage
//
// 1. Declare the steps of the schema:
//
//	step, err := migration.NewStep(1, 2, "add userId to moods",
//	    func(ctx context.Context, db migration.Execer) error {
//	        _, err := db.ExecContext(ctx, "ALTER TABLE moods ADD COLUMN userId TEXT")
//	        return err
//	    })
//
// 2. Check that the registered steps form a contiguous chain:
//
//	err := migration.ValidateSequence(1, 2, steps)
//
// 3. Select and apply the steps that lead from the stored version to the target:
//
//	plan, err := migration.Plan(current, target, steps)
//	executor := migration.NewExecutor(
//	    migration.WithLogger(logger),
//	    migration.WithComponent("store"),
//	    migration.WithVersionWriter(writeUserVersion),
//	)
//	err = executor.ApplyAll(ctx, db, plan)
//
// # Design Principles
//
// - Forward-only: downgrades are rejected, never emulated by dropping data
// - Contiguous: every version between the stored one and the target is covered by exactly one step
// - Atomic: a step and its version bump commit together or not at all
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
)

// Execer is the open store handle a step operates on. It is satisfied by *sql.Tx and *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner opens the transaction a step runs in. It is satisfied by *sql.DB and *sql.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ApplyFunc performs the schema change of a step.
type ApplyFunc func(ctx context.Context, db Execer) error

// VersionWriter records the schema version reached by a step inside the step's transaction.
type VersionWriter func(ctx context.Context, db Execer, version int) error

// Step is a single forward schema transformation from one version to the next.
// Steps are values; once registered they are not modified.
type Step struct {
	From        int
	To          int
	Description string
	Apply       ApplyFunc
}

// NewStep declares a step, rejecting it unless to > from.
func NewStep(from, to int, description string, apply ApplyFunc) (Step, error) {
	if err := ValidateStep(from, to); err != nil {
		return Step{}, err
	}

	if apply == nil {
		return Step{}, errorx.IllegalArgument.New("migration %d->%d has no apply function", from, to)
	}

	return Step{From: from, To: to, Description: description, Apply: apply}, nil
}

// MustStep is NewStep for static registries; it panics on an invalid declaration.
func MustStep(from, to int, description string, apply ApplyFunc) Step {
	s, err := NewStep(from, to, description, apply)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Step) String() string {
	return fmt.Sprintf("%d->%d", s.From, s.To)
}

// Summary renders a human readable list of the steps, or an empty string when there are none.
func Summary(steps []Step) string {
	if len(steps) == 0 {
		return ""
	}

	var sb strings.Builder
	if len(steps) == 1 {
		sb.WriteString(fmt.Sprintf("1 migration required: %s - %s", steps[0], steps[0].Description))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%d migrations required:\n", len(steps)))
	for i, s := range steps {
		sb.WriteString(fmt.Sprintf("  %d. %s - %s\n", i+1, s, s.Description))
	}

	return sb.String()
}

// Executor applies steps against a store, one transaction per step.
type Executor struct {
	component     string
	logger        *zerolog.Logger
	versionWriter VersionWriter
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger for the executor.
func WithLogger(logger *zerolog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithComponent sets the component name used in log records.
func WithComponent(component string) Option {
	return func(e *Executor) {
		e.component = component
	}
}

// WithVersionWriter sets how the reached version is recorded. Without one, only the step itself runs.
func WithVersionWriter(w VersionWriter) Option {
	return func(e *Executor) {
		e.versionWriter = w
	}
}

// NewExecutor creates a new migration executor with the given options.
func NewExecutor(opts ...Option) *Executor {
	nop := zerolog.Nop()
	e := &Executor{
		component: "unknown",
		logger:    &nop,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Apply runs a single step in its own transaction. Any failure, including a panic inside the
// step, rolls the transaction back and is reported as MigrationFailed.
func (e *Executor) Apply(ctx context.Context, db TxBeginner, step Step) (err error) {
	if err = ValidateStep(step.From, step.To); err != nil {
		return err
	}

	if step.Apply == nil {
		return NewMigrationFailedError(step.From, step.To,
			errorx.IllegalArgument.New("migration has no apply function"))
	}

	e.logger.Info().
		Str("component", e.component).
		Int("from", step.From).
		Int("to", step.To).
		Str("description", step.Description).
		Msg("Executing migration")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return e.failed(step, errorx.ExternalError.Wrap(err, "failed to begin transaction"))
	}

	committed := false
	defer func() {
		if committed {
			return
		}

		if r := recover(); r != nil {
			err = e.failed(step, errorx.IllegalState.New("migration step panicked: %v", r))
		}

		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Warn().
				Err(rbErr).
				Str("component", e.component).
				Int("from", step.From).
				Int("to", step.To).
				Msg("Rollback failed")
		}
	}()

	if err = step.Apply(ctx, tx); err != nil {
		return e.failed(step, err)
	}

	if e.versionWriter != nil {
		if err = e.versionWriter(ctx, tx, step.To); err != nil {
			return e.failed(step, errorx.ExternalError.Wrap(err, "failed to record schema version %d", step.To))
		}
	}

	if err = tx.Commit(); err != nil {
		return e.failed(step, errorx.ExternalError.Wrap(err, "failed to commit transaction"))
	}
	committed = true

	e.logger.Info().
		Str("component", e.component).
		Int("from", step.From).
		Int("to", step.To).
		Msg("Migration completed successfully")

	return nil
}

// ApplyAll applies the steps in order and stops at the first failure. Steps committed before the
// failure stay committed.
func (e *Executor) ApplyAll(ctx context.Context, db TxBeginner, steps []Step) error {
	if len(steps) == 0 {
		e.logger.Info().
			Str("component", e.component).
			Msg("No migrations required")
		return nil
	}

	e.logger.Info().
		Str("component", e.component).
		Int("count", len(steps)).
		Int("from", steps[0].From).
		Int("to", steps[len(steps)-1].To).
		Msg("Executing migrations")

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return NewMigrationFailedError(step.From, step.To, err)
		}

		if err := e.Apply(ctx, db, step); err != nil {
			return err
		}
	}

	e.logger.Info().
		Str("component", e.component).
		Int("count", len(steps)).
		Msg("All migrations completed successfully")

	return nil
}

func (e *Executor) failed(step Step, cause error) error {
	e.logger.Error().
		Err(cause).
		Str("component", e.component).
		Int("from", step.From).
		Int("to", step.To).
		Msg("Migration failed, transaction rolled back")

	return NewMigrationFailedError(step.From, step.To, cause)
}
