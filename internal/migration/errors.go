// SPDX-License-Identifier: Apache-2.0

package migration

import (
	"github.com/joomcode/errorx"
)

var (
	ErrorsNamespace             = errorx.NewNamespace("migration")
	NonForwardMigration         = ErrorsNamespace.NewType("non_forward_migration")
	MigrationGap                = ErrorsNamespace.NewType("migration_gap")
	IncompleteMigrationSequence = ErrorsNamespace.NewType("incomplete_migration_sequence")
	DowngradeNotSupported       = ErrorsNamespace.NewType("downgrade_not_supported")
	MigrationFailed             = ErrorsNamespace.NewType("migration_failed")

	FromVersionProperty     = errorx.RegisterPrintableProperty("from_version")
	ToVersionProperty       = errorx.RegisterPrintableProperty("to_version")
	ExpectedVersionProperty = errorx.RegisterPrintableProperty("expected_version")
	ActualVersionProperty   = errorx.RegisterPrintableProperty("actual_version")
	TargetVersionProperty   = errorx.RegisterPrintableProperty("target_version")
)

const (
	nonForwardMigrationErrorMsg   = "migrations must be forward-only, cannot migrate from %d to %d"
	migrationGapErrorMsg          = "migration sequence has gap, expected migration from %d, found from %d"
	incompleteSequenceErrorMsg    = "migration sequence incomplete, last migration goes to %d but target is %d"
	downgradeNotSupportedErrorMsg = "store is at version %d which is newer than target version %d"
	migrationFailedErrorMsg       = "migration %d->%d failed"
)

func NewNonForwardMigrationError(from, to int) *errorx.Error {
	return NonForwardMigration.New(nonForwardMigrationErrorMsg, from, to).
		WithProperty(FromVersionProperty, from).
		WithProperty(ToVersionProperty, to)
}

func NewMigrationGapError(expected, actualFrom int) *errorx.Error {
	return MigrationGap.New(migrationGapErrorMsg, expected, actualFrom).
		WithProperty(ExpectedVersionProperty, expected).
		WithProperty(ActualVersionProperty, actualFrom)
}

func NewIncompleteMigrationSequenceError(reached, target int) *errorx.Error {
	return IncompleteMigrationSequence.New(incompleteSequenceErrorMsg, reached, target).
		WithProperty(ActualVersionProperty, reached).
		WithProperty(TargetVersionProperty, target)
}

func NewDowngradeNotSupportedError(current, target int) *errorx.Error {
	return DowngradeNotSupported.New(downgradeNotSupportedErrorMsg, current, target).
		WithProperty(ActualVersionProperty, current).
		WithProperty(TargetVersionProperty, target)
}

func NewMigrationFailedError(from, to int, cause error) *errorx.Error {
	if cause == nil {
		return MigrationFailed.New(migrationFailedErrorMsg, from, to).
			WithProperty(FromVersionProperty, from).
			WithProperty(ToVersionProperty, to)
	}

	return MigrationFailed.Wrap(cause, migrationFailedErrorMsg, from, to).
		WithProperty(FromVersionProperty, from).
		WithProperty(ToVersionProperty, to)
}

// Versions extracts the (from, to) pair recorded on a MigrationFailed or NonForwardMigration error.
func Versions(err error) (from int, to int, ok bool) {
	f, okFrom := errorx.ExtractProperty(err, FromVersionProperty)
	t, okTo := errorx.ExtractProperty(err, ToVersionProperty)
	if !okFrom || !okTo {
		return 0, 0, false
	}

	from, okFrom = f.(int)
	to, okTo = t.(int)
	return from, to, okFrom && okTo
}
