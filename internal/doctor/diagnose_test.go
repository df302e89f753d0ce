// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/automa-saga/automa"
	"github.com/electricsheep/groundwork/internal/config"
	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/electricsheep/groundwork/internal/migration"
	"github.com/electricsheep/groundwork/internal/pinning"
	"github.com/electricsheep/groundwork/internal/remote"
	"github.com/electricsheep/groundwork/internal/store"
	"github.com/joomcode/errorx"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToErrorCodeAndResolution(t *testing.T) {
	pinFailure := remote.NewRequestError(pinning.NewCertificatePinningFailureError("db.example.com", []string{"sha256/x"}), "https://db.example.com", 0)

	tests := []struct {
		name       string
		err        error
		code       int
		resolution string
	}{
		{name: "gap", err: migration.NewMigrationGapError(2, 3), code: CodeMigrationDefect, resolution: "groundwork validate"},
		{name: "non forward", err: migration.NewNonForwardMigrationError(2, 2), code: CodeMigrationDefect, resolution: "gap-free"},
		{name: "incomplete", err: migration.NewIncompleteMigrationSequenceError(2, 4), code: CodeMigrationDefect, resolution: "gap-free"},
		{name: "migration failed", err: migration.NewMigrationFailedError(1, 2, errors.New("disk full")), code: CodeMigrationFailed, resolution: "migration 1->2"},
		{name: "downgrade", err: migration.NewDowngradeNotSupportedError(5, 2), code: CodeStoreConflict, resolution: "schema version 5"},
		{name: "unversioned", err: store.NewUnversionedStoreError("/tmp/app.db"), code: CodeStoreConflict, resolution: "/tmp/app.db"},
		{name: "locked", err: store.NewLockError("/tmp/app.db.lock", nil), code: CodeStoreLocked, resolution: "Another process"},
		{name: "pinning", err: pinFailure, code: CodePinningFailure, resolution: "groundwork pin"},
		{name: "invalid pins", err: pinning.NewInvalidPinSetError("*.example.com", "too few pins"), code: CodeIllegalArgument, resolution: "*.example.com"},
		{name: "remote config", err: remote.NewConfigurationError("url is required"), code: CodeIllegalArgument, resolution: "remote.url"},
		{name: "remote request", err: remote.NewRequestError(nil, "https://db.example.com", 503), code: CodeRemoteUnavailable, resolution: "offline"},
		{name: "module missing", err: remote.NewModuleNotInstalledError("realtime"), code: CodeNotFound, resolution: "Check error message"},
		{
			name:       "illegal argument with payload",
			err:        errorx.IllegalArgument.New("missing").WithProperty(errorx.PropertyPayload(), "store.path"),
			code:       CodeIllegalArgument,
			resolution: `"store.path"`,
		},
		{name: "config not found", err: config.NotFoundError.New("missing"), code: CodeNotFound, resolution: "configuration file"},
		{name: "plain error", err: errors.New("boom"), code: CodeInternal, resolution: "Check error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, toErrorCode(tt.err))
			assert.Contains(t, strings.Join(findResolution(tt.err), "\n"), tt.resolution)
		})
	}
}

func TestDiagnose(t *testing.T) {
	ctx := journal.WithTraceID(context.Background(), "trace-7")
	err := migration.NewMigrationFailedError(1, 2, errors.New("disk full"))

	d := Diagnose(ctx, err)
	assert.Equal(t, "trace-7", d.TraceId)
	assert.Equal(t, CodeMigrationFailed, d.Code)
	assert.Equal(t, "migration.migration_failed", d.ErrorType)
	assert.Equal(t, "disk full", d.Cause)
	assert.NotZero(t, d.Pid)
	assert.Contains(t, d.Journal, config.Get().Journal.Filename)

	d = Diagnose(context.Background(), errors.New("plain"))
	assert.Equal(t, "plain", d.Message)
	assert.Empty(t, d.Cause)
	assert.Empty(t, d.TraceId)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	d := Diagnose(journal.WithTraceID(context.Background(), "trace-8"), store.NewLockError("/tmp/app.db.lock", nil))

	Print(&buf, d, "Close the other instance first.\n\nThen retry.", termenv.WithProfile(termenv.Ascii))

	out := buf.String()
	assert.Contains(t, out, "Error Diagnostics")
	assert.Contains(t, out, "TraceId: trace-8")
	assert.Contains(t, out, "Close the other instance first.")
	assert.Contains(t, out, "Another process holds")
	assert.NotContains(t, out, "\x1b[", "ascii profile prints no escape sequences")
	assert.Less(t, strings.Index(out, "Then retry."), strings.Index(out, "Another process holds"))
}

func TestCheckErr(t *testing.T) {
	code := -1
	exit = func(c int) { code = c }
	defer func() { exit = os.Exit }()

	CheckErr(context.Background(), nil)
	assert.Equal(t, -1, code, "nil error does not exit")

	CheckErr(context.Background(), errors.New("boom"))
	assert.Equal(t, 1, code)
}

func TestGetInstructionsFromReport(t *testing.T) {
	assert.Empty(t, GetInstructionsFromReport(nil))

	nested := &automa.Report{Metadata: map[string]string{"instructions": "do this"}}
	root := &automa.Report{StepReports: []*automa.Report{{}, nested}}
	require.Equal(t, "do this", GetInstructionsFromReport(root))

	assert.Empty(t, GetInstructionsFromReport(&automa.Report{}))
}
