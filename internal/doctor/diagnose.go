// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/automa-saga/automa"
	"github.com/automa-saga/logx"
	"github.com/electricsheep/groundwork/internal/config"
	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/electricsheep/groundwork/internal/migration"
	"github.com/electricsheep/groundwork/internal/pinning"
	"github.com/electricsheep/groundwork/internal/remote"
	"github.com/electricsheep/groundwork/internal/store"
	"github.com/electricsheep/groundwork/internal/version"
	"github.com/electricsheep/groundwork/internal/workflows/notify"
	"github.com/joomcode/errorx"
	"github.com/muesli/termenv"
)

// Error codes reported by Diagnose.
const (
	CodeIllegalArgument   = 10400
	CodeNotFound          = 10404
	CodeStoreConflict     = 10409
	CodeMigrationDefect   = 10422
	CodeStoreLocked       = 10423
	CodeInternal          = 10500
	CodeMigrationFailed   = 10510
	CodeRemoteUnavailable = 10502
	CodePinningFailure    = 10526
)

type ErrorDiagnosis struct {
	Error      error    `yaml:"-" json:"-"`
	Message    string   `yaml:"message" json:"message"`
	Cause      string   `yaml:"cause" json:"cause"`
	ErrorType  string   `yaml:"errorType" json:"errorType"`
	TraceId    string   `yaml:"traceId" json:"traceId"`
	Commit     string   `yaml:"commit" json:"commit"`
	Version    string   `yaml:"version" json:"version"`
	Pid        int      `yaml:"pid" json:"pid"`
	Code       int      `yaml:"code" json:"code"`
	Journal    string   `yaml:"journal" json:"journal"`
	Resolution []string `yaml:"steps" json:"steps"`
}

func toErrorCode(err error) int {
	switch {
	case errorx.IsOfType(err, migration.NonForwardMigration),
		errorx.IsOfType(err, migration.MigrationGap),
		errorx.IsOfType(err, migration.IncompleteMigrationSequence):
		return CodeMigrationDefect
	case errorx.IsOfType(err, migration.MigrationFailed):
		return CodeMigrationFailed
	case errorx.IsOfType(err, migration.DowngradeNotSupported),
		errorx.IsOfType(err, store.UnversionedStore):
		return CodeStoreConflict
	case errorx.IsOfType(err, store.LockError):
		return CodeStoreLocked
	case pinning.IsPinningFailure(err):
		return CodePinningFailure
	case errorx.IsOfType(err, remote.RequestError):
		return CodeRemoteUnavailable
	case errorx.IsOfType(err, errorx.IllegalArgument),
		errorx.IsOfType(err, pinning.InvalidPinSet),
		errorx.IsOfType(err, remote.ConfigurationError):
		return CodeIllegalArgument
	default:
		if errorx.HasTrait(err, errorx.NotFound()) {
			return CodeNotFound
		}
		return CodeInternal
	}
}

func toErrorMessage(err error) (string, string) {
	e := errorx.Cast(err)
	if e == nil {
		return err.Error(), ""
	}

	if e.Cause() == nil {
		return e.Message(), ""
	}
	return e.Message(), fmt.Sprintf("%s", e.Cause())
}

func property(err error, p errorx.Property) string {
	v, ok := errorx.ExtractProperty(err, p)
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

func findResolution(err error) []string {
	switch {
	case errorx.IsOfType(err, migration.NonForwardMigration),
		errorx.IsOfType(err, migration.MigrationGap),
		errorx.IsOfType(err, migration.IncompleteMigrationSequence):
		return []string{
			"The registered schema migrations do not form a gap-free chain to the target version.",
			"Run `groundwork validate` to list the registered steps; this is a build defect, not a data problem.",
		}
	case errorx.IsOfType(err, migration.MigrationFailed):
		steps := []string{"The store was left at its previous schema version and was not opened."}
		if from, to, ok := migration.Versions(err); ok {
			steps = append(steps, fmt.Sprintf("Inspect the cause of migration %d->%d, fix it and run `groundwork migrate` again.", from, to))
		}
		return append(steps, "Restore the store from a backup if the cause cannot be fixed in place.")
	case errorx.IsOfType(err, migration.DowngradeNotSupported):
		return []string{
			fmt.Sprintf("The store was written by a newer release (schema version %s).", property(err, migration.ActualVersionProperty)),
			"Upgrade groundwork to a release that supports this schema version.",
		}
	case errorx.IsOfType(err, store.UnversionedStore):
		return []string{fmt.Sprintf("Ensure %q is a groundwork store, or move it away to start with a fresh one.", property(err, store.PathProperty))}
	case errorx.IsOfType(err, store.LockError):
		return []string{fmt.Sprintf("Another process holds %q. Stop it or wait for it to finish.", property(err, store.PathProperty))}
	case pinning.IsPinningFailure(err):
		return []string{
			"The backend presented a certificate whose public key is not pinned.",
			"If the backend rotated its certificate, compute the new pin with `groundwork pin <cert.pem>` and update the pin table.",
		}
	case errorx.IsOfType(err, pinning.InvalidPinSet):
		return []string{fmt.Sprintf("Fix the pins of pattern %q: every pattern needs a primary and a backup sha256 pin.", property(err, pinning.PatternProperty))}
	case errorx.IsOfType(err, remote.ConfigurationError):
		return []string{"Ensure remote.url is an https url and remote.apiKey is set."}
	case errorx.IsOfType(err, remote.RequestError):
		return []string{"Check network connectivity to the backend; the application keeps working offline."}
	case errorx.IsOfType(err, errorx.IllegalArgument):
		if arg, ok := errorx.ExtractProperty(err, errorx.PropertyPayload()); ok {
			return []string{fmt.Sprintf("Ensure %q is provided.", fmt.Sprint(arg))}
		}
		return []string{"Ensure all required arguments are provided."}
	case errorx.IsOfType(err, errorx.IllegalFormat):
		return []string{"Ensure provided data is in correct format."}
	case errorx.IsOfType(err, config.NotFoundError):
		if arg, ok := errorx.ExtractProperty(err, errorx.PropertyPayload()); ok {
			return []string{fmt.Sprintf("Ensure configuration file %q exists, is correctly formatted and accessible", fmt.Sprint(arg))}
		}
		return []string{"Ensure configuration file exists and is accessible."}
	default:
		return []string{"Check error message for details or contact support"}
	}
}

// Diagnose attempts to find a resolution and provide a human friendly error response.
func Diagnose(ctx context.Context, ex error) *ErrorDiagnosis {
	msg, cause := toErrorMessage(ex)

	j := config.Get().Journal
	journalPath := ""
	if j.Filename != "" {
		journalPath = filepath.Join(j.Directory, j.Filename)
	}

	return &ErrorDiagnosis{
		Error:      ex,
		ErrorType:  errorx.GetTypeName(ex),
		Message:    msg,
		Cause:      cause,
		TraceId:    journal.TraceID(ctx),
		Code:       toErrorCode(ex),
		Commit:     version.Commit(),
		Version:    version.Number(),
		Pid:        os.Getpid(),
		Journal:    journalPath,
		Resolution: findResolution(ex),
	}
}

const rule = "***************************************************************************************************"

func banner(title string) string {
	pad := (len(rule) - len(title) - 2) / 2
	if pad < 0 {
		pad = 0
	}
	s := strings.Repeat("*", pad) + " " + title + " "
	return s + strings.Repeat("*", max(0, len(rule)-len(s)))
}

// Print writes the diagnosis and resolution steps to w. Instructions, when present, are printed
// before the default resolution steps.
func Print(w io.Writer, resp *ErrorDiagnosis, instructions string, opts ...termenv.OutputOption) {
	p := newPalette(w, opts...)
	line := func(key, value string, style func(string) string) {
		_, _ = fmt.Fprintf(w, "%s\t%s %s\n", p.red("*"), style(key+":"), value)
	}

	_, _ = fmt.Fprintf(w, "\n%s\n", p.boldRed(banner("Error Diagnostics")))
	line("Error", resp.Message, p.label)
	if resp.Cause != "" {
		line("Cause", resp.Cause, p.label)
	}
	line("Error Type", resp.ErrorType, p.label)
	line("Error Code", fmt.Sprint(resp.Code), p.label)
	line("Commit", resp.Commit, p.gray)
	line("Pid", fmt.Sprint(resp.Pid), p.gray)
	line("TraceId", resp.TraceId, p.gray)
	line("Version", resp.Version, p.gray)
	if resp.Journal != "" {
		line("Journal", resp.Journal, p.cyan)
	}
	_, _ = fmt.Fprintf(w, "%s\n", p.boldRed(rule))

	_, _ = fmt.Fprintf(w, "\n%s\n", p.boldYellow(banner("Resolution")))
	if instructions != "" {
		for _, l := range strings.Split(instructions, "\n") {
			if l == "" {
				_, _ = fmt.Fprintf(w, "%s\n", p.yellow("*"))
				continue
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", p.yellow("*"), p.label(l))
		}
		if len(resp.Resolution) > 0 {
			_, _ = fmt.Fprintf(w, "%s\n", p.yellow("*"))
		}
	}
	for _, r := range resp.Resolution {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", p.yellow("*"), r)
	}
	_, _ = fmt.Fprintf(w, "%s\n", p.boldYellow(rule))
}

var exit = os.Exit

// CheckErr prints diagnosis and exits with error code 1.
// Optional instructions can be provided to give additional context to the user.
func CheckErr(ctx context.Context, err error, instructions ...string) {
	if err == nil {
		return
	}

	logx.As().Error().Err(err).Str("trace_id", journal.TraceID(ctx)).Msg("error occurred")

	var extra string
	if len(instructions) > 0 {
		extra = instructions[0]
	}
	Print(os.Stderr, Diagnose(ctx, err), extra)

	exit(1)
}

// CheckReportErr diagnoses a failed workflow report, including instructions from its metadata.
// The error of the first failed step is diagnosed since it carries the original error type.
func CheckReportErr(ctx context.Context, report *automa.Report) {
	if report == nil || report.Error == nil {
		return
	}

	err := report.Error
	if first := notify.FirstFailure(report); first != nil && first.Error != nil {
		err = first.Error
	}
	CheckErr(ctx, err, GetInstructionsFromReport(report))
}

// GetInstructionsFromReport recursively searches for instructions in report metadata.
// Returns the first non-empty instructions found in the report tree, or an empty string if none exist.
func GetInstructionsFromReport(report *automa.Report) string {
	if report == nil {
		return ""
	}

	if instructions, ok := report.Metadata["instructions"]; ok && instructions != "" {
		return instructions
	}

	for _, stepReport := range report.StepReports {
		if instructions := GetInstructionsFromReport(stepReport); instructions != "" {
			return instructions
		}
	}

	return ""
}
