// SPDX-License-Identifier: Apache-2.0

// Package notify reports workflow step events to the log.
package notify

import (
	"context"

	"github.com/automa-saga/automa"
	"github.com/automa-saga/logx"
	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/rs/zerolog"
)

// Notifier logs step events with the step id and the trace id of the run.
type Notifier struct {
	logger *zerolog.Logger
}

// New returns a notifier writing to logger, or to the global logger when nil.
func New(logger *zerolog.Logger) *Notifier {
	if logger == nil {
		logger = logx.As()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) StepStart(ctx context.Context, stp automa.Step, msg string) {
	n.logger.Info().
		Str("step_id", stp.Id()).
		Str("trace_id", journal.TraceID(ctx)).
		Msg(msg)
}

func (n *Notifier) StepCompletion(ctx context.Context, stp automa.Step, report *automa.Report, msg string) {
	n.logger.Info().
		Str("step_id", stp.Id()).
		Str("trace_id", journal.TraceID(ctx)).
		Str("status", report.Status.String()).
		Msg(msg)
}

// StepFailure logs the failure together with the first failed sub-step, which holds the root
// cause.
func (n *Notifier) StepFailure(ctx context.Context, stp automa.Step, report *automa.Report, msg string) {
	l := n.logger.Error().Err(report.Error).
		Str("step_id", stp.Id()).
		Str("trace_id", journal.TraceID(ctx)).
		Str("status", report.Status.String())

	if first := FirstFailure(report); first != report && first.Error != nil {
		l = l.Str("first_error", first.Error.Error()).
			Str("first_error_step_id", first.Id)
	}

	l.Msg(msg)
}

// FirstFailure returns the deepest first failed report below report, or report itself.
func FirstFailure(report *automa.Report) *automa.Report {
	if report == nil {
		return nil
	}
	for _, r := range report.StepReports {
		if r.HasError() {
			return FirstFailure(r)
		}
	}
	return report
}
