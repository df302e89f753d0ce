// SPDX-License-Identifier: Apache-2.0

package workflows

import (
	"context"
	"strconv"

	"github.com/automa-saga/automa"
	"github.com/electricsheep/groundwork/internal/bootstrap"
	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/electricsheep/groundwork/internal/remote"
	"github.com/electricsheep/groundwork/internal/store"
	"github.com/electricsheep/groundwork/internal/workflows/notify"
	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
)

const (
	StartupWorkflowId     = "startup"
	OpenStoreStepId       = "open-store"
	BootstrapRemoteStepId = "bootstrap-remote"

	MetaStorePath      = "path"
	MetaStoreVersion   = "version"
	MetaDecisionKind   = "decision"
	MetaDecisionReason = "reason"
)

// StartupOptions holds what the startup workflow needs.
type StartupOptions struct {
	Store   store.Options
	Remote  remote.Config
	Factory bootstrap.ClientFactory
	Flags   bootstrap.OfflineChecker
	Logger  *zerolog.Logger
	TraceID string
}

// Startup receives the results of the startup workflow. Store is nil until open-store succeeds;
// Decision is the zero value until bootstrap-remote has run.
type Startup struct {
	Store    *store.Store
	Decision bootstrap.Decision
}

// Close releases the store, if any.
func (s *Startup) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

// NewStartupWorkflow opens the local store and then decides about the remote client. A store
// that cannot be opened stops the workflow; the bootstrap step itself never fails.
func NewStartupWorkflow(opts StartupOptions, out *Startup) *automa.WorkflowBuilder {
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	n := notify.New(opts.Logger)

	return automa.NewWorkflowBuilder().WithId(StartupWorkflowId).Steps(
		OpenStoreStep(opts, out),
		BootstrapRemoteStep(opts, out),
	).
		WithExecutionMode(automa.StopOnError).
		WithPrepare(func(ctx context.Context, stp automa.Step) (context.Context, error) {
			if journal.TraceID(ctx) == "" && opts.TraceID != "" {
				ctx = journal.WithTraceID(ctx, opts.TraceID)
			}
			n.StepStart(ctx, stp, "Starting up")
			return ctx, nil
		}).
		WithOnFailure(func(ctx context.Context, stp automa.Step, rpt *automa.Report) {
			n.StepFailure(ctx, stp, rpt, "Startup failed")
		}).
		WithOnCompletion(func(ctx context.Context, stp automa.Step, rpt *automa.Report) {
			if rpt.IsSuccess() {
				n.StepCompletion(ctx, stp, rpt, "Startup completed")
			}
		})
}

// OpenStoreStep opens the store, running pending migrations.
func OpenStoreStep(opts StartupOptions, out *Startup) automa.Builder {
	return automa.NewStepBuilder().WithId(OpenStoreStepId).
		WithExecute(func(ctx context.Context, stp automa.Step) *automa.Report {
			storeOpts := opts.Store
			if storeOpts.Logger == nil {
				storeOpts.Logger = opts.Logger
			}
			if storeOpts.TraceID == "" {
				storeOpts.TraceID = opts.TraceID
			}

			s, err := store.Open(ctx, storeOpts)
			if err != nil {
				return automa.FailureReport(stp, automa.WithError(err))
			}

			v, err := s.Version(ctx)
			if err != nil {
				_ = s.Close()
				return automa.FailureReport(stp, automa.WithError(errorx.IllegalState.Wrap(err, "store opened without a version")))
			}

			out.Store = s
			return automa.SuccessReport(stp, automa.WithMetadata(map[string]string{
				MetaStorePath:    s.Path(),
				MetaStoreVersion: strconv.Itoa(v),
			}))
		})
}

// BootstrapRemoteStep evaluates the remote client decision.
func BootstrapRemoteStep(opts StartupOptions, out *Startup) automa.Builder {
	return automa.NewStepBuilder().WithId(BootstrapRemoteStepId).
		WithExecute(func(ctx context.Context, stp automa.Step) *automa.Report {
			o := bootstrap.NewOrchestrator(opts.Remote,
				bootstrap.WithLogger(opts.Logger),
				bootstrap.WithJournal(opts.Store.Journal),
				bootstrap.WithFactory(opts.Factory),
				bootstrap.WithTraceID(opts.TraceID),
			)

			out.Decision = o.CreateRemoteClient(ctx, opts.Flags)
			return automa.SuccessReport(stp, automa.WithMetadata(map[string]string{
				MetaDecisionKind:   string(out.Decision.Kind),
				MetaDecisionReason: out.Decision.Reason,
			}))
		})
}

// RunStartup builds and executes the startup workflow. On failure the store, if it was opened,
// is closed again.
func RunStartup(ctx context.Context, opts StartupOptions) (*Startup, *automa.Report, error) {
	out := &Startup{}
	wf, err := NewStartupWorkflow(opts, out).Build()
	if err != nil {
		return nil, nil, err
	}

	report := wf.Execute(ctx)
	if report.Error != nil {
		_ = out.Close()
		return nil, report, stepError(report)
	}

	return out, report, nil
}

// stepError returns the error of the first failed step, which carries the original error type.
func stepError(report *automa.Report) error {
	if first := notify.FirstFailure(report); first != nil && first.Error != nil {
		return first.Error
	}
	return report.Error
}
