// SPDX-License-Identifier: Apache-2.0

// Package bootstrap decides at startup whether the application talks to the remote backend.
//
// The decision is made once per process. CreateRemoteClient never fails: offline-only mode and
// missing credentials skip the client, and any failure while building it falls back to offline
// operation with the cause recorded in the log and the journal.
package bootstrap

import (
	"context"
	"strconv"
	"strings"

	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/electricsheep/groundwork/internal/pinning"
	"github.com/electricsheep/groundwork/internal/remote"
	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
)

// Placeholder credentials shipped in sample configuration.
const (
	PlaceholderURL    = "https://your-project.supabase.co"
	PlaceholderAPIKey = "your-anon-key"
)

// OfflineChecker answers whether offline-only mode is enabled.
type OfflineChecker interface {
	IsOfflineOnly() bool
}

// ClientFactory builds the remote client for the given credentials.
type ClientFactory interface {
	Create(ctx context.Context, cfg remote.Config) (*remote.Client, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(ctx context.Context, cfg remote.Config) (*remote.Client, error)

func (f ClientFactoryFunc) Create(ctx context.Context, cfg remote.Config) (*remote.Client, error) {
	return f(ctx, cfg)
}

// Orchestrator produces the bootstrap Decision.
type Orchestrator struct {
	cfg     remote.Config
	factory ClientFactory
	journal journal.Journal
	logger  *zerolog.Logger
	traceID string
}

type Option func(*Orchestrator)

func WithLogger(logger *zerolog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithJournal(j journal.Journal) Option {
	return func(o *Orchestrator) {
		if j != nil {
			o.journal = j
		}
	}
}

func WithFactory(f ClientFactory) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.factory = f
		}
	}
}

func WithTraceID(id string) Option {
	return func(o *Orchestrator) {
		o.traceID = id
	}
}

// NewOrchestrator returns an orchestrator for the given credentials. Without WithFactory the
// client is built with an unpinned transport; production wiring always passes a PinnedFactory.
func NewOrchestrator(cfg remote.Config, opts ...Option) *Orchestrator {
	nop := zerolog.Nop()
	o := &Orchestrator{
		cfg:     cfg,
		factory: ClientFactoryFunc(defaultClient),
		journal: journal.Nop(),
		logger:  &nop,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateRemoteClient returns the bootstrap decision. A nil checker counts as online.
func (o *Orchestrator) CreateRemoteClient(ctx context.Context, flags OfflineChecker) Decision {
	d := o.decide(ctx, flags)
	o.record(d)
	return d
}

func (o *Orchestrator) decide(ctx context.Context, flags OfflineChecker) Decision {
	offline, err := isOfflineOnly(flags)
	if err != nil {
		// an unreadable flag is treated as not set
		o.logger.Warn().Err(err).Msg("Failed to read offline-only flag, assuming online")
	}
	if offline {
		o.logger.Info().Msg("Offline-only mode enabled, remote client not created")
		return Skipped(ReasonOfflineOnly)
	}

	if !credentialsConfigured(o.cfg) {
		o.logger.Warn().Msg("Remote credentials not configured, running offline")
		return Skipped(ReasonNotConfigured)
	}

	client, err := o.create(ctx)
	if err != nil {
		o.logger.Error().Err(err).Str("url", o.cfg.URL).Msg("Failed to create remote client, falling back to offline mode")
		return FailedFallback(ReasonCreationFailed, err)
	}

	o.logger.Info().Str("url", client.URL()).Strs("modules", client.Modules()).Msg("Remote client created")
	return Active(client)
}

func (o *Orchestrator) create(ctx context.Context) (client *remote.Client, err error) {
	defer func() {
		if r := recover(); r != nil {
			client = nil
			err = ClientCreationFailed.New(panicDuringCreationMsg, r)
		}
	}()

	client, err = o.factory.Create(ctx, o.cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ClientCreationFailed.New(nilClientMsg)
	}
	return client, nil
}

func (o *Orchestrator) record(d Decision) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn().Interface("panic", r).Msg("Failed to journal bootstrap decision")
		}
	}()

	e := journal.Entry{
		Kind:    journal.KindBootstrap,
		Outcome: string(d.Kind),
		Reason:  d.Reason,
		TraceID: o.traceID,
		Err:     d.Cause,
	}
	if d.Client != nil {
		e.Fields = map[string]string{
			"url":     d.Client.URL(),
			"modules": strings.Join(d.Client.Modules(), ","),
			"pinned":  strconv.FormatBool(pinning.IsPinningEnabled(d.Client.Transport())),
		}
	}
	o.journal.Record(e)
}

func isOfflineOnly(flags OfflineChecker) (offline bool, err error) {
	if flags == nil {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			offline = false
			err = errorx.IllegalState.New("offline-only flag check panicked: %v", r)
		}
	}()
	return flags.IsOfflineOnly(), nil
}

func credentialsConfigured(cfg remote.Config) bool {
	url := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	key := strings.TrimSpace(cfg.APIKey)
	return url != "" && key != "" && url != PlaceholderURL && key != PlaceholderAPIKey
}

func defaultClient(_ context.Context, cfg remote.Config) (*remote.Client, error) {
	return remote.New(cfg, nil, remote.Postgrest(), remote.Realtime())
}
