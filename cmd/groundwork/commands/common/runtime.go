// SPDX-License-Identifier: Apache-2.0

package common

import (
	"context"
	"sync"

	"github.com/automa-saga/logx"
	"github.com/electricsheep/groundwork/internal/bootstrap"
	"github.com/electricsheep/groundwork/internal/config"
	"github.com/electricsheep/groundwork/internal/flags"
	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/electricsheep/groundwork/internal/pinning"
	"github.com/electricsheep/groundwork/internal/remote"
	"github.com/electricsheep/groundwork/internal/schema"
	"github.com/electricsheep/groundwork/internal/store"
	"github.com/electricsheep/groundwork/internal/workflows"
	"github.com/spf13/viper"
)

// Runtime carries what a command needs to open the store and bootstrap the remote client.
// The journal file is opened lazily and closed by Close.
type Runtime struct {
	Config  config.Config
	TraceID string

	once    sync.Once
	journal journal.Journal
	closer  func() error
}

// NewRuntime returns a runtime for the current configuration and the trace id carried by ctx.
func NewRuntime(ctx context.Context) *Runtime {
	return &Runtime{
		Config:  config.Get(),
		TraceID: journal.TraceID(ctx),
	}
}

// Journal returns the operational journal. When the journal file cannot be opened the failure is
// logged and entries are dropped, the journal never blocks a command.
func (r *Runtime) Journal() journal.Journal {
	r.once.Do(func() {
		j, err := journal.New(r.Config.Journal)
		if err != nil {
			logx.As().Warn().Err(err).Msg("Journal is unavailable, entries will not be recorded")
			r.journal = journal.Nop()
			return
		}
		r.journal = j
		r.closer = j.Close
	})
	return r.journal
}

// StoreOptions builds the store options from the store configuration.
func (r *Runtime) StoreOptions() store.Options {
	return store.Options{
		Path:          r.Config.Store.Path,
		Driver:        r.Config.Store.Driver,
		TargetVersion: schema.TargetVersion,
		Steps:         schema.Steps(),
		Create:        schema.Create,
		Logger:        logx.As(),
		Journal:       r.Journal(),
		LockTimeout:   r.Config.Store.LockTimeout,
		TraceID:       r.TraceID,
	}
}

// FlagManager resolves feature flags from the configuration. When offline is true the
// offline-only flag is forced on.
func (r *Runtime) FlagManager(offline bool) *flags.Manager {
	overrides := flags.NewMapProvider(nil)
	if offline {
		overrides.Set(flags.OfflineOnly, true)
	}

	provider := flags.NewCompositeProvider(overrides, flags.NewConfigProvider(viper.GetViper()), logx.As())
	return flags.NewManager(provider, flags.WithLogger(logx.As()))
}

// Factory returns a client factory that loads the pin configuration on first use. A broken pin
// configuration surfaces as a creation failure, so the application falls back to offline mode.
func (r *Runtime) Factory() bootstrap.ClientFactory {
	return bootstrap.ClientFactoryFunc(func(ctx context.Context, cfg remote.Config) (*remote.Client, error) {
		pins, err := r.Config.Pins.PinSet()
		if err != nil {
			return nil, err
		}

		roots, err := r.Config.Pins.RootCAs()
		if err != nil {
			return nil, err
		}

		var opts []pinning.TransportOption
		if roots != nil {
			opts = append(opts, pinning.WithRootCAs(roots))
		}

		return bootstrap.PinnedFactory{Pins: pins, TransportOptions: opts}.Create(ctx, cfg)
	})
}

// StartupOptions assembles the startup workflow options.
func (r *Runtime) StartupOptions(offline bool) workflows.StartupOptions {
	return workflows.StartupOptions{
		Store:   r.StoreOptions(),
		Remote:  r.Config.Remote.Client(),
		Factory: r.Factory(),
		Flags:   r.FlagManager(offline),
		Logger:  logx.As(),
		TraceID: r.TraceID,
	}
}

// Close releases the journal file if it was opened.
func (r *Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
