// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"net/url"

	"github.com/electricsheep/groundwork/internal/pinning"
	"github.com/electricsheep/groundwork/internal/remote"
)

// PinnedFactory builds remote clients whose every request goes through a certificate-pinned
// transport, with the query and realtime modules installed. The backend host itself must be
// covered by the pin set; a pin set for other hosts only would leave the backend path unpinned.
type PinnedFactory struct {
	Pins             *pinning.PinSet
	TransportOptions []pinning.TransportOption
}

func (f PinnedFactory) Create(_ context.Context, cfg remote.Config) (*remote.Client, error) {
	transport, err := pinning.BuildPinnedTransport(f.Pins, f.TransportOptions...)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, remote.ConfigurationError.Wrap(err, "url cannot be parsed")
	}

	if !pinning.IsPinningEnabled(transport) || !transport.Covers(u.Hostname()) {
		return nil, PinningNotEnabled.New(pinningNotEnabledMsg, cfg.URL).
			WithProperty(pinning.HostProperty, u.Hostname())
	}

	return remote.New(cfg, transport, remote.Postgrest(), remote.Realtime())
}
