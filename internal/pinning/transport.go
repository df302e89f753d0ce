// SPDX-License-Identifier: Apache-2.0

package pinning

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"time"

	"github.com/joomcode/errorx"
)

type transportConfig struct {
	rootCAs             *x509.CertPool
	dialTimeout         time.Duration
	tlsHandshakeTimeout time.Duration
}

// TransportOption configures BuildPinnedTransport.
type TransportOption func(*transportConfig)

// WithRootCAs replaces the system roots used for ordinary chain verification.
func WithRootCAs(pool *x509.CertPool) TransportOption {
	return func(c *transportConfig) {
		c.rootCAs = pool
	}
}

// WithDialTimeout bounds the TCP connect time.
func WithDialTimeout(d time.Duration) TransportOption {
	return func(c *transportConfig) {
		c.dialTimeout = d
	}
}

// WithTLSHandshakeTimeout bounds the TLS handshake time.
func WithTLSHandshakeTimeout(d time.Duration) TransportOption {
	return func(c *transportConfig) {
		c.tlsHandshakeTimeout = d
	}
}

// PinnedTransport is an HTTP transport whose TLS handshakes are checked against a pin set.
type PinnedTransport struct {
	*http.Transport
	pins *PinSet
}

// Pins returns the pin set enforced by the transport.
func (t *PinnedTransport) Pins() *PinSet {
	return t.pins
}

// Covers reports whether requests to host are pinned, i.e. host matches a pattern carrying at
// least a primary and a backup pin.
func (t *PinnedTransport) Covers(host string) bool {
	return len(t.pins.PinsFor(host)) >= MinPinsPerPattern
}

// Clone returns a copy that enforces the same pin set.
func (t *PinnedTransport) Clone() *PinnedTransport {
	return &PinnedTransport{Transport: t.Transport.Clone(), pins: t.pins}
}

// BuildPinnedTransport returns an HTTP transport that, after ordinary certificate verification,
// rejects any handshake whose chain carries none of the pins configured for the host. A rejected
// handshake fails that request only, with an error for which IsPinningFailure is true.
func BuildPinnedTransport(pins *PinSet, opts ...TransportOption) (*PinnedTransport, error) {
	if pins.Len() == 0 {
		return nil, InvalidPinSet.New("cannot build a pinned transport from an empty pin set")
	}

	cfg := &transportConfig{
		dialTimeout:         30 * time.Second,
		tlsHandshakeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errorx.IllegalState.New("default transport is not an *http.Transport")
	}

	t := base.Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   cfg.dialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	t.TLSHandshakeTimeout = cfg.tlsHandshakeTimeout
	t.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    cfg.rootCAs,
		VerifyConnection: func(cs tls.ConnectionState) error {
			return pins.Check(cs.ServerName, presentedChain(cs))
		},
	}

	return &PinnedTransport{Transport: t, pins: pins}, nil
}

// IsPinningEnabled reports whether rt is a pinned transport with a non-empty pin set.
func IsPinningEnabled(rt http.RoundTripper) bool {
	t, ok := rt.(*PinnedTransport)
	if !ok || t == nil || t.Transport == nil {
		return false
	}
	return t.pins.Len() > 0
}

// presentedChain flattens the verified chains, falling back to the raw peer certificates.
func presentedChain(cs tls.ConnectionState) []*x509.Certificate {
	if len(cs.VerifiedChains) == 0 {
		return cs.PeerCertificates
	}

	seen := map[*x509.Certificate]bool{}
	var out []*x509.Certificate
	for _, chain := range cs.VerifiedChains {
		for _, c := range chain {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
