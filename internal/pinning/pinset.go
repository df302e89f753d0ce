// SPDX-License-Identifier: Apache-2.0

// Package pinning restricts the TLS certificates accepted on the remote backend path to a
// configured set of public-key hashes per host pattern.
//
// Pins are "sha256/" followed by the base64 SHA-256 digest of a certificate's
// SubjectPublicKeyInfo. Host patterns are either an exact host name, "*.example.com" (exactly one
// extra label) or "**.example.com" (any number of extra labels, including none). Every pattern
// must carry at least two distinct pins so that a certificate rotation does not require a
// release.
package pinning

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"strings"

	"golang.org/x/text/cases"
)

const (
	pinPrefix = "sha256/"

	// MinPinsPerPattern is the primary pin plus at least one backup.
	MinPinsPerPattern = 2
)

// Pin binds a host pattern to one accepted public-key hash.
type Pin struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Hash    string `yaml:"hash" json:"hash"`
}

// PinSet is an ordered, immutable collection of pins.
type PinSet struct {
	pins []Pin
}

// NewPinSet validates the pins and returns them as an immutable set. An empty set is valid but
// cannot be used to build a pinned transport.
func NewPinSet(pins ...Pin) (*PinSet, error) {
	perPattern := map[string]map[string]struct{}{}
	var order []string

	normalized := make([]Pin, 0, len(pins))
	for _, p := range pins {
		pattern := normalizeHost(p.Pattern)
		if err := validatePattern(pattern); err != nil {
			return nil, err
		}

		if err := validateHash(pattern, p.Hash); err != nil {
			return nil, err
		}

		if _, ok := perPattern[pattern]; !ok {
			perPattern[pattern] = map[string]struct{}{}
			order = append(order, pattern)
		}
		perPattern[pattern][p.Hash] = struct{}{}
		normalized = append(normalized, Pin{Pattern: pattern, Hash: p.Hash})
	}

	for _, pattern := range order {
		if n := len(perPattern[pattern]); n < MinPinsPerPattern {
			return nil, NewInvalidPinSetError(pattern,
				"pattern %q has %d distinct pin(s), at least %d are required (primary and backup)",
				pattern, n, MinPinsPerPattern)
		}
	}

	return &PinSet{pins: normalized}, nil
}

// Pins returns a copy of the pins in configuration order.
func (s *PinSet) Pins() []Pin {
	if s == nil {
		return nil
	}
	out := make([]Pin, len(s.pins))
	copy(out, s.pins)
	return out
}

// Len returns the number of pins.
func (s *PinSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pins)
}

// Patterns returns the distinct host patterns in configuration order.
func (s *PinSet) Patterns() []string {
	if s == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, p := range s.pins {
		if !seen[p.Pattern] {
			seen[p.Pattern] = true
			out = append(out, p.Pattern)
		}
	}
	return out
}

// PinsFor returns the pins accepted for host, the union over every matching pattern.
// The result is empty when no pattern matches.
func (s *PinSet) PinsFor(host string) []string {
	if s == nil {
		return nil
	}

	host = normalizeHost(host)
	seen := map[string]bool{}
	var out []string
	for _, p := range s.pins {
		if matches(p.Pattern, host) && !seen[p.Hash] {
			seen[p.Hash] = true
			out = append(out, p.Hash)
		}
	}
	return out
}

// Check verifies the certificate chain presented by host. Hosts that match no pattern are not
// pinned and always pass. Otherwise at least one certificate in the chain must carry a pin
// configured for the host.
func (s *PinSet) Check(host string, chain []*x509.Certificate) error {
	accepted := s.PinsFor(host)
	if len(accepted) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(accepted))
	for _, h := range accepted {
		allowed[h] = struct{}{}
	}

	presented := make([]string, 0, len(chain))
	for _, cert := range chain {
		if cert == nil {
			continue
		}
		pin := ExtractPin(cert)
		if _, ok := allowed[pin]; ok {
			return nil
		}
		presented = append(presented, pin)
	}

	return NewCertificatePinningFailureError(normalizeHost(host), presented)
}

// ExtractPin computes the pin of a certificate: "sha256/" + base64(sha256(SubjectPublicKeyInfo)).
func ExtractPin(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return pinPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

func validateHash(pattern, hash string) error {
	if !strings.HasPrefix(hash, pinPrefix) {
		return NewInvalidPinSetError(pattern, "invalid pin %q for pattern %q: must start with %q", hash, pattern, pinPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(hash, pinPrefix))
	if err != nil {
		return NewInvalidPinSetError(pattern, "invalid pin %q for pattern %q: digest is not valid base64", hash, pattern)
	}

	if len(raw) != sha256.Size {
		return NewInvalidPinSetError(pattern, "invalid pin %q for pattern %q: digest must be %d bytes", hash, pattern, sha256.Size)
	}

	return nil
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return NewInvalidPinSetError(pattern, "host pattern cannot be empty")
	}

	base := pattern
	switch {
	case strings.HasPrefix(pattern, "**."):
		base = pattern[3:]
	case strings.HasPrefix(pattern, "*."):
		base = pattern[2:]
	}

	if base == "" || strings.Contains(base, "*") {
		return NewInvalidPinSetError(pattern, "invalid host pattern %q", pattern)
	}

	for _, label := range strings.Split(base, ".") {
		if label == "" {
			return NewInvalidPinSetError(pattern, "invalid host pattern %q: empty label", pattern)
		}
		if strings.ContainsAny(label, " /:@") {
			return NewInvalidPinSetError(pattern, "invalid host pattern %q: illegal character", pattern)
		}
	}

	return nil
}

// matches reports whether a normalized host matches a normalized pattern.
func matches(pattern, host string) bool {
	if host == "" {
		return false
	}

	switch {
	case strings.HasPrefix(pattern, "**."):
		base := pattern[3:]
		return host == base || strings.HasSuffix(host, "."+base)
	case strings.HasPrefix(pattern, "*."):
		base := pattern[2:]
		if !strings.HasSuffix(host, "."+base) {
			return false
		}
		prefix := strings.TrimSuffix(host, "."+base)
		return prefix != "" && !strings.Contains(prefix, ".")
	default:
		return host == pattern
	}
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(cases.Fold().String(strings.TrimSpace(host)), ".")
}
