// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"fmt"

	"github.com/electricsheep/groundwork/internal/remote"
)

// Kind is the outcome of a bootstrap.
type Kind string

const (
	KindSkipped        Kind = "skipped"
	KindActive         Kind = "active"
	KindFailedFallback Kind = "failed_fallback"
)

// Reasons reported by the orchestrator.
const (
	ReasonOfflineOnly       = "offline-only mode enabled"
	ReasonNotConfigured     = "remote credentials not configured"
	ReasonCreationFailed    = "client creation failed"
	ReasonClientConstructed = "client constructed"
)

// Decision is the result of CreateRemoteClient. Client is set only for KindActive; every other
// kind means the application runs against the local store alone.
type Decision struct {
	Kind   Kind
	Reason string
	Cause  error
	Client *remote.Client
}

func Skipped(reason string) Decision {
	return Decision{Kind: KindSkipped, Reason: reason}
}

func Active(client *remote.Client) Decision {
	return Decision{Kind: KindActive, Reason: ReasonClientConstructed, Client: client}
}

func FailedFallback(reason string, cause error) Decision {
	return Decision{Kind: KindFailedFallback, Reason: reason, Cause: cause}
}

// Online reports whether a remote client is available.
func (d Decision) Online() bool {
	return d.Kind == KindActive && d.Client != nil
}

func (d Decision) String() string {
	if d.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", d.Kind, d.Reason, d.Cause)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Reason)
}

// Report is the printable form of a Decision.
type Report struct {
	Kind    Kind     `yaml:"kind" json:"kind"`
	Reason  string   `yaml:"reason" json:"reason"`
	Error   string   `yaml:"error,omitempty" json:"error,omitempty"`
	URL     string   `yaml:"url,omitempty" json:"url,omitempty"`
	Modules []string `yaml:"modules,omitempty" json:"modules,omitempty"`
	Pinned  bool     `yaml:"pinned" json:"pinned"`
}

func (d Decision) Report(pinned bool) Report {
	r := Report{Kind: d.Kind, Reason: d.Reason}
	if d.Cause != nil {
		r.Error = d.Cause.Error()
	}
	if d.Client != nil {
		r.URL = d.Client.URL()
		r.Modules = d.Client.Modules()
		r.Pinned = pinned
	}
	return r
}
