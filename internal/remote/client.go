// SPDX-License-Identifier: Apache-2.0

// Package remote is a minimal client for the hosted backend: a structured query capability over
// its REST interface and a change-subscription capability over its realtime stream.
//
// A Client is assembled locally from a Config, a transport and a set of modules; New performs no
// network I/O. Capabilities are only available when their module was installed.
package remote

import (
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/electricsheep/groundwork/internal/version"
)

const (
	DefaultSchema  = "public"
	DefaultTimeout = 30 * time.Second

	clientInfoHeader = "X-Client-Info"
	clientProduct    = version.Product
)

// Config holds the backend coordinates.
type Config struct {
	URL     string        `yaml:"url" json:"url"`
	APIKey  string        `yaml:"apiKey" json:"apiKey"`
	Schema  string        `yaml:"schema" json:"schema"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Module is an optional capability installed on a Client at construction.
type Module interface {
	Name() string
	Install(c *Client) error
}

// Client is the active handle to the backend. It is read-only after New returns and may be
// shared between goroutines.
type Client struct {
	cfg        Config
	base       *url.URL
	transport  http.RoundTripper
	http       *http.Client
	stream     *http.Client
	clientInfo string
	modules    map[string]Module

	queryEnabled    bool
	realtimeEnabled bool
}

// New validates the configuration and installs the modules.
// A nil transport uses http.DefaultTransport.
func New(cfg Config, transport http.RoundTripper, modules ...Module) (*Client, error) {
	base, err := validate(&cfg)
	if err != nil {
		return nil, err
	}

	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &Client{
		cfg:        cfg,
		base:       base,
		transport:  transport,
		http:       &http.Client{Transport: transport, Timeout: cfg.Timeout},
		clientInfo: version.UserAgent(clientProduct),
		modules:    map[string]Module{},
	}

	for _, m := range modules {
		if m == nil {
			return nil, NewConfigurationError("nil module")
		}
		if _, dup := c.modules[m.Name()]; dup {
			return nil, NewConfigurationError("module " + m.Name() + " installed twice")
		}
		if err := m.Install(c); err != nil {
			return nil, err
		}
		c.modules[m.Name()] = m
	}

	return c, nil
}

func validate(cfg *Config) (*url.URL, error) {
	if cfg.URL == "" {
		return nil, NewConfigurationError("url is required")
	}

	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, ConfigurationError.Wrap(err, configurationErrorMsg, "url cannot be parsed")
	}

	switch {
	case u.Scheme == "https" && u.Host != "":
	case u.Scheme == "http" && isLoopback(u.Hostname()):
	default:
		return nil, NewConfigurationError("url must be an absolute https url, got " + cfg.URL)
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, NewConfigurationError("api key is required")
	}

	if cfg.Schema == "" {
		cfg.Schema = DefaultSchema
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return u, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// URL returns the backend base URL.
func (c *Client) URL() string {
	return c.base.String()
}

// Transport returns the transport every request goes through.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// HasModule reports whether the named module is installed.
func (c *Client) HasModule(name string) bool {
	_, ok := c.modules[name]
	return ok
}

// Modules returns the names of the installed modules, sorted.
func (c *Client) Modules() []string {
	out := make([]string, 0, len(c.modules))
	for name := range c.modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// endpoint resolves a path below the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set(clientInfoHeader, c.clientInfo)
}
