// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/x509"
	"net/url"
	"strings"
	"time"

	"github.com/automa-saga/logx"
	"github.com/electricsheep/groundwork/internal/bootstrap"
	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/electricsheep/groundwork/internal/pinning"
	"github.com/electricsheep/groundwork/internal/remote"
	"github.com/electricsheep/groundwork/internal/store"
	"github.com/joomcode/errorx"
	"github.com/spf13/viper"
)

const EnvPrefix = "GROUNDWORK"

// Config holds the global configuration for the application.
type Config struct {
	Log     logx.LoggingConfig `yaml:"log" json:"log"`
	Store   StoreConfig        `yaml:"store" json:"store"`
	Remote  RemoteConfig       `yaml:"remote" json:"remote"`
	Pins    PinsConfig         `yaml:"pins" json:"pins"`
	Flags   map[string]any     `yaml:"flags" json:"flags"`
	Journal journal.Config     `yaml:"journal" json:"journal"`
}

// StoreConfig represents the `store` configuration block.
type StoreConfig struct {
	Path        string        `yaml:"path" json:"path"`
	Driver      string        `yaml:"driver" json:"driver"`
	LockTimeout time.Duration `yaml:"lockTimeout" json:"lockTimeout"`
}

// RemoteConfig represents the `remote` configuration block.
type RemoteConfig struct {
	URL     string        `yaml:"url" json:"url"`
	APIKey  string        `yaml:"apiKey" json:"apiKey"`
	Schema  string        `yaml:"schema" json:"schema"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// PinsConfig represents the `pins` configuration block. File, when set, takes precedence over
// the inline table.
type PinsConfig struct {
	File       string                `yaml:"file" json:"file"`
	RootCAFile string                `yaml:"rootCAFile" json:"rootCAFile"`
	Table      []pinning.PatternPins `yaml:"table" json:"table"`
}

// Validate validates all configuration sections.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if err := c.Pins.Validate(); err != nil {
		return err
	}
	if c.Journal.Filename == "" {
		return errorx.IllegalArgument.New("journal filename cannot be empty")
	}
	return nil
}

func (s *StoreConfig) Validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return errorx.IllegalArgument.New("store path cannot be empty")
	}

	switch s.Driver {
	case "", store.DriverSQLite, store.DriverSQLite3:
	default:
		return errorx.IllegalArgument.New("invalid store driver: %s", s.Driver)
	}

	if s.LockTimeout < 0 {
		return errorx.IllegalArgument.New("store lock timeout cannot be negative: %s", s.LockTimeout)
	}

	return nil
}

// Validate accepts empty and placeholder credentials; the bootstrap skips the remote client for
// them.
func (r *RemoteConfig) Validate() error {
	if r.URL != "" {
		u, err := url.Parse(r.URL)
		if err != nil {
			return errorx.IllegalArgument.Wrap(err, "invalid remote url: %s", r.URL)
		}
		if u.Scheme != "https" && u.Scheme != "http" {
			return errorx.IllegalArgument.New("invalid remote url scheme: %s", r.URL)
		}
	}

	if r.Timeout < 0 {
		return errorx.IllegalArgument.New("remote timeout cannot be negative: %s", r.Timeout)
	}

	return nil
}

// Client returns the remote client configuration.
func (r *RemoteConfig) Client() remote.Config {
	return remote.Config{
		URL:     r.URL,
		APIKey:  r.APIKey,
		Schema:  r.Schema,
		Timeout: r.Timeout,
	}
}

func (p *PinsConfig) Validate() error {
	if p.File != "" {
		return nil
	}
	if _, err := pinning.FromTable(p.Table...); err != nil {
		return errorx.IllegalArgument.Wrap(err, "invalid pin table")
	}
	return nil
}

// PinSet loads the configured pin set.
func (p *PinsConfig) PinSet() (*pinning.PinSet, error) {
	if p.File != "" {
		return pinning.LoadFile(p.File)
	}
	return pinning.FromTable(p.Table...)
}

// RootCAs returns the configured trust roots, or nil for the system roots.
func (p *PinsConfig) RootCAs() (*x509.CertPool, error) {
	if p.RootCAFile == "" {
		return nil, nil
	}

	certs, err := pinning.LoadCertificates(p.RootCAFile)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool, nil
}

func defaultConfig() Config {
	return Config{
		Log: logx.LoggingConfig{
			Level:          "Info",
			ConsoleLogging: true,
			FileLogging:    false,
		},
		Store: StoreConfig{
			Path:        "data/groundwork.db",
			Driver:      store.DriverSQLite,
			LockTimeout: store.DefaultLockTimeout,
		},
		Remote: RemoteConfig{
			URL:     bootstrap.PlaceholderURL,
			APIKey:  bootstrap.PlaceholderAPIKey,
			Schema:  remote.DefaultSchema,
			Timeout: remote.DefaultTimeout,
		},
		Flags: map[string]any{},
		Journal: journal.Config{
			Directory:  "logs",
			Filename:   "journal.log",
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     30,
		},
	}
}

var globalConfig = defaultConfig()

// Initialize loads the configuration file at path on top of the defaults. Environment variables
// prefixed with GROUNDWORK_ override file values, e.g. GROUNDWORK_STORE_PATH.
func Initialize(path string) error {
	globalConfig = defaultConfig()
	viper.Reset()
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path == "" {
		return nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return NotFoundError.Wrap(err, "failed to read config file: %s", path).
			WithProperty(errorx.PropertyPayload(), path)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		return errorx.IllegalFormat.Wrap(err, "failed to parse configuration").
			WithProperty(errorx.PropertyPayload(), path)
	}

	return nil
}

// Get returns the loaded configuration.
func Get() Config {
	return globalConfig
}

// Set replaces the loaded configuration.
func Set(c *Config) error {
	if c == nil {
		return errorx.IllegalArgument.New("config cannot be nil")
	}
	globalConfig = *c
	return nil
}
