// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/sha256"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/electricsheep/groundwork/internal/bootstrap"
	"github.com/electricsheep/groundwork/internal/pinning"
	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pinOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "sha256/" + base64.StdEncoding.EncodeToString(sum[:])
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groundwork.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestInitialize_Defaults(t *testing.T) {
	require.NoError(t, Initialize(""))

	c := Get()
	assert.Equal(t, "data/groundwork.db", c.Store.Path)
	assert.Equal(t, bootstrap.PlaceholderURL, c.Remote.URL)
	assert.Equal(t, "journal.log", c.Journal.Filename)
	assert.NoError(t, c.Validate())
}

func TestInitialize_FileAndEnvOverride(t *testing.T) {
	yamlCfg := `
log:
  level: "Debug"
store:
  path: "/var/lib/groundwork/app.db"
  driver: "sqlite3"
  lockTimeout: "2s"
remote:
  url: "https://db.example.com"
  apiKey: "anon-key"
  timeout: "10s"
pins:
  table:
    - pattern: "**.example.com"
      hashes: ["` + pinOf("primary") + `", "` + pinOf("backup") + `"]
flags:
  offline_only: true
journal:
  directory: "/var/log/groundwork"
  filename: "journal.log"
  maxBackups: 2
`
	path := writeConfig(t, yamlCfg)
	t.Setenv("GROUNDWORK_STORE_PATH", "/data/app.db")

	require.NoError(t, Initialize(path))
	c := Get()

	assert.Equal(t, "/data/app.db", c.Store.Path, "environment takes precedence over the file")
	assert.Equal(t, "sqlite3", c.Store.Driver)
	assert.Equal(t, 2*time.Second, c.Store.LockTimeout)
	assert.Equal(t, "https://db.example.com", c.Remote.URL)
	assert.Equal(t, "anon-key", c.Remote.Client().APIKey)
	assert.Equal(t, 10*time.Second, c.Remote.Timeout)
	assert.Equal(t, true, c.Flags["offline_only"])
	assert.Equal(t, 2, c.Journal.MaxBackups)
	assert.Equal(t, 30, c.Journal.MaxAge, "unset keys keep their defaults")

	pins, err := c.Pins.PinSet()
	require.NoError(t, err)
	assert.Equal(t, []string{"**.example.com"}, pins.Patterns())
	assert.NoError(t, c.Validate())
}

func TestInitialize_MissingFile(t *testing.T) {
	err := Initialize(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, NotFoundError))
}

func TestInitialize_MalformedValue(t *testing.T) {
	path := writeConfig(t, "store:\n  lockTimeout: \"soon\"\n")
	err := Initialize(path)
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, errorx.IllegalFormat))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "empty store path", mutate: func(c *Config) { c.Store.Path = " " }, wantErr: "store path"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "store driver"},
		{name: "negative lock timeout", mutate: func(c *Config) { c.Store.LockTimeout = -time.Second }, wantErr: "lock timeout"},
		{name: "empty remote url allowed", mutate: func(c *Config) { c.Remote.URL = "" }},
		{name: "bad remote scheme", mutate: func(c *Config) { c.Remote.URL = "ftp://db.example.com" }, wantErr: "scheme"},
		{name: "negative remote timeout", mutate: func(c *Config) { c.Remote.Timeout = -1 }, wantErr: "remote timeout"},
		{
			name: "single pin per pattern",
			mutate: func(c *Config) {
				c.Pins.Table = []pinning.PatternPins{{Pattern: "db.example.com", Hashes: []string{pinOf("only")}}}
			},
			wantErr: "pin table",
		},
		{name: "pin file skips table check", mutate: func(c *Config) {
			c.Pins.File = "pins.toml"
			c.Pins.Table = []pinning.PatternPins{{Pattern: "db.example.com"}}
		}},
		{name: "empty journal filename", mutate: func(c *Config) { c.Journal.Filename = "" }, wantErr: "journal filename"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errorx.IsOfType(err, errorx.IllegalArgument))
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "unexpected error: %v", err)
		})
	}
}

func TestPinsConfig_RootCAs(t *testing.T) {
	p := PinsConfig{}
	pool, err := p.RootCAs()
	require.NoError(t, err)
	assert.Nil(t, pool)

	p.RootCAFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = p.RootCAs()
	require.Error(t, err)
}

func TestSet(t *testing.T) {
	c := defaultConfig()
	c.Store.Path = "/tmp/other.db"
	require.NoError(t, Set(&c))
	assert.Equal(t, "/tmp/other.db", Get().Store.Path)

	assert.Error(t, Set(nil))
	require.NoError(t, Initialize(""))
}
