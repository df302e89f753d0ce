// SPDX-License-Identifier: Apache-2.0

// Package flags answers feature-flag queries from layered providers.
package flags

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	OfflineOnly              = "offline_only"
	ShowFeatureFlagIndicator = "show_feature_flag_indicator"
	EnableTriviaApp          = "enable_trivia_app"

	// ConfigKey is the configuration sub-tree holding static flags.
	ConfigKey = "flags"
)

// Provider resolves flag values. The Get methods return def when the key is unknown or has the
// wrong type; Has reports whether the provider knows the key at all.
type Provider interface {
	Has(key string) bool
	GetBoolean(key string, def bool) bool
	GetString(key string, def string) string
	GetInt(key string, def int) int
}

// IsEnabled is GetBoolean with a false default.
func IsEnabled(p Provider, key string) bool {
	return p.GetBoolean(key, false)
}

// ==========================================================================
// MapProvider
// ==========================================================================

// MapProvider serves flags from memory. It is safe for concurrent use; Set replaces a value in
// place, which is how flags fetched from elsewhere are injected.
type MapProvider struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMapProvider(values map[string]any) *MapProvider {
	m := &MapProvider{values: map[string]any{}}
	for k, v := range values {
		m.values[normalizeKey(k)] = v
	}
	return m
}

func (m *MapProvider) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[normalizeKey(key)] = value
}

func (m *MapProvider) lookup(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[normalizeKey(key)]
	return v, ok
}

func (m *MapProvider) Has(key string) bool {
	_, ok := m.lookup(key)
	return ok
}

func (m *MapProvider) GetBoolean(key string, def bool) bool {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

func (m *MapProvider) GetString(key string, def string) string {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (m *MapProvider) GetInt(key string, def int) int {
	v, ok := m.lookup(key)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		i, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return def
		}
		return i
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return i
}

// ==========================================================================
// ConfigProvider
// ==========================================================================

// ConfigProvider serves the static flags of the configuration, including environment overrides
// such as GROUNDWORK_FLAGS_OFFLINE_ONLY when the viper instance reads the environment.
type ConfigProvider struct {
	v *viper.Viper
}

func NewConfigProvider(v *viper.Viper) *ConfigProvider {
	if v == nil {
		v = viper.New()
	}
	return &ConfigProvider{v: v}
}

func (c *ConfigProvider) path(key string) string {
	return ConfigKey + "." + normalizeKey(key)
}

func (c *ConfigProvider) Has(key string) bool {
	return c.v.IsSet(c.path(key))
}

func (c *ConfigProvider) GetBoolean(key string, def bool) bool {
	if !c.Has(key) {
		return def
	}
	b, err := cast.ToBoolE(c.v.Get(c.path(key)))
	if err != nil {
		return def
	}
	return b
}

func (c *ConfigProvider) GetString(key string, def string) string {
	if !c.Has(key) {
		return def
	}
	return c.v.GetString(c.path(key))
}

func (c *ConfigProvider) GetInt(key string, def int) int {
	if !c.Has(key) {
		return def
	}
	i, err := cast.ToIntE(c.v.Get(c.path(key)))
	if err != nil {
		return def
	}
	return i
}

// ==========================================================================
// CompositeProvider
// ==========================================================================

// CompositeProvider asks primary first and falls back when primary does not know the key or
// panics while answering.
type CompositeProvider struct {
	primary  Provider
	fallback Provider
	logger   *zerolog.Logger
}

func NewCompositeProvider(primary, fallback Provider, logger *zerolog.Logger) *CompositeProvider {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CompositeProvider{primary: primary, fallback: fallback, logger: logger}
}

// usePrimary reports whether primary can answer key.
func (c *CompositeProvider) usePrimary(key string) (ok bool) {
	if c.primary == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().Str("flag", key).Interface("panic", r).Msg("Primary flag provider failed, using fallback")
			ok = false
		}
	}()
	return c.primary.Has(key)
}

func (c *CompositeProvider) Has(key string) bool {
	if c.usePrimary(key) {
		return true
	}
	return c.fallback != nil && c.fallback.Has(key)
}

func (c *CompositeProvider) GetBoolean(key string, def bool) bool {
	return resolve(c, key, def, func(p Provider, d bool) bool { return p.GetBoolean(key, d) })
}

func (c *CompositeProvider) GetString(key string, def string) string {
	return resolve(c, key, def, func(p Provider, d string) string { return p.GetString(key, d) })
}

func (c *CompositeProvider) GetInt(key string, def int) int {
	return resolve(c, key, def, func(p Provider, d int) int { return p.GetInt(key, d) })
}

func resolve[T any](c *CompositeProvider, key string, def T, get func(Provider, T) T) (out T) {
	fromFallback := func() T {
		if c.fallback == nil {
			return def
		}
		return get(c.fallback, def)
	}

	if !c.usePrimary(key) {
		return fromFallback()
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().Str("flag", key).Interface("panic", r).Msg("Primary flag provider failed, using fallback")
			out = fromFallback()
		}
	}()
	return get(c.primary, def)
}

// ==========================================================================
// Manager
// ==========================================================================

// Manager answers the application's flag questions.
type Manager struct {
	provider Provider
	logger   *zerolog.Logger
}

type Option func(*Manager)

func WithLogger(logger *zerolog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(provider Provider, opts ...Option) *Manager {
	nop := zerolog.Nop()
	m := &Manager{provider: provider, logger: &nop}
	for _, opt := range opts {
		opt(m)
	}
	if m.provider == nil {
		m.provider = NewMapProvider(nil)
	}
	return m
}

// IsOfflineOnly reports whether no remote client may be constructed.
func (m *Manager) IsOfflineOnly() bool {
	offline := IsEnabled(m.provider, OfflineOnly)
	if offline {
		m.logger.Debug().Str("flag", OfflineOnly).Msg("Offline-only mode is enabled")
	}
	return offline
}

func (m *Manager) ShowFeatureFlagIndicator() bool {
	return IsEnabled(m.provider, ShowFeatureFlagIndicator)
}

func (m *Manager) TriviaAppEnabled() bool {
	return IsEnabled(m.provider, EnableTriviaApp)
}

// Snapshot returns the known flags with their effective values.
func (m *Manager) Snapshot() map[string]bool {
	out := map[string]bool{}
	for _, key := range []string{OfflineOnly, ShowFeatureFlagIndicator, EnableTriviaApp} {
		out[key] = IsEnabled(m.provider, key)
	}
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
