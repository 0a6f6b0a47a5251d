package config

import (
	"context"
	"sync"

	"github.com/hookline/hookline/pkg/logger"
)

// ContextKey is an alias used for storing values in context
type ContextKey string

// ConfigCtxKey is the context key used to store the *Config instance
const ConfigCtxKey ContextKey = "config"

// ContextWithConfig stores the resolved configuration in the context
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ConfigCtxKey, cfg)
}

var (
	defaultConfig *Config
	defaultOnce   sync.Once
)

// FromContext returns the configuration attached to ctx. When none was
// attached it falls back to a lazily-loaded default resolved from built-in
// defaults plus environment variables, so components always have a usable
// configuration.
func FromContext(ctx context.Context) *Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(ConfigCtxKey).(*Config); ok && cfg != nil {
			return cfg
		}
	}
	return getDefault(ctx)
}

func getDefault(ctx context.Context) *Config {
	defaultOnce.Do(func() {
		cfg, err := NewLoader().Load()
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn("failed to load default configuration, using built-in defaults", "error", err)
			cfg = Default()
		}
		defaultConfig = cfg
	})
	return defaultConfig
}
