package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Loader resolves the configuration tree: built-in defaults first, then
// environment variables on top, then struct validation.
type Loader struct {
	koanf    *koanf.Koanf
	validate *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		koanf:    koanf.New("."),
		validate: validator.New(),
	}
}

func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	return l.unmarshalAndValidate()
}

// loadDefaults feeds Default() through the structs provider so the default
// map never drifts from the struct definition.
func (l *Loader) loadDefaults() error {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	return nil
}

func (l *Loader) loadEnvironment() error {
	envToPath := GenerateEnvToConfigMap()
	if err := l.koanf.Load(env.Provider(".", env.Opt{
		Prefix: "",
		TransformFunc: func(key, value string) (string, any) {
			if configPath, exists := envToPath[key]; exists {
				return configPath, value
			}
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// transformEnvKey converts environment variable names to koanf paths for
// variables without an explicit env struct tag. Double underscores nest:
// OAUTH__DISCORD__TOKEN -> oauth.discord.token. With single underscores the
// first segment is the section and the rest stays a field name:
// SCHEDULER_RECONCILE_INTERVAL -> scheduler.reconcile_interval.
func transformEnvKey(s string) string {
	s = strings.ToLower(s)
	if strings.Contains(s, "__") {
		segments := strings.Split(s, "__")
		parts := make([]string, 0, len(segments))
		for _, seg := range segments {
			if seg = strings.Trim(seg, "_"); seg != "" {
				parts = append(parts, seg)
			}
		}
		return strings.Join(parts, ".")
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_'
	})
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func (l *Loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}
