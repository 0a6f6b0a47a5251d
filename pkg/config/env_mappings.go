package config

import (
	"reflect"
	"sync"
)

// EnvMapping represents a mapping between environment variable and config path
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
}

var (
	cachedMappings []EnvMapping
	mappingsOnce   sync.Once
)

// GenerateEnvMappings generates environment variable mappings from config struct tags
func GenerateEnvMappings() []EnvMapping {
	mappingsOnce.Do(func() {
		cfg := &Config{}
		cachedMappings = extractMappings(reflect.TypeOf(cfg).Elem(), "")
	})
	return cachedMappings
}

// extractMappings recursively extracts env mappings from struct fields
func extractMappings(t reflect.Type, prefix string) []EnvMapping {
	var mappings []EnvMapping
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() {
			continue
		}

		koanfTag := field.Tag.Get("koanf")
		if koanfTag == "" || koanfTag == "-" {
			continue
		}

		configPath := koanfTag
		if prefix != "" {
			configPath = prefix + "." + koanfTag
		}

		envTag := field.Tag.Get("env")
		if envTag != "" && envTag != "-" {
			mappings = append(mappings, EnvMapping{
				EnvVar:     envTag,
				ConfigPath: configPath,
			})
		}

		if field.Type.Kind() == reflect.Struct {
			if field.Type.PkgPath() == "time" {
				continue
			}
			submappings := extractMappings(field.Type, configPath)
			mappings = append(mappings, submappings...)
		}
	}
	return mappings
}

// GenerateEnvToConfigMap generates a map from env var to config path
func GenerateEnvToConfigMap() map[string]string {
	mappings := GenerateEnvMappings()
	result := make(map[string]string, len(mappings))
	for _, m := range mappings {
		result[m.EnvVar] = m.ConfigPath
	}
	return result
}
