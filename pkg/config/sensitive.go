package config

import (
	"encoding/json"
	"reflect"
)

// SensitiveString holds secrets such as passwords and tokens. Formatting and
// JSON marshaling redact the value; Value reveals it for the call that
// actually needs it.
type SensitiveString string

const redactedPlaceholder = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redactedPlaceholder
}

func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SensitiveString(raw)
	return nil
}

var sensitiveStringType = reflect.TypeOf(SensitiveString(""))

// sensitiveStringDecodeHook lets mapstructure assign plain strings into
// SensitiveString fields during config unmarshaling.
func sensitiveStringDecodeHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if t == sensitiveStringType && f.Kind() == reflect.String {
		if raw, ok := data.(string); ok {
			return SensitiveString(raw), nil
		}
	}
	return data, nil
}
