package logger

import (
	"fmt"

	"github.com/spf13/cobra"
)

// SetupLogger initializes the process-wide default logger from CLI flags.
func SetupLogger(logLevel string, logJSON, logSource bool) {
	level := LogLevel(logLevel)
	switch level {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel, DisabledLevel:
	default:
		level = InfoLevel
	}
	_ = Init(&Config{
		Level:      level,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
}

func GetLoggerConfig(cmd *cobra.Command) (string, bool, bool, error) {
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return "", false, false, fmt.Errorf("failed to get log-level flag: %w", err)
	}

	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return "", false, false, fmt.Errorf("failed to get log-json flag: %w", err)
	}

	logSource, err := cmd.Flags().GetBool("log-source")
	if err != nil {
		return "", false, false, fmt.Errorf("failed to get log-source flag: %w", err)
	}

	return logLevel, logJSON, logSource, nil
}
