package logger

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

type ctxKey string

// LoggerCtxKey carries the scoped logger through a context.
const LoggerCtxKey ctxKey = "logger"

type (
	LogLevel string
	// Logger defines the interface for structured logging
	Logger interface {
		Debug(msg string, keyvals ...any)
		Info(msg string, keyvals ...any)
		Warn(msg string, keyvals ...any)
		Error(msg string, keyvals ...any)
		With(keyvals ...any) Logger
	}

	// loggerImpl implements Logger interface using charm logger
	loggerImpl struct {
		charmLogger *charmlog.Logger
	}
)

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
	NoLevel       LogLevel = ""
)

func (c *LogLevel) String() string {
	return string(*c)
}

func (c *LogLevel) ToCharmlogLevel() charmlog.Level {
	switch *c {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		// Above every real level so nothing is emitted
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

func (l *loggerImpl) Debug(msg string, keyvals ...any) {
	l.charmLogger.Debug(msg, keyvals...)
}

func (l *loggerImpl) Info(msg string, keyvals ...any) {
	l.charmLogger.Info(msg, keyvals...)
}

func (l *loggerImpl) Warn(msg string, keyvals ...any) {
	l.charmLogger.Warn(msg, keyvals...)
}

func (l *loggerImpl) Error(msg string, keyvals ...any) {
	l.charmLogger.Error(msg, keyvals...)
}

func (l *loggerImpl) With(keyvals ...any) Logger {
	return &loggerImpl{charmLogger: l.charmLogger.With(keyvals...)}
}

type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// TestConfig silences output so test logs stay readable.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// IsTestEnvironment reports whether the process runs under go test.
func IsTestEnvironment() bool {
	return strings.HasSuffix(os.Args[0], ".test") || flag.Lookup("test.v") != nil
}

func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		if IsTestEnvironment() {
			cfg = TestConfig()
		} else {
			cfg = DefaultConfig()
		}
	}
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	charmLogger := charmlog.NewWithOptions(output, charmlog.Options{
		ReportCaller:    cfg.AddSource,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           cfg.Level.ToCharmlogLevel(),
	})
	if cfg.JSON {
		charmLogger.SetFormatter(charmlog.JSONFormatter)
	} else {
		charmLogger.SetFormatter(charmlog.TextFormatter)
	}
	return &loggerImpl{charmLogger: charmLogger}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewLogger(nil)
)

// Init replaces the process-wide default logger returned by FromContext when
// a context carries none.
func Init(cfg *Config) error {
	log := NewLogger(cfg)
	if log == nil {
		return fmt.Errorf("failed to initialize logger")
	}
	defaultMu.Lock()
	defaultLogger = log
	defaultMu.Unlock()
	return nil
}

func GetDefault() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// ContextWithLogger returns a copy of ctx carrying log.
func ContextWithLogger(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, log)
}

// FromContext returns the logger carried by ctx, falling back to the package
// default so callers never receive nil.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if log, ok := ctx.Value(LoggerCtxKey).(Logger); ok && log != nil {
			return log
		}
	}
	return GetDefault()
}

func Debug(msg string, args ...any) {
	GetDefault().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	GetDefault().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	GetDefault().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	GetDefault().Error(msg, args...)
}
