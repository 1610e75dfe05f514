package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Constants for log levels that match slog.Level values.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Type aliases for commonly used slog types.
type (
	Logger  = *slog.Logger
	Handler = slog.Handler
	Level   = slog.Level
)

// LoggerConfig holds configuration parameters for logging.
type LoggerConfig struct {
	// AppName is the application identifier added to all log entries
	AppName string

	// Output specifies where logs are written ("stdout", "stderr", "discard" or a file path)
	Output string `env:"OUTPUT" default:"stderr"`

	// Level sets the minimum log level ("debug", "info", "warn", "error")
	Level string `env:"LEVEL" default:"info"`

	// Filter specifies logger-level overrides ("svc.portalsvc:debug,repo:warn")
	Filter string `env:"FILTER" default:""`

	// JSON enables JSON-formatted output instead of human-readable console output
	JSON bool `env:"JSON" default:"false"`

	// OutputHandle overrides Output when set
	OutputHandle io.Writer
}

// settings is the resolved form of LoggerConfig that loggers are built from.
type settings struct {
	appName   string
	output    io.Writer
	level     Level
	pkgLevels map[string]Level
	json      bool
}

//nolint:gochecknoglobals
var (
	Group      = slog.Group
	GroupValue = slog.GroupValue

	current   settings
	currentMu sync.RWMutex
)

// Configure sets up global logging configuration for the application.
// Loggers obtained before the call keep discarding their output.
func Configure(ctx context.Context, cfg LoggerConfig, appName string) error {
	output := cfg.OutputHandle
	if output == nil {
		var err error

		if output, err = openOutput(cfg.Output); err != nil {
			return err
		}
	}

	resolved := settings{
		appName:   appName,
		output:    output,
		level:     parseLogLevel(cfg.Level, LevelInfo),
		pkgLevels: parsePkgLevels(cfg.Filter),
		json:      cfg.JSON,
	}

	currentMu.Lock()
	current = resolved
	currentMu.Unlock()

	slog.SetLogLoggerLevel(resolved.level)

	GetLogger("infra.logging").DebugContext(ctx, "logging configured", Group("config",
		"appName", appName,
		"output", cfg.Output,
		"level", resolved.level.String(),
		"filter", cfg.Filter,
		"json", cfg.JSON,
	))

	return nil
}

func openOutput(name string) (io.Writer, error) {
	switch name {
	case "", "discard":
		return io.Discard, nil
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	file, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return file, nil
}

// GetLogLogger creates a standard library *log.Logger that writes through a slog.Logger.
// Used for http.Server.ErrorLog.
func GetLogLogger(logger Logger, level Level) *log.Logger {
	return slog.NewLogLogger(logger.With("stdlog", true).Handler(), level)
}

// GetLogger creates a new logger with the given name using the global configuration.
// The name is included in log entries under the "logger" key and drives the level filter.
func GetLogger(name string) Logger {
	currentMu.RLock()
	s := current
	currentMu.RUnlock()

	if s.output == nil || s.output == io.Discard {
		return NewNopLogger()
	}

	var handler slog.Handler

	if s.json {
		//nolint:exhaustruct
		handler = slog.NewJSONHandler(s.output, &slog.HandlerOptions{AddSource: true, Level: s.level})
	} else {
		handler = NewConsoleHandler(s.output, s.level, s.pkgLevels)
	}

	logger := slog.New(NewContextHandler(handler))
	if s.appName != "" {
		logger = logger.With("app", s.appName)
	}

	return logger.With("logger", name)
}

// parsePkgLevels parses "name:level,name:level". Entries without a colon are skipped,
// unknown levels mean debug.
func parsePkgLevels(filter string) map[string]Level {
	levels := make(map[string]Level)

	for entry := range strings.SplitSeq(filter, ",") {
		name, level, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}

		levels[strings.TrimSpace(name)] = parseLogLevel(level, LevelDebug)
	}

	return levels
}

func parseLogLevel(s string, fallback Level) Level {
	var level Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return fallback
	}

	return level
}
