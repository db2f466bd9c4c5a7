package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Init configures the global slog logger.
// In production it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
// An empty level means info in production and debug elsewhere.
func Init(env, level string) {
	production := strings.EqualFold(env, "production")
	opts := &slog.HandlerOptions{Level: ParseLevel(level, production)}

	var handler slog.Handler
	if production {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string, production bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if production {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// NewComponentLogger returns a JSON logrus logger for long-lived components
// (the realtime hub and relay), at the same level as the process logger.
func NewComponentLogger(env, level, component string) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	switch ParseLevel(level, strings.EqualFold(env, "production")) {
	case slog.LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case slog.LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case slog.LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger.WithField("component", component)
}

// WithUser returns a logger with the acting user attached. An empty id
// returns the default logger.
func WithUser(userID string) *slog.Logger {
	if userID == "" {
		return slog.Default()
	}
	return slog.With("user_id", userID)
}
