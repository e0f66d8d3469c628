package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// SlogLogger реализует Logger поверх стандартного slog с JSON-выводом.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger создаёт логгер с уровнем из переменной окружения LOG_LEVEL
// (debug|info|warn|error, по умолчанию info).
func NewSlogLogger() *SlogLogger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	return &SlogLogger{log: slog.New(handler)}
}

// NewSlogLoggerWith создаёт логгер поверх готового slog.Logger (для тестов).
func NewSlogLoggerWith(log *slog.Logger) *SlogLogger {
	return &SlogLogger{log: log}
}

func (l *SlogLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *SlogLogger) Infof(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l *SlogLogger) Warnf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *SlogLogger) Errorf(err error, format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...), slog.Any("error", err))
}
