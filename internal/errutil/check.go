package errutil

import (
	"log/slog"
)

// LogMsg logs the error with a custom message if it is not nil.
// A nil logger falls back to slog.Default().
func LogMsg(logger *slog.Logger, err error, msg string, args ...any) {
	if err != nil {
		allArgs := append([]any{"error", err}, args...)
		orDefault(logger).Warn(msg, allArgs...)
	}
}

// ReportError logs an unexpected error.
// It funnels errors through a centralized reporting mechanism (currently slog).
func ReportError(logger *slog.Logger, err error, msg string, args ...any) {
	if err != nil {
		allArgs := append([]any{"error", err}, args...)
		orDefault(logger).Error(msg, allArgs...)
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
