package logger

import (
	"log/slog"
	"time"
)

// OperationLogger times one market operation and logs its outcome.
type OperationLogger struct {
	Operation string
	Attrs     []any
	StartTime time.Time
}

func NewOperationLogger(operation string, attrs ...any) *OperationLogger {
	return &OperationLogger{
		Operation: operation,
		Attrs:     attrs,
		StartTime: time.Now(),
	}
}

// Log writes the result. Rejections the caller can fix are logged as
// warnings; failures are logged as errors with their location.
func (l *OperationLogger) Log(err error, rejected bool, attrs ...any) {
	all := append([]any{
		slog.String("type", "market"),
		slog.String("operation", l.Operation),
		slog.Duration("took", time.Since(l.StartTime)),
	}, l.Attrs...)
	all = append(all, attrs...)

	switch {
	case err == nil:
		slog.Info("Market operation completed", all...)
	case rejected:
		slog.Warn("Market operation rejected", append(all, slog.String("reason", err.Error()))...)
	default:
		slog.Error("Market operation failed", append(all, slog.Any("error", err))...)
	}
}
