package logging

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// watermillAdapter routes watermill's internal logging through the
// simulation logger. Watermill trace output is emitted at debug level.
type watermillAdapter struct {
	logger *slog.Logger
}

// Watermill returns a watermill.LoggerAdapter backed by this logger.
func (l *Logger) Watermill() watermill.LoggerAdapter {
	return &watermillAdapter{logger: l.Logger}
}

func (a *watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(attrs(fields), "error", err)...)
}

func (a *watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, attrs(fields)...)
}

func (a *watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, attrs(fields)...)
}

func (a *watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, attrs(fields)...)
}

func (a *watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillAdapter{logger: a.logger.With(attrs(fields)...)}
}

func attrs(fields watermill.LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
