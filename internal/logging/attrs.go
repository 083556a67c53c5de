package logging

import (
	"log/slog"
	"time"
)

// Common attribute keys shared across components so log output stays
// grep-able.
const (
	FieldComponent = "component"
	FieldAsset     = "asset"
	FieldStage     = "stage"
	FieldRequest   = "request_id"
	FieldDuration  = "duration"
	FieldError     = "error"
)

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

func Float(key string, value float64) slog.Attr { return slog.Float64(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) slog.Attr {
	return slog.Duration(key, value)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any(FieldError, err)
}

// WithComponent tags a logger with the component field consumed by the
// console handler prefix.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(String(FieldComponent, component))
}
