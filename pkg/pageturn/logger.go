package pageturn

import (
	"context"
	"log/slog"

	"github.com/LavishGent/pageturn/internal/types"
)

// slogAdapter routes slog records to a consumer supplied Logger.
//
//nolint:govet // Simple adapter struct - alignment optimization minimal
type slogAdapter struct {
	attrs  []slog.Attr
	logger types.Logger
	group  string
}

func newLogger(l types.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	if sl, ok := l.(*slog.Logger); ok {
		return sl
	}
	return slog.New(slogAdapter{logger: l})
}

// Enabled implements slog.Handler.
func (a slogAdapter) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Handler interface requires passing Record by value
func (a slogAdapter) Handle(_ context.Context, r slog.Record) error {
	args := make([]any, 0, (len(a.attrs)+r.NumAttrs())*2)
	for _, attr := range a.attrs {
		args = append(args, attr.Key, attr.Value.Any())
	}
	r.Attrs(func(attr slog.Attr) bool {
		args = append(args, a.key(attr.Key), attr.Value.Any())
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		a.logger.Error(r.Message, args...)
	case r.Level >= slog.LevelWarn:
		a.logger.Warn(r.Message, args...)
	case r.Level >= slog.LevelInfo:
		a.logger.Info(r.Message, args...)
	default:
		a.logger.Debug(r.Message, args...)
	}
	return nil
}

func (a slogAdapter) key(k string) string {
	if a.group == "" {
		return k
	}
	return a.group + "." + k
}

// WithAttrs implements slog.Handler. Keys are qualified with the group open
// at the time of the call.
func (a slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(a.attrs), len(a.attrs)+len(attrs))
	copy(newAttrs, a.attrs)
	for _, attr := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: a.key(attr.Key), Value: attr.Value})
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  newAttrs,
		group:  a.group,
	}
}

// WithGroup implements slog.Handler.
func (a slogAdapter) WithGroup(name string) slog.Handler {
	if name == "" {
		return a
	}
	newGroup := name
	if a.group != "" {
		newGroup = a.group + "." + name
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  a.attrs,
		group:  newGroup,
	}
}
