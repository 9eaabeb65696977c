// Package build holds binary-level concerns: version metadata and the
// logging setup shared by every command. Logs go to the console and,
// when a log directory is configured, to a size-rotated file as well.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// LogConfig configures the shared logger.
type LogConfig struct {
	// Level is the minimum level name: trace, debug, info, warn,
	// error, critical.
	Level string

	// Dir enables file logging into the given directory when set.
	Dir string
}

// NewLogger builds the process-wide logger. The returned closer flushes the
// rotating file writer; it is a no-op for console-only logging.
func NewLogger(cfg LogConfig) (*slog.Logger, func() error, error) {
	level, ok := btclog.LevelFromString(cfg.Level)
	if !ok {
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	console := btclogv2.NewDefaultHandler(os.Stderr)
	handlers := []btclogv2.Handler{console}

	closer := func() error { return nil }
	if cfg.Dir != "" {
		fileWriter, err := newRotatingWriter(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}

		handlers = append(handlers,
			btclogv2.NewDefaultHandler(fileWriter))
		closer = fileWriter.Close
	}

	fanout := newFanout(handlers...)
	fanout.SetLevel(level)

	return slog.New(fanout), closer, nil
}

// fanout dispatches each record to every underlying handler, so a message
// reaches the console and the log file in one call.
type fanout struct {
	level    btclog.Level
	handlers []btclogv2.Handler
}

func newFanout(handlers ...btclogv2.Handler) *fanout {
	return &fanout{
		level:    btclog.LevelInfo,
		handlers: handlers,
	}
}

// SetLevel applies the level to every underlying handler.
func (f *fanout) SetLevel(level btclog.Level) {
	for _, h := range f.handlers {
		h.SetLevel(level)
	}
	f.level = level
}

// Enabled reports whether any underlying handler accepts the level.
func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle dispatches the record to every underlying handler.
func (f *fanout) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range f.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// WithAttrs derives a fanout whose handlers carry the extra attributes.
// The derived handlers are plain slog.Handlers, so the result loses the
// level setter; levels are fixed before any attrs are attached.
func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		derived[i] = h.WithAttrs(attrs)
	}
	return &slogFanout{handlers: derived}
}

// WithGroup derives a fanout whose handlers carry the group.
func (f *fanout) WithGroup(name string) slog.Handler {
	derived := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		derived[i] = h.WithGroup(name)
	}
	return &slogFanout{handlers: derived}
}

var _ slog.Handler = (*fanout)(nil)

// slogFanout is the derived form of fanout produced by WithAttrs and
// WithGroup, whose members are plain slog.Handlers.
type slogFanout struct {
	handlers []slog.Handler
}

func (s *slogFanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range s.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (s *slogFanout) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range s.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *slogFanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make([]slog.Handler, len(s.handlers))
	for i, h := range s.handlers {
		derived[i] = h.WithAttrs(attrs)
	}
	return &slogFanout{handlers: derived}
}

func (s *slogFanout) WithGroup(name string) slog.Handler {
	derived := make([]slog.Handler, len(s.handlers))
	for i, h := range s.handlers {
		derived[i] = h.WithGroup(name)
	}
	return &slogFanout{handlers: derived}
}

var _ slog.Handler = (*slogFanout)(nil)
