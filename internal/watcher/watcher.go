// Package watcher monitors a drop directory for new PDF decks and runs the
// export pipeline on each one. Processed decks are moved aside so a restart
// never re-exports them.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long to wait after a create event before opening the
// file, so a deck still being copied in is not read half-written.
const settleDelay = 500 * time.Millisecond

// Handler processes one dropped deck.
type Handler func(ctx context.Context, path string) error

// Watcher runs exports for decks dropped into a directory.
type Watcher struct {
	inputDir   string
	archiveDir string
	handler    Handler
	log        *slog.Logger
	fsw        *fsnotify.Watcher
	settle     time.Duration
}

// Config holds the Watcher parameters.
type Config struct {
	// InputDir is the directory to monitor.
	InputDir string

	// ArchiveDir is where processed decks are moved.
	ArchiveDir string

	// Handler processes each new deck.
	Handler Handler

	// Logger receives watch diagnostics. Nil means slog.Default.
	Logger *slog.Logger

	// Settle overrides the write-settle delay, for tests. Zero means
	// the default.
	Settle time.Duration
}

// New creates a Watcher over the configured input directory.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fsw.Add(cfg.InputDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.InputDir, err)
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0755); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	settle := cfg.Settle
	if settle == 0 {
		settle = settleDelay
	}

	return &Watcher{
		inputDir:   cfg.InputDir,
		archiveDir: cfg.ArchiveDir,
		handler:    cfg.Handler,
		log:        log,
		fsw:        fsw,
		settle:     settle,
	}, nil
}

// Run processes drop events until the context is cancelled. Decks are
// handled one at a time: an export owns the session exclusively, so there
// is nothing to gain from concurrent handling.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watching for decks", "dir", w.inputDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events closed")
			}
			if !event.Op.Has(fsnotify.Create) || !isPDF(event.Name) {
				continue
			}

			if err := w.sleep(ctx); err != nil {
				return err
			}
			w.process(ctx, event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors closed")
			}
			w.log.Error("watch error", "err", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// sleep waits out the settle delay, honoring cancellation.
func (w *Watcher) sleep(ctx context.Context) error {
	timer := time.NewTimer(w.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process runs the handler for one deck and archives it on success. A
// failed deck stays in the input directory for inspection; the failure only
// logs so one bad deck cannot stop the watch loop.
func (w *Watcher) process(ctx context.Context, path string) {
	w.log.Info("new deck detected", "path", path)

	if err := w.handler(ctx, path); err != nil {
		w.log.Error("deck processing failed", "path", path, "err", err)
		return
	}

	dest := filepath.Join(w.archiveDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		w.log.Error("archive deck failed", "path", path, "err", err)
		return
	}

	w.log.Info("deck processed", "path", path, "archived", dest)
}

func isPDF(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}
