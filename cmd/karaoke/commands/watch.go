package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/frankwiersma/PowerPointKaraoke/internal/watcher"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and export every deck dropped into it",
	Long: `Watch monitors the configured input directory. Each PDF dropped
there is exported with the configured format and moved to the archive
directory when done. Runs until interrupted.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(
		cmd.Context(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Paths.Input == "" {
		return fmt.Errorf("paths.input must be set for watch mode")
	}
	if err := os.MkdirAll(a.cfg.Paths.Output, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	w, err := watcher.New(watcher.Config{
		InputDir:   a.cfg.Paths.Input,
		ArchiveDir: a.cfg.Paths.Archived,
		Logger:     a.log.With("subsys", "watch"),
		Handler: func(ctx context.Context, path string) error {
			out := outputPathFor(a, path)
			report, err := exportDeck(ctx, a, path, out, "")
			if err != nil {
				return err
			}
			a.log.Info("deck exported",
				"deck", path,
				"output", report.Output,
				"skipped", report.Skipped)
			return nil
		},
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// outputPathFor derives the artifact path for a dropped deck from the
// configured output directory and export format.
func outputPathFor(a *app, deckPath string) string {
	base := strings.TrimSuffix(
		filepath.Base(deckPath), filepath.Ext(deckPath),
	)

	ext := ".mp4"
	if a.cfg.Export.Format == "archive" {
		ext = ".zip"
	}

	return filepath.Join(a.cfg.Paths.Output, base+ext)
}
