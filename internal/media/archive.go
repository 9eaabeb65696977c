package media

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/frankwiersma/PowerPointKaraoke/internal/export"
	"github.com/yuin/goldmark"
)

// ArchivePackager writes the raw assets into a zip: the rendered frames,
// the audio clips, the script texts, and a browsable index page.
type ArchivePackager struct {
	log *slog.Logger
}

// NewArchivePackager creates an ArchivePackager.
func NewArchivePackager(log *slog.Logger) *ArchivePackager {
	if log == nil {
		log = slog.Default()
	}
	return &ArchivePackager{log: log}
}

// Package writes the archive to outPath.
func (a *ArchivePackager) Package(_ context.Context,
	entries []export.Entry, outPath string) error {

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	for _, entry := range entries {
		name := fmt.Sprintf("slides/slide-%02d.png", entry.Slide)
		if err := writeArchiveFile(zw, name, entry.Image); err != nil {
			return err
		}

		audio, err := entry.Audio.Bytes()
		if err != nil {
			return fmt.Errorf("audio for slide %d: %w",
				entry.Slide, err)
		}
		name = fmt.Sprintf("audio/slide-%02d.mp3", entry.Slide)
		if err := writeArchiveFile(zw, name, audio); err != nil {
			return err
		}

		name = fmt.Sprintf("scripts/slide-%02d.txt", entry.Slide)
		script := []byte(entry.Script + "\n")
		if err := writeArchiveFile(zw, name, script); err != nil {
			return err
		}
	}

	index, err := renderIndex(entries)
	if err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	if err := writeArchiveFile(zw, "index.html", index); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	a.log.Info("archive packaged",
		"slides", len(entries), "output", outPath)

	return nil
}

// writeArchiveFile adds one file to the zip.
func writeArchiveFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// renderIndex builds the archive's index page: a markdown listing of every
// slide with its frame, audio and script, converted to HTML.
func renderIndex(entries []export.Entry) ([]byte, error) {
	var md strings.Builder
	md.WriteString("# Voiceover Export\n\n")

	for _, entry := range entries {
		fmt.Fprintf(&md, "## Slide %d\n\n", entry.Slide)
		fmt.Fprintf(&md, "![Slide %d](slides/slide-%02d.png)\n\n",
			entry.Slide, entry.Slide)
		fmt.Fprintf(&md, "Audio: [slide-%02d.mp3](audio/slide-%02d.mp3) "+
			"(%.1fs)\n\n",
			entry.Slide, entry.Slide, entry.Duration.Seconds())
		fmt.Fprintf(&md, "> %s\n\n", entry.Script)
	}

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &body); err != nil {
		return nil, err
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	page.WriteString("<meta charset=\"utf-8\">\n")
	page.WriteString("<title>Voiceover Export</title>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	return page.Bytes(), nil
}
