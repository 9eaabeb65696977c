package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/frankwiersma/PowerPointKaraoke/internal/export"
)

// outputWidth is the fixed video width. Frames keep their aspect ratio; -2
// keeps the height even as libx264 requires.
const outputWidth = 1920

// VideoPackager renders the entries into a single MP4: one still-image
// segment per slide, held for the slide's audio duration, concatenated with
// the stream-copy demuxer.
type VideoPackager struct {
	exec Executor
	log  *slog.Logger
}

// NewVideoPackager creates a VideoPackager over the given executor.
func NewVideoPackager(exec Executor, log *slog.Logger) *VideoPackager {
	if log == nil {
		log = slog.Default()
	}
	return &VideoPackager{exec: exec, log: log}
}

// Package renders each entry into a segment and concatenates them into
// outPath. Intermediate files live in a temp directory that is removed when
// packaging finishes.
func (v *VideoPackager) Package(ctx context.Context,
	entries []export.Entry, outPath string) error {

	workDir, err := os.MkdirTemp("", "karaoke-export-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	segments := make([]string, 0, len(entries))
	for _, entry := range entries {
		segment, err := v.renderSegment(ctx, workDir, entry)
		if err != nil {
			return fmt.Errorf("segment for slide %d: %w",
				entry.Slide, err)
		}
		segments = append(segments, segment)
	}

	if err := v.concat(ctx, workDir, segments, outPath); err != nil {
		return fmt.Errorf("concat segments: %w", err)
	}

	v.log.Info("video packaged",
		"segments", len(segments), "output", outPath)

	return nil
}

// renderSegment produces one still-image video segment for the entry.
func (v *VideoPackager) renderSegment(ctx context.Context, workDir string,
	entry export.Entry) (string, error) {

	frame := filepath.Join(workDir,
		fmt.Sprintf("frame-%03d.png", entry.Slide))
	if err := os.WriteFile(frame, entry.Image, 0600); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}

	segment := filepath.Join(workDir,
		fmt.Sprintf("segment-%03d.mp4", entry.Slide))

	_, err := v.exec.Run(ctx, "ffmpeg",
		"-loop", "1",
		"-i", frame,
		"-i", entry.Audio.Path(),
		"-vf", fmt.Sprintf("scale=%d:-2", outputWidth),
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-t", fmt.Sprintf("%.3f", entry.Duration.Seconds()),
		"-y",
		segment,
	)
	if err != nil {
		return "", err
	}

	return segment, nil
}

// concat stitches the segments with ffmpeg's concat demuxer. The segments
// share a codec, so the streams are copied rather than re-encoded.
func (v *VideoPackager) concat(ctx context.Context, workDir string,
	segments []string, outPath string) error {

	var list strings.Builder
	for _, segment := range segments {
		fmt.Fprintf(&list, "file '%s'\n", segment)
	}

	listPath := filepath.Join(workDir, "segments.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0600); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	_, err := v.exec.Run(ctx, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outPath,
	)
	return err
}
