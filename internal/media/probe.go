package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prober measures audio durations with ffprobe.
type Prober struct {
	exec Executor
}

// NewProber creates a Prober over the given executor.
func NewProber(exec Executor) *Prober {
	return &Prober{exec: exec}
}

// ProbeDuration returns the playback duration of the audio file at path.
func (p *Prober) ProbeDuration(ctx context.Context,
	path string) (time.Duration, error) {

	out, err := p.exec.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w",
			strings.TrimSpace(out), err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("non-positive duration %.3fs for %s",
			seconds, path)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}
