// Package media turns an export's ordered slide entries into the final
// artifact: an MP4 rendered with ffmpeg, or a zip archive of the raw
// assets. It also measures audio durations with ffprobe.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor runs external commands. Abstracted so packagers can be tested
// without ffmpeg installed.
type Executor interface {
	// Run executes the named command and returns its stdout.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

// NewExecutor returns an Executor backed by os/exec.
func NewExecutor() Executor {
	return &execRunner{}
}

// Run executes the command, folding stderr into the error so ffmpeg
// failures carry their diagnostics.
func (execRunner) Run(ctx context.Context, name string,
	args ...string) (string, error) {

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s failed: %w: %s",
				name, err, msg)
		}
		return "", fmt.Errorf("%s failed: %w", name, err)
	}

	return stdout.String(), nil
}
