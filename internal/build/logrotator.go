package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	// logFilename is the active log file name inside the log directory.
	logFilename = "karaoke.log"

	// maxLogFiles is how many rotated, compressed log files to keep.
	maxLogFiles = 5

	// maxLogFileSizeMB is the size threshold for rotation.
	maxLogFileSizeMB = 10
)

// rotatingWriter feeds log bytes through a pipe into a background rotator
// that enforces the size limit and gzips rotated files.
type rotatingWriter struct {
	pipe *io.PipeWriter
	rot  *rotator.Rotator
}

// newRotatingWriter creates the log directory if needed and starts the
// rotator goroutine.
func newRotatingWriter(dir string) (*rotatingWriter, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	rot, err := rotator.New(
		filepath.Join(dir, logFilename),
		maxLogFileSizeMB*1024, false, maxLogFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("create log rotator: %w", err)
	}
	rot.SetCompressor(gzip.NewWriter(nil), ".gz")

	pr, pw := io.Pipe()
	go func() {
		// The rotator is the log destination, so its own failures
		// can only go to stderr.
		if err := rot.Run(pr); err != nil {
			fmt.Fprintf(os.Stderr, "log rotator: %v\n", err)
		}
	}()

	return &rotatingWriter{pipe: pw, rot: rot}, nil
}

// Write feeds the rotator pipe.
func (w *rotatingWriter) Write(b []byte) (int, error) {
	return w.pipe.Write(b)
}

// Close flushes and stops the rotator.
func (w *rotatingWriter) Close() error {
	if err := w.pipe.Close(); err != nil {
		return err
	}
	return w.rot.Close()
}
