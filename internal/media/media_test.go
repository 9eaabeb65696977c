package media

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/frankwiersma/PowerPointKaraoke/internal/export"
	"github.com/frankwiersma/PowerPointKaraoke/internal/speech"
	"github.com/stretchr/testify/require"
)

// fakeExec records invocations and replays canned stdout per command name.
type fakeExec struct {
	runs    [][]string
	stdout  map[string]string
	failCmd string
}

func (f *fakeExec) Run(_ context.Context, name string,
	args ...string) (string, error) {

	f.runs = append(f.runs, append([]string{name}, args...))
	if name == f.failCmd {
		return "", errors.New("command exploded")
	}
	return f.stdout[name], nil
}

func newEntry(t *testing.T, slide int, script string) export.Entry {
	t.Helper()

	asset, err := speech.NewAsset(
		[]byte(fmt.Sprintf("audio-%d", slide)), "audio/mpeg",
	)
	require.NoError(t, err)
	t.Cleanup(asset.Release)

	return export.Entry{
		Slide:    slide,
		Image:    []byte(fmt.Sprintf("png-%d", slide)),
		Audio:    asset,
		Duration: time.Duration(slide) * time.Second,
		Script:   script,
	}
}

// TestProbeDuration verifies ffprobe invocation and output parsing.
func TestProbeDuration(t *testing.T) {
	exec := &fakeExec{stdout: map[string]string{"ffprobe": "2.500\n"}}

	d, err := NewProber(exec).ProbeDuration(
		context.Background(), "/tmp/clip.mp3",
	)
	require.NoError(t, err)
	require.Equal(t, 2500*time.Millisecond, d)

	require.Len(t, exec.runs, 1)
	require.Equal(t, "ffprobe", exec.runs[0][0])
	require.Contains(t, exec.runs[0], "format=duration")
	require.Contains(t, exec.runs[0], "/tmp/clip.mp3")
}

// TestProbeDurationMalformed verifies unparseable and non-positive outputs
// fail.
func TestProbeDurationMalformed(t *testing.T) {
	for _, out := range []string{"N/A\n", "0.000\n", ""} {
		exec := &fakeExec{stdout: map[string]string{"ffprobe": out}}
		_, err := NewProber(exec).ProbeDuration(
			context.Background(), "/tmp/clip.mp3",
		)
		require.Error(t, err, "output %q", out)
	}
}

// TestVideoPackagerCommands verifies one segment render per entry plus the
// final concat, with the scaling filter and the measured durations applied.
func TestVideoPackagerCommands(t *testing.T) {
	exec := &fakeExec{}
	pkg := NewVideoPackager(exec, nil)

	entries := []export.Entry{
		newEntry(t, 1, "first"),
		newEntry(t, 2, "second"),
	}

	err := pkg.Package(context.Background(), entries, "out.mp4")
	require.NoError(t, err)
	require.Len(t, exec.runs, 3)

	for i, entry := range entries {
		run := exec.runs[i]
		require.Equal(t, "ffmpeg", run[0])
		require.Contains(t, run, "scale=1920:-2")
		require.Contains(t, run, entry.Audio.Path())
		require.Contains(t, run,
			fmt.Sprintf("%.3f", entry.Duration.Seconds()))
	}

	concat := exec.runs[2]
	require.Contains(t, concat, "concat")
	require.Contains(t, concat, "copy")
	require.Equal(t, "out.mp4", concat[len(concat)-1])
}

// TestVideoPackagerSegmentFailure verifies an ffmpeg failure surfaces with
// the slide attached.
func TestVideoPackagerSegmentFailure(t *testing.T) {
	exec := &fakeExec{failCmd: "ffmpeg"}
	pkg := NewVideoPackager(exec, nil)

	err := pkg.Package(context.Background(),
		[]export.Entry{newEntry(t, 3, "x")}, "out.mp4")
	require.Error(t, err)
	require.Contains(t, err.Error(), "slide 3")
}

// TestArchivePackager verifies the zip layout and the index page.
func TestArchivePackager(t *testing.T) {
	out := filepath.Join(t.TempDir(), "export.zip")
	pkg := NewArchivePackager(nil)

	entries := []export.Entry{
		newEntry(t, 1, "De eerste dia."),
		newEntry(t, 4, "De vierde dia."),
	}

	err := pkg.Package(context.Background(), entries, out)
	require.NoError(t, err)

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()

	files := make(map[string][]byte)
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[zf.Name] = data
	}

	require.Equal(t, []byte("png-1"), files["slides/slide-01.png"])
	require.Equal(t, []byte("audio-4"), files["audio/slide-04.mp3"])
	require.Equal(t, []byte("De eerste dia.\n"),
		files["scripts/slide-01.txt"])

	index := string(files["index.html"])
	require.Contains(t, index, "Slide 1")
	require.Contains(t, index, "Slide 4")
	require.Contains(t, index, "slides/slide-04.png")
	require.Contains(t, index, "De vierde dia.")
}

// TestArchivePackagerReleasedAudio verifies a released asset fails the
// archive instead of producing an empty clip.
func TestArchivePackagerReleasedAudio(t *testing.T) {
	out := filepath.Join(t.TempDir(), "export.zip")
	entry := newEntry(t, 1, "x")
	entry.Audio.Release()

	err := NewArchivePackager(nil).Package(
		context.Background(), []export.Entry{entry}, out,
	)
	require.Error(t, err)
}

// TestExecutorStderrInError verifies the real executor folds stderr into
// the failure.
func TestExecutorStderrInError(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available")
	}

	_, err := NewExecutor().Run(context.Background(),
		"/bin/sh", "-c", "echo boom >&2; exit 1")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "boom"))
}
