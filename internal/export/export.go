// Package export drains the session caches in slide order, filling any
// misses through the shared producer, and hands the ordered results to a
// media packager. Per-slide failures are recorded and skipped; only a run
// in which no slide survives fails as a whole.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frankwiersma/PowerPointKaraoke/internal/language"
	"github.com/frankwiersma/PowerPointKaraoke/internal/pipeline"
	"github.com/frankwiersma/PowerPointKaraoke/internal/render"
	"github.com/frankwiersma/PowerPointKaraoke/internal/session"
	"github.com/frankwiersma/PowerPointKaraoke/internal/speech"
)

var (
	// ErrNoSlidesProcessed indicates every slide failed and there is
	// nothing to package.
	ErrNoSlidesProcessed = errors.New("no slides could be processed")

	// ErrExportInProgress indicates another export already owns the
	// session.
	ErrExportInProgress = errors.New("an export is already running")

	// ErrCancelled indicates the user cancelled the export before it
	// finished.
	ErrCancelled = errors.New("export cancelled")
)

const (
	// interSlideDelay spaces successful slides apart to respect the
	// external services' rate limits.
	interSlideDelay = 1500 * time.Millisecond

	// failureDelay backs off longer after a failed slide.
	failureDelay = 3 * time.Second

	// frameScale is the raster scale for exported frames. The packager
	// normalizes frames to the fixed output width.
	frameScale = 2.0
)

// State is the orchestrator lifecycle.
type State uint8

const (
	// Idle means no export has run yet.
	Idle State = iota

	// Running means an export currently owns the session caches.
	Running

	// Cancelled means the user stopped the export before completion.
	Cancelled

	// Complete means all slides were attempted and the output packaged.
	Complete

	// Failed means no slide could be processed or packaging failed.
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one slide's packaged payload: the rendered frame, the narration
// audio with its measured duration, and the script text for archives.
type Entry struct {
	// Slide is the 1-based slide index.
	Slide int

	// Image is the rendered PNG frame.
	Image []byte

	// Audio is the narration clip.
	Audio *speech.Asset

	// Duration is the measured audio duration.
	Duration time.Duration

	// Script is the narration text.
	Script string
}

// Packager turns the ordered entries into the final artifact (a video file
// or an asset archive).
type Packager interface {
	// Package writes the artifact for the given ordered entries.
	Package(ctx context.Context, entries []Entry, outPath string) error
}

// DurationProber measures the playback duration of an audio file.
type DurationProber interface {
	// ProbeDuration returns the duration of the audio at path.
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// Report summarizes an export run.
type Report struct {
	// Included lists the slide indices present in the output, in
	// ascending order.
	Included []int

	// Skipped lists the slide indices that failed, in ascending order.
	Skipped []int

	// Output is the path of the packaged artifact, empty when nothing
	// was packaged.
	Output string
}

// Orchestrator runs exports over a loaded document.
type Orchestrator struct {
	sess   *session.Session
	doc    render.Document
	prod   *pipeline.Producer
	prober DurationProber
	log    *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	state     State
	cancelled atomic.Bool
}

// Config holds the orchestrator dependencies.
type Config struct {
	// Session is the store for the loaded document.
	Session *session.Session

	// Document is the loaded slide deck.
	Document render.Document

	// Producer fills cache misses.
	Producer *pipeline.Producer

	// Prober measures audio durations.
	Prober DurationProber

	// Logger receives export diagnostics. Nil means slog.Default.
	Logger *slog.Logger

	// Sleep overrides the delay function, for tests. Nil means a
	// ctx-aware real sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator in the Idle state.
func New(cfg Config) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return &Orchestrator{
		sess:   cfg.Session,
		doc:    cfg.Document,
		prod:   cfg.Producer,
		prober: cfg.Prober,
		log:    log,
		sleep:  sleep,
		state:  Idle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// setState transitions the lifecycle.
func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = s
}

// Cancel requests a cooperative stop. The current slide's in-flight calls
// are not recalled; the loop stops before the next slide begins and their
// results are discarded with the rest of the run.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Run exports every slide of the document in strictly ascending order and
// hands the ordered entries to the packager. Cache hits are reused
// verbatim; misses are generated through the producer. A slide that fails
// is recorded and skipped after a back-off delay. Run fails as a whole only
// when zero slides survive, when packaging fails, or on cancellation.
func (o *Orchestrator) Run(ctx context.Context, pkg Packager,
	outPath string) (Report, error) {

	if !o.sess.BeginExport() {
		return Report{}, ErrExportInProgress
	}
	defer o.sess.EndExport()

	o.cancelled.Store(false)
	o.setState(Running)

	var (
		entries  []Entry
		included []int
		skipped  []int
	)

	total := o.sess.TotalSlides()
	for slide := 1; slide <= total; slide++ {
		if o.cancelled.Load() {
			o.setState(Cancelled)
			o.log.Info("export cancelled",
				"completed", len(included),
				"remaining", total-slide+1)

			return Report{
				Included: included,
				Skipped:  skipped,
			}, ErrCancelled
		}

		entry, err := o.processSlide(ctx, slide)
		if err != nil {
			o.log.Warn("slide failed, skipping",
				"slide", slide, "err", err)
			skipped = append(skipped, slide)

			if err := o.sleep(ctx, failureDelay); err != nil {
				o.setState(Cancelled)
				return Report{
					Included: included,
					Skipped:  skipped,
				}, err
			}
			continue
		}

		entries = append(entries, entry)
		included = append(included, slide)

		if err := o.sleep(ctx, interSlideDelay); err != nil {
			o.setState(Cancelled)
			return Report{
				Included: included,
				Skipped:  skipped,
			}, err
		}
	}

	if len(entries) == 0 {
		o.setState(Failed)
		return Report{Skipped: skipped}, ErrNoSlidesProcessed
	}

	if err := pkg.Package(ctx, entries, outPath); err != nil {
		o.setState(Failed)
		return Report{
			Included: included,
			Skipped:  skipped,
		}, fmt.Errorf("package export: %w", err)
	}

	o.setState(Complete)
	o.log.Info("export complete",
		"included", len(included),
		"skipped", skipped,
		"output", outPath)

	return Report{
		Included: included,
		Skipped:  skipped,
		Output:   outPath,
	}, nil
}

// processSlide resolves one slide end to end: content, script (with the
// slide-1 language bootstrap), audio, rendered frame and measured duration.
func (o *Orchestrator) processSlide(ctx context.Context,
	slide int) (Entry, error) {

	content, err := o.prod.ContentFor(ctx, slide)
	if err != nil {
		return Entry{}, fmt.Errorf("content: %w", err)
	}

	narration, err := o.prod.ScriptFor(ctx, slide, content)
	if err != nil {
		return Entry{}, fmt.Errorf("script: %w", err)
	}

	// Export on a cold session cannot wait for the three-script
	// majority: the first slide's script alone decides the language.
	if slide == 1 && o.sess.Language() == language.Unset {
		o.sess.ResolveBootstrap(narration)
	}

	audio, err := o.prod.AudioFor(ctx, slide, narration)
	if err != nil {
		return Entry{}, fmt.Errorf("audio: %w", err)
	}

	image, err := o.doc.RenderPage(ctx, slide, frameScale)
	if err != nil {
		return Entry{}, fmt.Errorf("render frame: %w", err)
	}

	duration, err := o.prober.ProbeDuration(ctx, audio.Path())
	if err != nil {
		return Entry{}, fmt.Errorf("probe duration: %w", err)
	}

	return Entry{
		Slide:    slide,
		Image:    image,
		Audio:    audio,
		Duration: duration,
		Script:   narration,
	}, nil
}
