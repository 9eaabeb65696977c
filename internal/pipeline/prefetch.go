package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/frankwiersma/PowerPointKaraoke/internal/extract"
	"github.com/frankwiersma/PowerPointKaraoke/internal/language"
	"github.com/frankwiersma/PowerPointKaraoke/internal/render"
	"github.com/frankwiersma/PowerPointKaraoke/internal/script"
	"github.com/frankwiersma/PowerPointKaraoke/internal/session"
	"github.com/frankwiersma/PowerPointKaraoke/internal/speech"
)

// lookahead is how many slides past the current one are prefetched.
const lookahead = 2

// Prefetcher speculatively fills the caches for the slides the user is
// about to reach. All work is best effort: failures log and abandon only the
// affected slide, and every cache write re-validates a staleness guard so
// results from before a document reload or an export start are discarded
// rather than written.
type Prefetcher struct {
	sess      *session.Session
	doc       render.Document
	extractor *extract.Extractor
	scripts   *script.Generator
	voices    *speech.Dispatch
	log       *slog.Logger

	wg sync.WaitGroup
}

// PrefetcherConfig holds the Prefetcher dependencies.
type PrefetcherConfig struct {
	// Session is the store for the loaded document.
	Session *session.Session

	// Document is the loaded slide deck.
	Document render.Document

	// Extractor reads slide content.
	Extractor *extract.Extractor

	// Scripts generates narration.
	Scripts *script.Generator

	// Voices synthesizes narration audio.
	Voices *speech.Dispatch

	// Logger receives prefetch diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// NewPrefetcher creates a Prefetcher.
func NewPrefetcher(cfg PrefetcherConfig) *Prefetcher {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Prefetcher{
		sess:      cfg.Session,
		doc:       cfg.Document,
		extractor: cfg.Extractor,
		scripts:   cfg.Scripts,
		voices:    cfg.Voices,
		log:       log,
	}
}

// AfterScript kicks off speculative production for the slides following
// current. Called whenever the current slide's script finishes generating.
// The two candidate slides run independently; neither blocks the other. No
// work starts while an export owns the caches.
func (p *Prefetcher) AfterScript(ctx context.Context, current int) {
	if p.sess.Exporting() {
		return
	}

	total := p.sess.TotalSlides()
	for offset := 1; offset <= lookahead; offset++ {
		slide := current + offset
		if slide > total {
			break
		}

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.prefetchSlide(ctx, slide)
		}()
	}
}

// Wait blocks until all in-flight prefetch tasks finish. Used on shutdown
// and in tests; the pipeline itself never needs to wait.
func (p *Prefetcher) Wait() {
	p.wg.Wait()
}

// prefetchSlide runs the content → script → audio chain for one slide. The
// guard captured at entry goes permanently stale if a document reload or an
// export intervenes; every subsequent write checks it, so a prefetch that
// raced an export can never dirty the caches the export is consuming.
func (p *Prefetcher) prefetchSlide(ctx context.Context, slide int) {
	guard := p.sess.Guard()

	// An existing script means this slide was already produced (or is
	// about to be): nothing to do.
	if _, ok := p.sess.Script(slide); ok {
		return
	}

	content, ok := p.sess.Content(slide)
	if !ok {
		text, err := p.extractor.SlideText(ctx, p.doc, slide)
		if err != nil {
			p.log.Debug("prefetch content failed",
				"slide", slide, "err", err)
			return
		}
		if !p.sess.SetContentIf(guard, slide, text) {
			return
		}
		content = text
	}

	if !guard.Valid() {
		return
	}

	narration, ok := p.generateScript(ctx, guard, slide, content)
	if !ok {
		return
	}

	if _, ok := p.sess.Audio(slide); ok {
		return
	}

	lang := p.sess.Language()
	if lang == language.Unset {
		// Same-session fallback: classify the narration we just
		// generated without committing the session-wide decision.
		lang = language.Resolve([]string{narration})
	}

	asset, err := p.voices.Synthesize(ctx, narration, lang)
	if err != nil {
		p.log.Debug("prefetch audio failed",
			"slide", slide, "err", err)
		return
	}
	if !p.sess.SetAudioIf(guard, slide, asset) {
		// The write was rejected, so ownership stays here.
		asset.Release()
	}
}

// generateScript runs the narration step of a prefetch, honoring the
// single-inflight-per-slide invariant. It reports whether a script is now
// cached and production may continue.
func (p *Prefetcher) generateScript(ctx context.Context,
	guard session.Guard, slide int, content string) (string, bool) {

	if !p.sess.TryBeginGeneration(slide) {
		// Someone else is producing this slide; leave it to them.
		return "", false
	}
	defer p.sess.EndGeneration(slide)

	narration, err := p.scripts.Narration(ctx, script.Request{
		Slide:       slide,
		TotalSlides: p.sess.TotalSlides(),
		SlideText:   content,
		History: p.sess.HistoryWindow(
			slide, script.ContextWindowSize,
		),
		PresentationContext: p.sess.PresentationContext(),
	})
	if err != nil {
		p.log.Debug("prefetch script failed",
			"slide", slide, "err", err)
		return "", false
	}

	if !p.sess.SetScriptIf(guard, slide, narration) {
		return "", false
	}

	p.sess.ResolveFromScripts()

	return narration, true
}
