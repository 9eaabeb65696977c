// Package pipeline coordinates per-slide voiceover production. The Producer
// is the cache-or-generate path shared by interactive narration and export;
// the Prefetcher speculatively runs the same steps for upcoming slides while
// staying safe against document reloads and exports starting mid-flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frankwiersma/PowerPointKaraoke/internal/extract"
	"github.com/frankwiersma/PowerPointKaraoke/internal/language"
	"github.com/frankwiersma/PowerPointKaraoke/internal/render"
	"github.com/frankwiersma/PowerPointKaraoke/internal/script"
	"github.com/frankwiersma/PowerPointKaraoke/internal/session"
	"github.com/frankwiersma/PowerPointKaraoke/internal/speech"
)

// ErrGenerationInFlight indicates another task is already generating the
// requested slide's script.
var ErrGenerationInFlight = errors.New("script generation already in flight")

// Producer resolves slide content, narration and audio, reusing cache hits
// and writing generated results back through the session's designated write
// paths.
type Producer struct {
	sess      *session.Session
	doc       render.Document
	extractor *extract.Extractor
	scripts   *script.Generator
	voices    *speech.Dispatch
	log       *slog.Logger
}

// ProducerConfig holds the Producer dependencies.
type ProducerConfig struct {
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

	// Logger receives diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// NewProducer creates a Producer.
func NewProducer(cfg ProducerConfig) *Producer {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Producer{
		sess:      cfg.Session,
		doc:       cfg.Document,
		extractor: cfg.Extractor,
		scripts:   cfg.Scripts,
		voices:    cfg.Voices,
		log:       log,
	}
}

// ContentFor returns the slide's extracted text, generating and caching it
// on a miss.
func (p *Producer) ContentFor(ctx context.Context, slide int) (string, error) {
	if text, ok := p.sess.Content(slide); ok {
		return text, nil
	}

	text, err := p.extractor.SlideText(ctx, p.doc, slide)
	if err != nil {
		return "", err
	}
	p.sess.SetContent(slide, text)

	return text, nil
}

// ScriptFor returns the slide's narration, generating and caching it on a
// miss. Generating claims the slide's single in-flight slot; a second
// concurrent generation for the same slide fails with
// ErrGenerationInFlight. Slide 1 additionally derives the presentation
// theme summary, whose failure is tolerated. Once enough scripts exist the
// presentation language resolves as a side effect.
func (p *Producer) ScriptFor(ctx context.Context, slide int,
	slideText string) (string, error) {

	if narration, ok := p.sess.Script(slide); ok {
		return narration, nil
	}

	if !p.sess.TryBeginGeneration(slide) {
		return "", fmt.Errorf("slide %d: %w", slide,
			ErrGenerationInFlight)
	}
	defer p.sess.EndGeneration(slide)

	narration, err := p.scripts.Narration(ctx, script.Request{
		Slide:               slide,
		TotalSlides:         p.sess.TotalSlides(),
		SlideText:           slideText,
		History:             p.sess.HistoryWindow(slide, script.ContextWindowSize),
		PresentationContext: p.sess.PresentationContext(),
	})
	if err != nil {
		return "", err
	}

	p.sess.SetScript(slide, narration)

	if slide == 1 && p.sess.PresentationContext().IsNone() {
		p.deriveTheme(ctx, slideText, narration)
	}

	p.sess.ResolveFromScripts()

	return narration, nil
}

// deriveTheme runs the slide-1 theme summary side effect. Failure only
// logs: the summary improves continuity but nothing depends on it.
func (p *Producer) deriveTheme(ctx context.Context, slideText,
	narration string) {

	summary, err := p.scripts.SummarizeTheme(ctx, slideText, narration)
	if err != nil {
		p.log.Warn("presentation theme summary failed",
			"err", err)
		return
	}
	p.sess.SetPresentationContext(summary)
}

// AudioFor returns the slide's narration audio, synthesizing and caching it
// on a miss or when the cached asset's backing reference has gone stale.
// Synthesis uses the resolved presentation language when set, otherwise a
// per-call classification of the narration itself.
func (p *Producer) AudioFor(ctx context.Context, slide int,
	narration string) (*speech.Asset, error) {

	if asset, ok := p.sess.Audio(slide); ok {
		if _, err := asset.Bytes(); err == nil {
			return asset, nil
		}
		p.log.Warn("cached audio reference stale, regenerating",
			"slide", slide)
	}

	lang := p.sess.Language()
	if lang == language.Unset {
		lang = language.Resolve([]string{narration})
	}

	asset, err := p.voices.Synthesize(ctx, narration, lang)
	if err != nil {
		return nil, err
	}
	p.sess.SetAudio(slide, asset)

	return asset, nil
}

// Narration is the outcome of producing one slide's voiceover.
type Narration struct {
	// Slide is the 1-based slide index.
	Slide int

	// Script is the narration text.
	Script string

	// Audio is the synthesized clip, owned by the session cache.
	Audio *speech.Asset
}

// Narrate produces the full voiceover for one slide: content, script and
// audio, reusing caches at every step. Errors surface to the caller
// untouched; this is the user-facing interactive path.
func (p *Producer) Narrate(ctx context.Context, slide int) (Narration, error) {
	content, err := p.ContentFor(ctx, slide)
	if err != nil {
		return Narration{}, err
	}

	narration, err := p.ScriptFor(ctx, slide, content)
	if err != nil {
		return Narration{}, err
	}

	audio, err := p.AudioFor(ctx, slide, narration)
	if err != nil {
		return Narration{}, err
	}

	return Narration{
		Slide:  slide,
		Script: narration,
		Audio:  audio,
	}, nil
}
