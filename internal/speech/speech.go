// Package speech routes narration text to the text-to-speech provider that
// matches the resolved presentation language, and owns the resulting audio
// assets. Dutch narration goes to ElevenLabs, English narration to Azure
// Speech; the mapping is fixed for the lifetime of the process.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frankwiersma/PowerPointKaraoke/internal/language"
	"github.com/frankwiersma/PowerPointKaraoke/internal/retry"
)

// ErrNotConfigured indicates that the synthesizer mapped to the requested
// language is missing credentials or a voice id. Configuration errors are
// never retried.
var ErrNotConfigured = errors.New("speech synthesizer not configured")

// Synthesizer converts narration text into an audio clip.
type Synthesizer interface {
	// Name returns the provider name for logging.
	Name() string

	// Synthesize renders the text with the given voice. Transport
	// failures are tagged retry.Transient; missing configuration fails
	// with ErrNotConfigured.
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// voiceBinding pairs a synthesizer with the fixed voice identity used for
// one language.
type voiceBinding struct {
	synth   Synthesizer
	voiceID string
}

// Dispatch maps a resolved presentation language to its synthesizer and
// voice. The mapping is established at construction time and is not
// configurable per call.
type Dispatch struct {
	bindings map[language.Language]voiceBinding
	policy   retry.Policy
	log      *slog.Logger
}

// DispatchConfig holds the per-language bindings for a Dispatch.
type DispatchConfig struct {
	// Dutch synthesizes Dutch narration.
	Dutch Synthesizer

	// DutchVoice is the fixed voice id for Dutch narration.
	DutchVoice string

	// English synthesizes English narration.
	English Synthesizer

	// EnglishVoice is the fixed voice id for English narration.
	EnglishVoice string

	// Policy is the retry schedule for transport failures. Zero value
	// means the default policy.
	Policy retry.Policy

	// Logger receives synthesis diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// NewDispatch creates the language router.
func NewDispatch(cfg DispatchConfig) *Dispatch {
	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Dispatch{
		bindings: map[language.Language]voiceBinding{
			language.Dutch: {
				synth:   cfg.Dutch,
				voiceID: cfg.DutchVoice,
			},
			language.English: {
				synth:   cfg.English,
				voiceID: cfg.EnglishVoice,
			},
		},
		policy: policy,
		log:    log,
	}
}

// Synthesize renders narration in the given language and returns an owned
// audio asset. Missing configuration fails immediately; transport failures
// follow the shared retry schedule.
func (d *Dispatch) Synthesize(ctx context.Context, text string,
	lang language.Language) (*Asset, error) {

	binding, ok := d.bindings[lang]
	if !ok {
		return nil, fmt.Errorf("%w: no synthesizer for language %v",
			ErrNotConfigured, lang)
	}
	if binding.synth == nil || binding.voiceID == "" {
		return nil, fmt.Errorf("%w: language %v", ErrNotConfigured,
			lang)
	}

	d.log.Debug("synthesizing narration",
		"provider", binding.synth.Name(),
		"language", lang.String(),
		"chars", len(text))

	data, err := retry.Do(ctx, d.policy,
		func(ctx context.Context) ([]byte, error) {
			return binding.synth.Synthesize(
				ctx, text, binding.voiceID,
			)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("synthesize %s narration: %w",
			lang, err)
	}

	return NewAsset(data, "audio/mpeg")
}
