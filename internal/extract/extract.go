// Package extract turns a slide into text: it rasters the page, asks the
// vision model to read it, and falls back to the document's embedded text
// layer when the model's safety filter refuses the image.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frankwiersma/PowerPointKaraoke/internal/model"
	"github.com/frankwiersma/PowerPointKaraoke/internal/render"
	"github.com/frankwiersma/PowerPointKaraoke/internal/retry"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrContentFilteredNoFallback indicates the vision model refused
	// the slide and the page has no embedded text to fall back on.
	ErrContentFilteredNoFallback = errors.New(
		"content filtered and no embedded text fallback",
	)

	// ErrEmptyModelResponse indicates the model returned no text for a
	// request that was not refused.
	ErrEmptyModelResponse = errors.New("empty model response")
)

const (
	// renderScale is the raster scale factor for extraction. Slides are
	// rendered at twice the native resolution so small labels survive.
	renderScale = 2.0

	// extractPrompt is the instruction sent with every slide image.
	extractPrompt = "Extract all visible text from this presentation " +
		"slide. Preserve the structure: keep headings, bullet " +
		"points and table contents in reading order. Return only " +
		"the extracted text."

	// extractMaxTokens caps the extraction response.
	extractMaxTokens = 2048
)

// Extractor reads slide content through the vision model.
type Extractor struct {
	model  model.ContentModel
	policy retry.Policy
	log    *slog.Logger
}

// Config holds the extractor dependencies.
type Config struct {
	// Model is the vision-capable content model.
	Model model.ContentModel

	// Policy overrides the retry schedule. Zero value means default.
	Policy retry.Policy

	// Logger receives extraction diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Extractor{
		model:  cfg.Model,
		policy: policy,
		log:    log,
	}
}

// SlideText extracts the text of one slide. Transport failures are retried
// on the shared schedule; a safety refusal falls back to the page's embedded
// text layer; an empty fallback fails with ErrContentFilteredNoFallback.
func (e *Extractor) SlideText(ctx context.Context, doc render.Document,
	slide int) (string, error) {

	img, err := doc.RenderPage(ctx, slide, renderScale)
	if err != nil {
		return "", fmt.Errorf("render slide %d: %w", slide, err)
	}

	completion, err := retry.Do(ctx, e.policy,
		func(ctx context.Context) (model.Completion, error) {
			return e.model.Complete(ctx, model.Request{
				Prompt: extractPrompt,
				Image: fn.Some(model.Attachment{
					MIMEType: "image/png",
					Data:     img,
				}),
				MaxTokens: extractMaxTokens,
			})
		},
	)
	if err != nil {
		return "", fmt.Errorf("extract slide %d: %w", slide, err)
	}

	if completion.Refused() {
		e.log.Warn("extraction refused, falling back to embedded "+
			"text", "slide", slide,
			"reason", completion.Refusal)

		return e.rawFallback(ctx, doc, slide)
	}

	if strings.TrimSpace(completion.Text) == "" {
		return "", fmt.Errorf("slide %d: %w", slide,
			ErrEmptyModelResponse)
	}

	return completion.Text, nil
}

// rawFallback pulls the embedded text layer for a refused slide.
func (e *Extractor) rawFallback(ctx context.Context, doc render.Document,
	slide int) (string, error) {

	raw, err := doc.RawText(ctx, slide)
	if err != nil {
		return "", fmt.Errorf("raw text fallback for slide %d: %w",
			slide, err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("slide %d: %w", slide,
			ErrContentFilteredNoFallback)
	}

	return raw, nil
}
