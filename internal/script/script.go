// Package script generates per-slide narration with cross-slide continuity.
// Each slide's prompt carries a rolling window of the three most recent
// prior narrations plus an optional one-sentence presentation context that
// is derived from slide 1 and reused for the rest of the document.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frankwiersma/PowerPointKaraoke/internal/model"
	"github.com/frankwiersma/PowerPointKaraoke/internal/retry"
	"github.com/frankwiersma/PowerPointKaraoke/internal/session"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrEmptyScript indicates the model produced no narration for a request
// that was not refused.
var ErrEmptyScript = errors.New("empty narration script")

const (
	// ContextWindowSize is the number of prior narrations included in
	// every generation prompt.
	ContextWindowSize = 3

	// scriptMaxTokens caps the narration response: two to three spoken
	// sentences need little room.
	scriptMaxTokens = 512

	// scriptTemperature keeps the narration lively without wandering
	// off the slide.
	scriptTemperature = 0.7

	// systemPrompt enforces the spoken-word contract.
	systemPrompt = "You are a presentation narrator. Write only the " +
		"words a narrator would say out loud: no stage directions, " +
		"no parentheticals, no markdown, no speaker labels. Keep " +
		"the narration to two or three sentences in the same " +
		"language as the slide content. Flow naturally from the " +
		"previous slides without announcing transitions; never use " +
		"stock phrases like \"moving on\" or \"in this slide\"."
)

// Request describes one narration generation.
type Request struct {
	// Slide is the 1-based index being narrated.
	Slide int

	// TotalSlides is the document's page count, used to frame the
	// opening and closing slides differently.
	TotalSlides int

	// SlideText is the extracted content of the slide.
	SlideText string

	// History is the rolling context window of prior narrations, in
	// ascending slide order.
	History []session.HistoryEntry

	// PresentationContext is the established theme summary, if any.
	PresentationContext fn.Option[string]
}

// Generator produces narration scripts through the content model.
type Generator struct {
	model  model.ContentModel
	policy retry.Policy
	log    *slog.Logger
}

// Config holds the generator dependencies.
type Config struct {
	// Model is the content model used for generation.
	Model model.ContentModel

	// Policy overrides the retry schedule. Zero value means default.
	Policy retry.Policy

	// Logger receives generation diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// New creates a Generator.
func New(cfg Config) *Generator {
	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Generator{
		model:  cfg.Model,
		policy: policy,
		log:    log,
	}
}

// Narration generates the spoken script for one slide. The result is
// flattened to plain text so stray markdown from the model never reaches the
// synthesizer.
func (g *Generator) Narration(ctx context.Context, req Request) (string, error) {
	completion, err := retry.Do(ctx, g.policy,
		func(ctx context.Context) (model.Completion, error) {
			return g.model.Complete(ctx, model.Request{
				System:      systemPrompt,
				Prompt:      buildPrompt(req),
				MaxTokens:   scriptMaxTokens,
				Temperature: scriptTemperature,
			})
		},
	)
	if err != nil {
		return "", fmt.Errorf("narrate slide %d: %w", req.Slide, err)
	}

	narration := PlainText(completion.Text)
	if narration == "" {
		return "", fmt.Errorf("slide %d: %w", req.Slide,
			ErrEmptyScript)
	}

	return narration, nil
}

// SummarizeTheme derives the one-sentence presentation context from slide
// 1's content and its narration. Failures here are expected to be tolerated
// by the caller: the summary only improves continuity, it is not required.
func (g *Generator) SummarizeTheme(ctx context.Context, slideText,
	narration string) (string, error) {

	prompt := fmt.Sprintf(
		"Summarize the theme and tone of this presentation in one "+
			"sentence, based on its first slide and the "+
			"narration written for it.\n\nSlide content:\n%s\n\n"+
			"Narration:\n%s",
		slideText, narration,
	)

	completion, err := retry.Do(ctx, g.policy,
		func(ctx context.Context) (model.Completion, error) {
			return g.model.Complete(ctx, model.Request{
				Prompt:    prompt,
				MaxTokens: 128,
			})
		},
	)
	if err != nil {
		return "", fmt.Errorf("summarize theme: %w", err)
	}

	summary := PlainText(completion.Text)
	if summary == "" {
		return "", ErrEmptyScript
	}

	return summary, nil
}

// buildPrompt composes the user prompt: slide position framing, the
// presentation context, the rolling history window, and the slide content.
func buildPrompt(req Request) string {
	var sb strings.Builder

	switch {
	case req.Slide == 1:
		sb.WriteString(fmt.Sprintf(
			"This is slide 1 of %d, the opening slide. "+
				"Establish the theme of the presentation.\n",
			req.TotalSlides,
		))

	case req.Slide == req.TotalSlides:
		sb.WriteString(fmt.Sprintf(
			"This is slide %d of %d, the final slide. Bring "+
				"the presentation to a close.\n",
			req.Slide, req.TotalSlides,
		))

	default:
		sb.WriteString(fmt.Sprintf(
			"This is slide %d of %d.\n",
			req.Slide, req.TotalSlides,
		))
	}

	req.PresentationContext.WhenSome(func(theme string) {
		sb.WriteString(fmt.Sprintf(
			"\nPresentation theme: %s\n", theme,
		))
	})

	if len(req.History) > 0 {
		sb.WriteString("\nNarration so far:\n")
		for _, entry := range req.History {
			sb.WriteString(fmt.Sprintf("Slide %d: %s\n",
				entry.Slide, entry.Narration))
		}
	}

	sb.WriteString(fmt.Sprintf(
		"\nCurrent slide content:\n%s\n\nWrite the narration for "+
			"the current slide.", req.SlideText,
	))

	return sb.String()
}
