package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/frankwiersma/PowerPointKaraoke/internal/retry"
	"google.golang.org/genai"
)

// GeminiConfig holds the settings for the Gemini-backed content model.
type GeminiConfig struct {
	// APIKey is the Gemini API key.
	APIKey string

	// Model is the model name, e.g. "gemini-2.5-flash".
	Model string
}

// Gemini is the production ContentModel on top of the Gemini API. It
// supports both text-only and vision requests through the same entry point.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini content model.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  cfg.Model,
	}, nil
}

// Complete implements ContentModel.
func (g *Gemini) Complete(ctx context.Context,
	req Request) (Completion, error) {

	parts := []*genai.Part{{Text: req.Prompt}}
	req.Image.WhenSome(func(att Attachment) {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: att.MIMEType,
				Data:     att.Data,
			},
		})
	})

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: parts,
	}}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}

	resp, err := g.client.Models.GenerateContent(
		ctx, g.model, contents, cfg,
	)
	if err != nil {
		// The SDK folds rate limits and server errors into the
		// returned error; all of them are worth retrying.
		return Completion{}, retry.Transient(
			fmt.Errorf("gemini generate content: %w", err),
		)
	}

	// A blocked prompt arrives as feedback rather than an error.
	if resp.PromptFeedback != nil &&
		resp.PromptFeedback.BlockReason != "" {

		return Completion{
			Refusal: string(resp.PromptFeedback.BlockReason),
		}, nil
	}

	if len(resp.Candidates) == 0 {
		return Completion{}, nil
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return Completion{Refusal: string(cand.FinishReason)}, nil
	}
	if cand.Content == nil {
		return Completion{}, nil
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}

	return Completion{Text: strings.TrimSpace(sb.String())}, nil
}

// Ensure Gemini implements ContentModel.
var _ ContentModel = (*Gemini)(nil)
