// Package model defines the chat-completion capability the pipeline depends
// on for slide text extraction and narration generation, plus the Gemini
// backed production implementation.
package model

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Attachment is an inline image sent with a vision-capable request.
type Attachment struct {
	// MIMEType is the media type of the image, e.g. "image/png".
	MIMEType string

	// Data is the raw encoded image.
	Data []byte
}

// Request describes a single completion call.
type Request struct {
	// System is the optional system instruction.
	System string

	// Prompt is the user prompt.
	Prompt string

	// Image is an optional inline image for vision requests.
	Image fn.Option[Attachment]

	// MaxTokens caps the response length. Zero means provider default.
	MaxTokens int

	// Temperature controls sampling. The zero value is passed through
	// as-is, matching deterministic extraction calls.
	Temperature float32
}

// Completion is the outcome of a successful transport round trip. A request
// that was blocked by the provider's safety layer still yields a Completion,
// with Refusal set and Text empty, so callers can distinguish filtering from
// transport failure.
type Completion struct {
	// Text is the generated text, empty if the request was refused.
	Text string

	// Refusal names the safety/filtering reason when the provider
	// declined to answer, empty otherwise.
	Refusal string
}

// Refused reports whether the provider's safety layer blocked the request.
func (c Completion) Refused() bool {
	return c.Refusal != ""
}

// ContentModel is the completion capability. Transport failures are returned
// as errors tagged retry.Transient; semantic outcomes (including refusals)
// are carried in the Completion.
type ContentModel interface {
	// Complete performs one chat completion, optionally with an image
	// attachment.
	Complete(ctx context.Context, req Request) (Completion, error)
}
