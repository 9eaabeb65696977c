package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/frankwiersma/PowerPointKaraoke/internal/retry"
)

// defaultElevenLabsURL is the base endpoint of the ElevenLabs TTS API.
const defaultElevenLabsURL = "https://api.elevenlabs.io/v1"

// ElevenLabs synthesizes speech with the ElevenLabs REST API. It serves the
// Dutch voice in the fixed dispatch mapping.
type ElevenLabs struct {
	apiKey  string
	baseURL string
	modelID string
	client  *http.Client
}

// ElevenLabsConfig holds the settings for the ElevenLabs client.
type ElevenLabsConfig struct {
	// APIKey is the xi-api-key credential.
	APIKey string

	// BaseURL overrides the API endpoint, mainly for tests. Empty means
	// the public endpoint.
	BaseURL string

	// ModelID selects the TTS model. Empty means the multilingual
	// default.
	ModelID string
}

// NewElevenLabs creates an ElevenLabs synthesizer.
func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabs {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultElevenLabsURL
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}

	return &ElevenLabs{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		modelID: modelID,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Name implements Synthesizer.
func (e *ElevenLabs) Name() string {
	return "elevenlabs"
}

// ttsRequest is the JSON body of a text-to-speech call.
type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize implements Synthesizer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text,
	voiceID string) ([]byte, error) {

	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: elevenlabs api key missing",
			ErrNotConfigured)
	}

	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: e.modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", e.baseURL, voiceID)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, retry.Transient(
			fmt.Errorf("elevenlabs request: %w", err),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("elevenlabs status %d: %s",
			resp.StatusCode, msg)

		if retryableStatus(resp.StatusCode) {
			return nil, retry.Transient(err)
		}
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(
			fmt.Errorf("read elevenlabs audio: %w", err),
		)
	}

	return audio, nil
}

// retryableStatus reports whether an HTTP status is worth retrying: rate
// limiting and server-side failures.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Ensure ElevenLabs implements Synthesizer.
var _ Synthesizer = (*ElevenLabs)(nil)
