package speech

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/frankwiersma/PowerPointKaraoke/internal/retry"
)

// AzureSpeech synthesizes speech with the Azure Cognitive Services TTS REST
// API. It serves the English voice in the fixed dispatch mapping.
type AzureSpeech struct {
	apiKey   string
	endpoint string
	locale   string
	client   *http.Client
}

// AzureSpeechConfig holds the settings for the Azure Speech client.
type AzureSpeechConfig struct {
	// APIKey is the Ocp-Apim-Subscription-Key credential.
	APIKey string

	// Region is the Azure region, e.g. "westeurope". Ignored when
	// Endpoint is set.
	Region string

	// Endpoint overrides the full synthesis URL, mainly for tests.
	Endpoint string

	// Locale is the xml:lang of the SSML envelope. Empty means en-US.
	Locale string
}

// NewAzureSpeech creates an Azure Speech synthesizer.
func NewAzureSpeech(cfg AzureSpeechConfig) *AzureSpeech {
	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.Region != "" {
		endpoint = fmt.Sprintf(
			"https://%s.tts.speech.microsoft.com/"+
				"cognitiveservices/v1", cfg.Region,
		)
	}
	locale := cfg.Locale
	if locale == "" {
		locale = "en-US"
	}

	return &AzureSpeech{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		locale:   locale,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Name implements Synthesizer.
func (a *AzureSpeech) Name() string {
	return "azure-speech"
}

// Synthesize implements Synthesizer.
func (a *AzureSpeech) Synthesize(ctx context.Context, text,
	voiceID string) ([]byte, error) {

	if a.apiKey == "" || a.endpoint == "" {
		return nil, fmt.Errorf("%w: azure speech key or region "+
			"missing", ErrNotConfigured)
	}

	ssml := fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'>`+
			`<voice xml:lang='%s' name='%s'>%s</voice></speak>`,
		a.locale, a.locale, voiceID, html.EscapeString(text),
	)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.endpoint, strings.NewReader(ssml),
	)
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)
	req.Header.Set(
		"X-Microsoft-OutputFormat", "audio-24khz-96kbitrate-mono-mp3",
	)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, retry.Transient(
			fmt.Errorf("azure speech request: %w", err),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("azure speech status %d: %s",
			resp.StatusCode, msg)

		if retryableStatus(resp.StatusCode) {
			return nil, retry.Transient(err)
		}
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(
			fmt.Errorf("read azure speech audio: %w", err),
		)
	}

	return audio, nil
}

// Ensure AzureSpeech implements Synthesizer.
var _ Synthesizer = (*AzureSpeech)(nil)
