package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jobcraftai/interview-engine/internal/config"
	"github.com/jobcraftai/interview-engine/internal/observability"
)

// HTTPClient implements Synthesizer against a Cartesia-style TTS HTTP API
type HTTPClient struct {
	apiKey       string
	apiURL       string
	modelID      string
	defaultVoice string
	sampleRate   int
	httpClient   *http.Client
}

// synthesisRequest is the request payload for the TTS API
type synthesisRequest struct {
	Text         string  `json:"text"`
	VoiceID      string  `json:"voice_id"`
	ModelID      string  `json:"model_id,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
	SampleRate   int     `json:"sample_rate,omitempty"`
	Speed        float64 `json:"speed,omitempty"`
}

// NewHTTPClient creates a new TTS client from service configuration
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	return &HTTPClient{
		apiKey:       cfg.TTSAPIKey,
		apiURL:       cfg.TTSAPIURL,
		modelID:      cfg.TTSModelID,
		defaultVoice: cfg.TTSVoiceID,
		sampleRate:   cfg.TTSSampleRate,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Synthesize converts text to a playable clip. The returned clip's duration
// is derived from the PCM payload length, so it is exact rather than
// estimated.
func (c *HTTPClient) Synthesize(ctx context.Context, text, voice string) (*Clip, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("speech synthesis is not configured")
	}
	if voice == "" {
		voice = c.defaultVoice
	}

	reqBody := synthesisRequest{
		Text:         text,
		VoiceID:      voice,
		ModelID:      c.modelID,
		OutputFormat: "pcm",
		SampleRate:   c.sampleRate,
		Speed:        1.0,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveSynthesisLatency(time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts API returned status %d", resp.StatusCode)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("tts API returned empty audio data")
	}

	// LINEAR16 mono: 2 bytes per sample
	seconds := float64(len(audioData)) / 2 / float64(c.sampleRate)

	return &Clip{
		Audio:      audioData,
		SampleRate: c.sampleRate,
		Duration:   time.Duration(seconds * float64(time.Second)),
		Text:       text,
	}, nil
}

// Close closes the client and cleans up resources
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
