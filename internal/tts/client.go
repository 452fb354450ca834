// Package tts synthesizes tutor replies through an ElevenLabs-compatible API
// and plays them back as raw PCM.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL         = "https://api.elevenlabs.io"
	defaultModel           = "eleven_multilingual_v2"
	defaultStability       = 0.6
	defaultSimilarityBoost = 0.75

	// pcmFormat matches the audio package's 16kHz mono s16 playback path.
	pcmFormat = "pcm_16000"
)

// Config controls the synthesis client.
type Config struct {
	BaseURL         string
	APIKey          string
	Voice           string
	Model           string
	Stability       float64
	SimilarityBoost float64
}

// Client requests speech synthesis over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient applies defaults and returns a ready client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Stability == 0 {
		cfg.Stability = defaultStability
	}
	if cfg.SimilarityBoost == 0 {
		cfg.SimilarityBoost = defaultSimilarityBoost
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to 16kHz mono s16 PCM.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errors.New("Eleven Labs API key not configured")
	}
	if strings.TrimSpace(c.cfg.Voice) == "" {
		return nil, errors.New("voice id is not configured")
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.cfg.Model,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Voice), pcmFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Eleven Labs API Error: Status code %d", resp.StatusCode)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("synthesis returned no audio")
	}
	return pcm, nil
}
