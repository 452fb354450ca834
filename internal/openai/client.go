// Package openai is a thin chat-completion client used to generate tutor
// replies. Failures soft-fail into placeholder text so a flaky network never
// breaks the conversation loop.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4"
	defaultTemperature = 0.7

	// FallbackReply is returned whenever reply generation fails.
	FallbackReply = "Sorry, I couldn't generate a response right now. Please try again."
	// MissingKeyReply is returned when no API key is configured.
	MissingKeyReply = "⚠️ OpenAI API key not configured. Please set up your API key."
)

const systemPrompt = "You are a friendly, patient language tutor. In conversations, subtly correct grammar, suggest improved phrasing, and occasionally introduce helpful vocabulary naturally. Keep responses conversational and encouraging. Provide brief explanations when correcting errors, but don't overwhelm the learner."

// Config controls the chat-completion client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// Client talks to an OpenAI-compatible chat-completion API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient applies defaults and returns a ready client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// GenerateReply produces a tutor reply for one user utterance. It never
// returns an error: failures collapse into placeholder text.
func (c *Client) GenerateReply(ctx context.Context, userInput string) string {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return MissingKeyReply
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userInput},
		},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		c.logWarn("encode chat request", "error", err)
		return FallbackReply
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		c.logWarn("build chat request", "error", err)
		return FallbackReply
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logWarn("chat completion failed", "error", err)
		return FallbackReply
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logWarn("chat completion rejected", "status", resp.StatusCode)
		return FallbackReply
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logWarn("decode chat response", "error", err)
		return FallbackReply
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return FallbackReply
	}
	return decoded.Choices[0].Message.Content
}

// ValidateKey probes GET /models and reports whether the key is usable.
func (c *Client) ValidateKey(ctx context.Context) bool {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logWarn("key validation failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) logWarn(message string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(message, args...)
}
