package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	endpoint := strings.TrimSpace(cfg.Recognizer.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("recognizer.endpoint must not be empty")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("recognizer.endpoint is not a valid URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("recognizer.endpoint scheme must be one of: http, https, ws, wss")
	}
	if strings.TrimSpace(cfg.Recognizer.Language) == "" {
		return nil, fmt.Errorf("recognizer.language must not be empty")
	}

	if cfg.OpenAI.Temperature < 0 || cfg.OpenAI.Temperature > 2 {
		return nil, fmt.Errorf("openai.temperature must be within [0, 2]")
	}
	if strings.TrimSpace(cfg.OpenAI.APIKeyEnv) == "" {
		warnings = append(warnings, Warning{Message: "openai.api_key_env is empty; replies will use the missing-key placeholder"})
	}

	if cfg.TTS.Stability < 0 || cfg.TTS.Stability > 1 {
		return nil, fmt.Errorf("tts.stability must be within [0, 1]")
	}
	if cfg.TTS.SimilarityBoost < 0 || cfg.TTS.SimilarityBoost > 1 {
		return nil, fmt.Errorf("tts.similarity_boost must be within [0, 1]")
	}
	if strings.TrimSpace(cfg.TTS.Voice) == "" {
		return nil, fmt.Errorf("tts.voice must not be empty")
	}
	if strings.TrimSpace(cfg.TTS.APIKeyEnv) == "" {
		warnings = append(warnings, Warning{Message: "tts.api_key_env is empty; replies will stay silent"})
	}

	return warnings, nil
}
