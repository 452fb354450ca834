// Package config resolves, parses, validates, and defaults parlo configuration.
package config

// Config is the fully materialized runtime configuration used by parlo.
type Config struct {
	Recognizer RecognizerConfig `json:"recognizer"`
	OpenAI     OpenAIConfig     `json:"openai"`
	TTS        TTSConfig        `json:"tts"`
	Audio      AudioConfig      `json:"audio"`
}

// RecognizerConfig points at the streaming speech-recognition service.
// APIKeyEnv is optional: self-hosted recognizers usually run keyless.
type RecognizerConfig struct {
	Endpoint  string `json:"endpoint"`
	Language  string `json:"language"`
	Model     string `json:"model"`
	APIKeyEnv string `json:"api_key_env"`
}

// OpenAIConfig controls reply generation. The API key itself is never stored
// in the file; APIKeyEnv names the environment variable that carries it.
type OpenAIConfig struct {
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	APIKeyEnv   string  `json:"api_key_env"`
	Temperature float64 `json:"temperature"`
}

// TTSConfig controls reply synthesis.
type TTSConfig struct {
	BaseURL         string  `json:"base_url"`
	Voice           string  `json:"voice"`
	Model           string  `json:"model"`
	APIKeyEnv       string  `json:"api_key_env"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string `json:"input"`
	Fallback string `json:"fallback"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Message string
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Recognizer: RecognizerConfig{
			Endpoint: "http://localhost:9000",
			Language: "en-US",
			Model:    "general",
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.7,
		},
		TTS: TTSConfig{
			BaseURL:         "https://api.elevenlabs.io",
			Voice:           "21m00Tcm4TlvDq8ikWAM",
			Model:           "eleven_multilingual_v2",
			APIKeyEnv:       "ELEVENLABS_API_KEY",
			Stability:       0.6,
			SimilarityBoost: 0.75,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
	}
}
