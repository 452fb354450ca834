package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSynthesizeHappyPath(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/text-to-speech/voice-123", r.URL.Path)
		require.Equal(t, "pcm_16000", r.URL.Query().Get("output_format"))
		require.Equal(t, "xi-secret", r.Header.Get("xi-api-key"))

		var req synthesisRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Guten Tag!", req.Text)
		require.Equal(t, "eleven_multilingual_v2", req.ModelID)
		require.InDelta(t, 0.6, req.VoiceSettings.Stability, 0.001)
		require.InDelta(t, 0.75, req.VoiceSettings.SimilarityBoost, 0.001)

		_, _ = w.Write(pcm)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "xi-secret", Voice: "voice-123"})
	got, err := client.Synthesize(context.Background(), "Guten Tag!")
	require.NoError(t, err)
	require.Equal(t, pcm, got)
}

func TestSynthesizeWithoutKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused", Voice: "voice-123"})
	_, err := client.Synthesize(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not configured")
}

func TestSynthesizeWithoutVoice(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused", APIKey: "xi-secret"})
	_, err := client.Synthesize(context.Background(), "hello")
	require.Error(t, err)
}

func TestSynthesizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "xi-secret", Voice: "voice-123"})
	_, err := client.Synthesize(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestSynthesizeEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "xi-secret", Voice: "voice-123"})
	_, err := client.Synthesize(context.Background(), "hello")
	require.Error(t, err)
}
