// Package doctor runs runtime readiness diagnostics for config, audio, the
// recognition service, and API credentials.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkAudioSelection(cfg.Config))
	checks = append(checks, checkRecognizerReachable(cfg.Config))
	checks = append(checks, checkKeyEnv("openai.key", cfg.Config.OpenAI.APIKeyEnv))
	checks = append(checks, checkKeyEnv("tts.key", cfg.Config.TTS.APIKeyEnv))

	return Report{Checks: checks}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkRecognizerReachable probes the recognition endpoint over HTTP. Any
// HTTP response counts as reachable; websocket services commonly reject
// plain GETs.
func checkRecognizerReachable(cfg config.Config) Check {
	base := strings.TrimSpace(cfg.Recognizer.Endpoint)
	if base == "" {
		return Check{Name: "recognizer.endpoint", Pass: false, Message: "recognizer.endpoint is empty"}
	}
	if strings.HasPrefix(base, "wss://") {
		base = "https://" + strings.TrimPrefix(base, "wss://")
	} else if strings.HasPrefix(base, "ws://") {
		base = "http://" + strings.TrimPrefix(base, "ws://")
	}

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(base)
	if err != nil {
		return Check{Name: "recognizer.endpoint", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	return Check{Name: "recognizer.endpoint", Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", base, resp.StatusCode)}
}

// checkKeyEnv validates that the configured environment variable carries a key.
func checkKeyEnv(name, envVar string) Check {
	if strings.TrimSpace(envVar) == "" {
		return Check{Name: name, Pass: false, Message: "no key environment variable configured"}
	}
	if strings.TrimSpace(os.Getenv(envVar)) == "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is not set", envVar)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is set", envVar)}
}
