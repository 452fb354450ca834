package doctor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parlo-dev/parlo/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckKeyEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_KEY", "sk-something")

	check := checkKeyEnv("openai.key", "TEST_DOCTOR_KEY")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "TEST_DOCTOR_KEY is set")

	t.Setenv("TEST_DOCTOR_KEY", "")
	check = checkKeyEnv("openai.key", "TEST_DOCTOR_KEY")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "is not set")

	check = checkKeyEnv("openai.key", "")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "no key environment variable")
}

func TestCheckRecognizerReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Websocket endpoints reject plain GETs; reachability is what counts.
		w.WriteHeader(http.StatusUpgradeRequired)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Recognizer.Endpoint = server.URL

	check := checkRecognizerReachable(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "reachable at")
}

func TestCheckRecognizerReachableConvertsWebsocketScheme(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Recognizer.Endpoint = "ws://" + strings.TrimPrefix(server.URL, "http://")

	check := checkRecognizerReachable(cfg)
	require.True(t, check.Pass)
}

func TestCheckRecognizerUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Recognizer.Endpoint = "http://127.0.0.1:1"

	check := checkRecognizerReachable(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "request failed")
}

func TestCheckRecognizerEmptyEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Recognizer.Endpoint = ""

	check := checkRecognizerReachable(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "recognizer.endpoint is empty")
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestRunCollectsAllChecks(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ELEVENLABS_API_KEY", "")

	cfg := config.Default()
	cfg.Recognizer.Endpoint = "http://127.0.0.1:1"

	report := Run(config.Loaded{Path: "/tmp/config.json", Config: cfg})

	names := make(map[string]bool)
	for _, check := range report.Checks {
		names[check.Name] = check.Pass
	}
	require.True(t, names["config"])
	require.Contains(t, names, "audio.device")
	require.Contains(t, names, "recognizer.endpoint")
	require.True(t, names["openai.key"])
	require.False(t, names["tts.key"])
	require.False(t, report.OK())
}
