package autostop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEffectiveThresholdAdaptiveDisabled(t *testing.T) {
	got := EffectiveThreshold(3*time.Second, 500, "zh-CN", 60*time.Second, false)
	require.Equal(t, 3*time.Second, got)
}

func TestEffectiveThresholdLongUtteranceBonus(t *testing.T) {
	base := 3 * time.Second
	maxDuration := 60 * time.Second

	require.Equal(t, base, EffectiveThreshold(base, 20, "en-US", maxDuration, true))
	require.Equal(t, base+time.Second, EffectiveThreshold(base, 21, "en-US", maxDuration, true))
}

func TestEffectiveThresholdLanguageBonus(t *testing.T) {
	base := 3 * time.Second
	maxDuration := 60 * time.Second

	tests := []struct {
		language string
		want     time.Duration
	}{
		{"zh-CN", base + 500*time.Millisecond},
		{"ja", base + 500*time.Millisecond},
		{"ko-KR", base + 500*time.Millisecond},
		{"de-DE", base + 300*time.Millisecond},
		{"fi", base + 300*time.Millisecond},
		{"hu-HU", base + 300*time.Millisecond},
		{"en-US", base},
		{"", base},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, EffectiveThreshold(base, 5, tc.language, maxDuration, true), "language %q", tc.language)
	}
}

func TestEffectiveThresholdClampsToMaxDuration(t *testing.T) {
	got := EffectiveThreshold(10*time.Second, 100, "zh", 10*time.Second, true)
	require.Equal(t, 10*time.Second, got)
}

func TestEffectiveThresholdProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := time.Duration(rapid.Int64Range(int64(500*time.Millisecond), int64(10*time.Second)).Draw(rt, "base"))
		maxDuration := time.Duration(rapid.Int64Range(int64(10*time.Second), int64(300*time.Second)).Draw(rt, "max"))
		textLength := rapid.IntRange(0, 4000).Draw(rt, "textLength")
		language := rapid.SampledFrom([]string{"en-US", "zh-CN", "ja", "ko", "de-DE", "fi", "hu", "fr-FR", ""}).Draw(rt, "language")

		got := EffectiveThreshold(base, textLength, language, maxDuration, true)

		if got > maxDuration {
			rt.Errorf("threshold %v exceeds ceiling %v", got, maxDuration)
		}
		if got < base && got != maxDuration {
			rt.Errorf("adaptive threshold %v shrank below base %v without hitting the ceiling", got, base)
		}
		if textLength > longUtteranceChars {
			want := base + time.Second
			if want > maxDuration {
				want = maxDuration
			}
			if got < want {
				rt.Errorf("long utterance threshold %v below base+1s floor %v", got, want)
			}
		}
	})
}

func TestConfigEffectiveUsesOwnBounds(t *testing.T) {
	cfg := Config{Enabled: true, Threshold: 5.0, AdaptiveTimeout: true, MaxRecordingDuration: 120.0}
	require.Equal(t, 6*time.Second, cfg.Effective(50, "en-US"))
	require.Equal(t, 6500*time.Millisecond, cfg.Effective(50, "ja-JP"))
}
