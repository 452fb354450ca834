// Package autostop implements silence-based recording cutoff: the adaptive
// threshold policy, the countdown timer, and persisted configuration.
package autostop

import "time"

// Clamp bounds applied whenever a custom configuration is stored.
const (
	MinThresholdSeconds = 0.5
	MaxThresholdSeconds = 10.0
	MinDurationSeconds  = 10.0
	MaxDurationSeconds  = 300.0
)

// Config is the immutable auto-stop tuning value shared process-wide.
// Threshold and MaxRecordingDuration are seconds, matching the persisted form.
type Config struct {
	Enabled              bool    `json:"enabled"`
	Threshold            float64 `json:"threshold"`
	AdaptiveTimeout      bool    `json:"adaptiveTimeout"`
	MaxRecordingDuration float64 `json:"maxRecordingDuration"`
}

// Default is the general-conversation preset.
var Default = Config{
	Enabled:              true,
	Threshold:            3.0,
	AdaptiveTimeout:      true,
	MaxRecordingDuration: 60.0,
}

// Quick favors short exchanges with a fixed, aggressive cutoff.
var Quick = Config{
	Enabled:              true,
	Threshold:            1.5,
	AdaptiveTimeout:      false,
	MaxRecordingDuration: 30.0,
}

// Learning gives hesitant speakers extra grace before cutting off.
var Learning = Config{
	Enabled:              true,
	Threshold:            5.0,
	AdaptiveTimeout:      true,
	MaxRecordingDuration: 120.0,
}

// ThresholdDuration returns the base silence threshold as a duration.
func (c Config) ThresholdDuration() time.Duration {
	return secondsToDuration(c.Threshold)
}

// MaxDuration returns the hard recording ceiling as a duration.
func (c Config) MaxDuration() time.Duration {
	return secondsToDuration(c.MaxRecordingDuration)
}

// Clamped returns a copy with threshold and ceiling forced into legal bounds.
func (c Config) Clamped() Config {
	c.Threshold = clamp(c.Threshold, MinThresholdSeconds, MaxThresholdSeconds)
	c.MaxRecordingDuration = clamp(c.MaxRecordingDuration, MinDurationSeconds, MaxDurationSeconds)
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
