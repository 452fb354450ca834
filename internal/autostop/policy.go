package autostop

import (
	"strings"
	"time"
)

const longUtteranceChars = 20

// EffectiveThreshold adapts the base silence threshold to the utterance in
// progress. Longer hypotheses and languages with slower recognizer
// convergence get extra grace; the result never exceeds maxDuration.
func EffectiveThreshold(base time.Duration, textLength int, language string, maxDuration time.Duration, adaptive bool) time.Duration {
	if !adaptive {
		return base
	}

	threshold := base
	if textLength > longUtteranceChars {
		threshold += time.Second
	}
	threshold += languageBonus(language)

	if threshold > maxDuration {
		return maxDuration
	}
	return threshold
}

// languageBonus keys off the ISO prefix: logographic scripts need more
// recognizer settling time, heavy-morphology languages slightly less.
func languageBonus(language string) time.Duration {
	code := strings.ToLower(language)
	if len(code) > 2 {
		code = code[:2]
	}
	switch code {
	case "zh", "ja", "ko":
		return 500 * time.Millisecond
	case "de", "fi", "hu":
		return 300 * time.Millisecond
	default:
		return 0
	}
}

// Effective applies the policy using the config's own base and ceiling.
func (c Config) Effective(textLength int, language string) time.Duration {
	return EffectiveThreshold(c.ThresholdDuration(), textLength, language, c.MaxDuration(), c.AdaptiveTimeout)
}
