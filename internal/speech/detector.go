package speech

import "strings"

// Changed reports whether a new hypothesis constitutes meaningful activity.
// Growth always counts; a same-length rewrite counts as a correction;
// shrinkage and formatting-only churn do not, so recognizer self-correction
// over a static utterance cannot reset the silence clock indefinitely.
func Changed(newText, previousText string) bool {
	normalizedNew := strings.TrimSpace(newText)
	normalizedPrevious := strings.TrimSpace(previousText)

	switch {
	case len(normalizedNew) > len(normalizedPrevious):
		return true
	case len(normalizedNew) < len(normalizedPrevious):
		return false
	default:
		return normalizedNew != normalizedPrevious && normalizedNew != ""
	}
}
