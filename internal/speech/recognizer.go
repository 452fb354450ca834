// Package speech coordinates one recording session: permission grants,
// hypothesis ingestion, silence-based auto-stop, and finalization.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionsDenied indicates a microphone or recognition grant was refused.
	ErrPermissionsDenied = errors.New("permissions not granted")
	// ErrSessionActive indicates Start was called on a session already consumed.
	ErrSessionActive = errors.New("recognition session already started")
	// ErrRecognizerUnavailable indicates the recognition service cannot be used.
	ErrRecognizerUnavailable = errors.New("recognition service unavailable")
)

// Result is one asynchronous recognizer callback: either a full-utterance
// hypothesis (latest supersedes previous) or a terminal error.
type Result struct {
	Text  string
	Final bool
	Err   *RecognizerError
}

// Recognizer is the external speech capability the session drives. Results
// are delivered in arrival order on the returned channel, which closes when
// the recognizer finishes naturally after Stop or dies after Cancel.
type Recognizer interface {
	RequestMicrophone(ctx context.Context) (bool, error)
	RequestRecognition(ctx context.Context) (bool, error)
	Start(ctx context.Context) (<-chan Result, error)
	Stop() error
	Cancel() error
}

// ErrorDomain is the domain tag attached to recognizer-service errors.
const ErrorDomain = "recognizer"

// Recognizer error codes carried on the wire. Cancellation and no-speech
// codes are routine and never surfaced to the user.
const (
	CodeCancelledPrimary   = 216
	CodeCancelledSecondary = 203
	CodeNoSpeech           = 1107
	CodeTimeoutShort       = 300
	CodeTimeoutMedium      = 301
	CodeTimeoutLong        = 302
)

// RecognizerError is a classified failure reported by the speech service.
type RecognizerError struct {
	Domain  string
	Code    int
	Message string
}

func (e *RecognizerError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Domain, e.Code, e.Message)
}

// suppressed reports whether an error is routine noise (user released the
// mic with nothing said, stream cancelled) rather than a real failure.
// Code classification applies to known recognizer domains; the description
// substring check catches services that report inconsistent codes.
func suppressed(err *RecognizerError) bool {
	if err == nil {
		return false
	}

	if err.Domain == ErrorDomain || err.Domain == "speech" {
		switch err.Code {
		case CodeCancelledPrimary, CodeCancelledSecondary,
			CodeNoSpeech, CodeTimeoutShort, CodeTimeoutMedium, CodeTimeoutLong:
			return true
		}
	}

	message := strings.ToLower(err.Message)
	return strings.Contains(message, "no speech") ||
		strings.Contains(message, "cancelled") ||
		strings.Contains(message, "timeout")
}
