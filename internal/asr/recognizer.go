package asr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/parlo-dev/parlo/internal/audio"
	"github.com/parlo-dev/parlo/internal/speech"
)

// capturer is the slice of audio.Capture the recognizer needs.
type capturer interface {
	Chunks() <-chan []byte
	Stop() error
}

// Recognizer bridges Pulse capture and the websocket stream into the
// speech.Recognizer contract. One Recognizer backs one recording.
type Recognizer struct {
	cfg      Config
	input    string
	fallback string
	logger   *slog.Logger

	selectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
	startCapture func(ctx context.Context, device audio.Device) (capturer, error)
	dial         func(ctx context.Context, cfg Config) (*Stream, error)

	mu        sync.Mutex
	selection *audio.Selection
	capture   capturer
	stream    *Stream
	done      chan struct{}

	cancelled atomic.Bool
}

// NewRecognizer builds a recognizer for one recording attempt. The input and
// fallback terms follow the audio device selection policy.
func NewRecognizer(cfg Config, input, fallback string, logger *slog.Logger) *Recognizer {
	return &Recognizer{
		cfg:          cfg,
		input:        input,
		fallback:     fallback,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		startCapture: func(ctx context.Context, device audio.Device) (capturer, error) {
			return audio.StartCapture(ctx, device)
		},
		dial: Dial,
		done: make(chan struct{}),
	}
}

// RequestMicrophone resolves a usable capture device. A resolvable, unmuted
// device is parlo's equivalent of a granted microphone.
func (r *Recognizer) RequestMicrophone(ctx context.Context) (bool, error) {
	selection, err := r.selectDevice(ctx, r.input, r.fallback)
	if err != nil {
		return false, err
	}
	if selection.Warning != "" && r.logger != nil {
		r.logger.Warn("audio device fallback", "warning", selection.Warning)
	}

	r.mu.Lock()
	r.selection = &selection
	r.mu.Unlock()
	return true, nil
}

// RequestRecognition validates the recognition endpoint configuration.
func (r *Recognizer) RequestRecognition(_ context.Context) (bool, error) {
	if _, err := buildListenURL(r.cfg); err != nil {
		return false, fmt.Errorf("%w: %v", speech.ErrRecognizerUnavailable, err)
	}
	return true, nil
}

// Start opens capture and the websocket stream and returns the result feed.
func (r *Recognizer) Start(ctx context.Context) (<-chan speech.Result, error) {
	r.mu.Lock()
	selection := r.selection
	r.mu.Unlock()
	if selection == nil {
		sel, err := r.selectDevice(ctx, r.input, r.fallback)
		if err != nil {
			return nil, fmt.Errorf("select capture device: %w", err)
		}
		selection = &sel
	}

	capture, err := r.startCapture(ctx, selection.Device)
	if err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}

	stream, err := r.dial(ctx, r.cfg)
	if err != nil {
		_ = capture.Stop()
		return nil, err
	}

	r.mu.Lock()
	r.capture = capture
	r.stream = stream
	r.mu.Unlock()

	results := make(chan speech.Result, 64)
	go r.pump(capture, stream)
	go r.translate(stream, results)
	return results, nil
}

// Stop ends capture softly; the service flushes its final hypothesis and the
// result feed closes on its own.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	capture := r.capture
	r.mu.Unlock()
	if capture != nil {
		return capture.Stop()
	}
	return nil
}

// Cancel tears everything down without waiting for final hypotheses.
func (r *Recognizer) Cancel() error {
	if !r.cancelled.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)

	r.mu.Lock()
	capture := r.capture
	stream := r.stream
	r.mu.Unlock()

	if capture != nil {
		_ = capture.Stop()
	}
	if stream != nil {
		_ = stream.Close()
	}
	return nil
}

// pump forwards PCM chunks until capture ends, then closes the audio side.
func (r *Recognizer) pump(capture capturer, stream *Stream) {
	for chunk := range capture.Chunks() {
		if err := stream.SendAudio(chunk); err != nil {
			r.logDebug("audio send failed", "error", err)
			break
		}
	}
	_ = stream.CloseSend()
}

// translate maps stream events to speech results and closes the feed once the
// stream winds down. Transport failures after a deliberate cancel are noise.
func (r *Recognizer) translate(stream *Stream, results chan<- speech.Result) {
	defer close(results)

	sawError := false
	for ev := range stream.Events() {
		res := speech.Result{Text: ev.Text, Final: ev.Final, Err: ev.Err}
		if ev.Err != nil {
			sawError = true
		}
		select {
		case results <- res:
		case <-r.done:
			return
		}
	}

	if err := stream.Wait(); err != nil && !sawError && !r.cancelled.Load() {
		recErr := &speech.RecognizerError{Domain: "transport", Message: err.Error()}
		select {
		case results <- speech.Result{Err: recErr}:
		case <-r.done:
		}
	}
}

func (r *Recognizer) logDebug(message string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Debug(message, args...)
}
