package tts

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Synthesizer converts text to PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player renders PCM to the speakers.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

// Speaker synthesizes and plays a reply as one blocking operation. Speak
// reports success as a boolean and keeps the last failure readable, so a
// broken voice never interrupts the text conversation.
type Speaker struct {
	synth  Synthesizer
	player Player
	logger *slog.Logger

	speaking atomic.Bool

	mu      sync.Mutex
	lastErr string
}

// NewSpeaker wires a synthesizer to a player.
func NewSpeaker(synth Synthesizer, player Player, logger *slog.Logger) *Speaker {
	return &Speaker{synth: synth, player: player, logger: logger}
}

// IsPlaying reports whether a reply is being synthesized or rendered.
// Recording is refused while this is true.
func (s *Speaker) IsPlaying() bool {
	return s.speaking.Load()
}

// LastError returns the most recent failure text, empty after a success.
func (s *Speaker) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Speak blocks until the reply finished playing. It returns false on any
// failure and records the reason.
func (s *Speaker) Speak(ctx context.Context, text string) bool {
	if text == "" {
		return false
	}
	if !s.speaking.CompareAndSwap(false, true) {
		s.setErr("another reply is still playing")
		return false
	}
	defer s.speaking.Store(false)

	pcm, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.logWarn("synthesis failed", "error", err)
		s.setErr(err.Error())
		return false
	}

	if err := s.player.Play(ctx, pcm); err != nil {
		s.logWarn("playback failed", "error", err)
		s.setErr(err.Error())
		return false
	}

	s.setErr("")
	return true
}

func (s *Speaker) setErr(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = message
}

func (s *Speaker) logWarn(message string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(message, args...)
}
