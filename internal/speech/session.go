package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/parlo-dev/parlo/internal/autostop"
	"github.com/parlo-dev/parlo/internal/fsm"
)

// tickInterval balances smooth countdown feedback against busy work.
const tickInterval = 100 * time.Millisecond

// EventKind tags one session lifecycle notification.
type EventKind string

const (
	// EventPartial carries the latest full-utterance hypothesis.
	EventPartial EventKind = "partial"
	// EventCountdown fires during the final warning window before auto-stop.
	EventCountdown EventKind = "countdown"
	// EventFinalized signals captured text is ready for Finalize.
	EventFinalized EventKind = "finalized"
	// EventDiscarded signals the session ended with nothing worth keeping.
	EventDiscarded EventKind = "discarded"
	// EventErrored signals a surfaced recognition failure.
	EventErrored EventKind = "errored"
)

// Event is one notification emitted by the session run loop.
type Event struct {
	Kind      EventKind
	Text      string
	Remaining time.Duration
	Message   string
}

// Config is the per-session snapshot taken at Start. Sessions never re-read
// the live process-wide configuration mid-recording.
type Config struct {
	AutoStop autostop.Config
	Language string
}

type command int

const (
	cmdStop command = iota + 1
	cmdCancel
)

// Session owns one recording attempt from grant acquisition through
// finalization. All mutable session state is written by the run loop
// goroutine; recognizer callbacks reach it through the results channel,
// which is the only concurrency boundary.
type Session struct {
	logger *slog.Logger
	rec    Recognizer
	cfg    Config

	timer   autostop.Timer
	results <-chan Result

	events   chan Event
	commands chan command

	mu         sync.RWMutex
	started    bool
	state      fsm.State
	errMsg     string
	transcript string
	pending    string
	remaining  time.Duration
	countdown  bool
}

// NewSession builds an unstarted session around a recognizer and a
// configuration snapshot. Each session runs at most one recording.
func NewSession(cfg Config, rec Recognizer, logger *slog.Logger) *Session {
	return &Session{
		logger:   logger,
		rec:      rec,
		cfg:      cfg,
		state:    fsm.StateIdle,
		events:   make(chan Event, 64),
		commands: make(chan command, 2),
	}
}

// State returns the current lifecycle state snapshot.
func (s *Session) State() fsm.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ErrorMessage returns the surfaced error text, empty outside Error state.
func (s *Session) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Transcript returns the latest live hypothesis.
func (s *Session) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript
}

// Remaining reports time left before auto-stop, for countdown display.
func (s *Session) Remaining() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remaining
}

// InCountdown reports whether auto-stop is inside its final warning window.
func (s *Session) InCountdown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countdown
}

// Events returns the session notification stream. The channel closes once
// the session reaches a terminal event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Start acquires both capability grants, opens the recognizer, arms the
// auto-stop timer, and moves to recording. It is a one-shot: reuse is
// rejected rather than silently stacking capture taps.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.started = true
	s.errMsg = ""
	s.mu.Unlock()

	if err := s.requestGrants(ctx); err != nil {
		s.fail("permissions not granted")
		close(s.events)
		return err
	}

	results, err := s.rec.Start(ctx)
	if err != nil {
		s.fail("unable to start recognition")
		close(s.events)
		return fmt.Errorf("start recognizer: %w", err)
	}
	s.results = results

	s.mu.Lock()
	s.transcript = ""
	s.pending = ""
	s.transitionLocked(fsm.EventStart)
	s.remaining = s.cfg.AutoStop.ThresholdDuration()
	s.mu.Unlock()

	if s.cfg.AutoStop.Enabled {
		s.timer.Start(time.Now(), s.cfg.AutoStop.ThresholdDuration(), s.cfg.AutoStop.MaxDuration())
	}

	go s.run(ctx)
	return nil
}

// requestGrants runs both capability checks concurrently; both must pass.
func (s *Session) requestGrants(ctx context.Context) error {
	type grant struct {
		granted bool
		err     error
	}

	micCh := make(chan grant, 1)
	recCh := make(chan grant, 1)
	go func() {
		granted, err := s.rec.RequestMicrophone(ctx)
		micCh <- grant{granted: granted, err: err}
	}()
	go func() {
		granted, err := s.rec.RequestRecognition(ctx)
		recCh <- grant{granted: granted, err: err}
	}()

	mic := <-micCh
	rec := <-recCh
	if mic.err != nil {
		return fmt.Errorf("microphone grant: %w", mic.err)
	}
	if rec.err != nil {
		return fmt.Errorf("recognition grant: %w", rec.err)
	}
	if !mic.granted || !rec.granted {
		return ErrPermissionsDenied
	}
	return nil
}

// Stop requests a soft stop: capture ends but the recognizer is left to
// deliver its final hypothesis naturally. Safe from any goroutine.
func (s *Session) Stop() {
	select {
	case s.commands <- cmdStop:
	default:
	}
}

// Cancel requests a hard teardown that discards the session.
func (s *Session) Cancel() {
	select {
	case s.commands <- cmdCancel:
	default:
	}
}

// Finalize returns the captured text exactly once and resets to idle.
// Calls after the first return an empty string.
func (s *Session) Finalize() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := s.pending
	s.pending = ""
	s.transcript = ""
	s.errMsg = ""
	s.transitionLocked(fsm.EventFinalize)
	return text
}

// ClearError explicitly acknowledges a surfaced error.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitionLocked(fsm.EventClear) {
		s.errMsg = ""
	}
}

// run is the session's single-owner event loop. It exits on the first
// terminal outcome and always closes the events channel.
func (s *Session) run(ctx context.Context) {
	defer close(s.events)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	previous := ""
	stopping := false
	discarded := false

	for {
		select {
		case <-ctx.Done():
			s.timer.Stop()
			_ = s.rec.Cancel()
			s.discard()
			s.deliver(Event{Kind: EventDiscarded, Message: "cancelled"})
			return

		case cmd := <-s.commands:
			switch cmd {
			case cmdStop:
				if !stopping {
					stopping = true
					discarded = s.beginStop()
					if discarded {
						return
					}
				}
			case cmdCancel:
				s.timer.Stop()
				_ = s.rec.Cancel()
				s.discard()
				s.deliver(Event{Kind: EventDiscarded, Message: "cancelled"})
				return
			}

		case now := <-ticker.C:
			if stopping || !s.cfg.AutoStop.Enabled {
				continue
			}
			tick := s.timer.Tick(now)
			s.setCountdown(tick.Remaining, tick.Countdown)
			if tick.Countdown && !tick.Fire {
				s.emit(Event{Kind: EventCountdown, Remaining: tick.Remaining})
			}
			if tick.Fire {
				s.logDebug("auto-stop fired", "reason", string(tick.Reason))
				stopping = true
				if s.beginStop() {
					return
				}
			}

		case res, ok := <-s.results:
			if !ok {
				s.finish(stopping)
				return
			}
			if res.Err != nil {
				if s.handleError(res.Err, stopping) {
					return
				}
				continue
			}

			if Changed(res.Text, previous) {
				effective := s.cfg.AutoStop.Effective(utf8.RuneCountInString(res.Text), s.cfg.Language)
				s.timer.Reset(time.Now(), effective)
				s.setCountdown(effective, false)
				previous = res.Text
			}
			s.setTranscript(res.Text)
			s.emit(Event{Kind: EventPartial, Text: res.Text})

			if res.Final && !stopping {
				stopping = true
				if s.beginStop() {
					return
				}
			}
		}
	}
}

// beginStop ends capture while leaving the recognizer to finish naturally.
// It returns true when the session terminated immediately (empty transcript).
func (s *Session) beginStop() bool {
	s.timer.Stop()
	_ = s.rec.Stop()

	if s.Transcript() != "" {
		s.transition(fsm.EventProcess)
		return false
	}

	// Nothing captured: no final hypothesis is worth waiting for.
	_ = s.rec.Cancel()
	s.discard()
	s.deliver(Event{Kind: EventDiscarded})
	return true
}

// finish handles the natural end of the results stream.
func (s *Session) finish(stopped bool) {
	s.timer.Stop()

	text := s.Transcript()
	if text == "" {
		if !stopped {
			_ = s.rec.Stop()
		}
		s.discard()
		s.deliver(Event{Kind: EventDiscarded})
		return
	}

	if !stopped {
		_ = s.rec.Stop()
		s.transition(fsm.EventProcess)
	}

	s.mu.Lock()
	s.pending = text
	s.mu.Unlock()
	s.deliver(Event{Kind: EventFinalized, Text: text})
}

// handleError applies the two-tier suppression policy. It returns true when
// the session terminated.
func (s *Session) handleError(recErr *RecognizerError, stopped bool) bool {
	if !suppressed(recErr) {
		s.logDebug("recognition failed", "domain", recErr.Domain, "code", recErr.Code, "message", recErr.Message)
		s.timer.Stop()
		_ = s.rec.Cancel()
		s.fail(recErr.Message)
		s.deliver(Event{Kind: EventErrored, Message: recErr.Message})
		return true
	}

	s.logDebug("suppressed recognition error", "domain", recErr.Domain, "code", recErr.Code, "message", recErr.Message)

	// A routine error after a soft stop still finalizes whatever was
	// captured; mid-recording it quietly discards the session.
	if stopped && s.Transcript() != "" {
		s.finish(true)
		return true
	}

	s.timer.Stop()
	_ = s.rec.Cancel()
	s.discard()
	s.deliver(Event{Kind: EventDiscarded})
	return true
}

func (s *Session) transition(event fsm.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(event)
}

// transitionLocked applies event through the lifecycle table; an invalid
// transition leaves the state untouched. Callers hold s.mu.
func (s *Session) transitionLocked(event fsm.Event) bool {
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return false
	}
	s.state = next
	return true
}

func (s *Session) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(fsm.EventDiscard)
	s.transcript = ""
	s.remaining = 0
	s.countdown = false
}

func (s *Session) fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(fsm.EventFail)
	s.errMsg = message
	s.remaining = 0
	s.countdown = false
}

func (s *Session) setTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = text
}

func (s *Session) setCountdown(remaining time.Duration, countdown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = remaining
	s.countdown = countdown
}

// emit drops informational events when the subscriber lags.
func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	default:
	}
}

// deliver blocks for terminal events: they must never be lost.
func (s *Session) deliver(event Event) {
	s.events <- event
}

func (s *Session) logDebug(message string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(message, args...)
}
