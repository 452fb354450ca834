package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/parlo-dev/parlo/internal/fsm"
	"github.com/parlo-dev/parlo/internal/ipc"
	"github.com/parlo-dev/parlo/internal/speech"
)

var (
	// ErrAssistantSpeaking rejects recording while a reply is still playing.
	ErrAssistantSpeaking = errors.New("assistant reply is still playing")
	// ErrTurnInProgress rejects overlapping turns.
	ErrTurnInProgress = errors.New("a turn is already in progress")
)

// Listener is the slice of speech.Session the orchestrator drives. A fresh
// listener backs every turn.
type Listener interface {
	Start(ctx context.Context) error
	Events() <-chan speech.Event
	Stop()
	Cancel()
	Finalize() string
	State() fsm.State
	Transcript() string
	ErrorMessage() string
	ClearError()
}

// Replier generates the tutor's answer to one utterance.
type Replier interface {
	GenerateReply(ctx context.Context, userInput string) string
}

// Speaker voices a reply and gates recording while it plays.
type Speaker interface {
	Speak(ctx context.Context, text string) bool
	IsPlaying() bool
	LastError() string
}

// Orchestrator runs conversation turns: capture an utterance, append it,
// generate and voice a reply. It also answers ipc control commands against
// the live turn.
type Orchestrator struct {
	newListener func() Listener
	replier     Replier
	speaker     Speaker
	logger      *slog.Logger

	mu         sync.Mutex
	messages   []Message
	session    Listener
	turnActive bool
}

// NewOrchestrator wires the turn collaborators together.
func NewOrchestrator(newListener func() Listener, replier Replier, speaker Speaker, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		newListener: newListener,
		replier:     replier,
		speaker:     speaker,
		logger:      logger,
	}
}

// Messages returns a snapshot of the conversation log.
func (o *Orchestrator) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// StartTurn opens a new recording unless a reply is playing or a turn is
// already live.
func (o *Orchestrator) StartTurn(ctx context.Context) (Listener, error) {
	o.mu.Lock()
	if o.turnActive {
		o.mu.Unlock()
		return nil, ErrTurnInProgress
	}
	if o.speaker.IsPlaying() {
		o.mu.Unlock()
		return nil, ErrAssistantSpeaking
	}
	session := o.newListener()
	o.session = session
	o.turnActive = true
	o.mu.Unlock()

	if err := session.Start(ctx); err != nil {
		o.endTurn()
		return nil, err
	}
	return session, nil
}

// RunTurn drives one full turn to completion. onEvent, when non-nil, observes
// every session event for display. The returned boolean reports whether an
// assistant message was produced; a discarded recording is not an error.
func (o *Orchestrator) RunTurn(ctx context.Context, onEvent func(speech.Event)) (Message, bool, error) {
	session, err := o.StartTurn(ctx)
	if err != nil {
		return Message{}, false, err
	}
	defer o.endTurn()

	var terminal speech.Event
	for ev := range session.Events() {
		if onEvent != nil {
			onEvent(ev)
		}
		switch ev.Kind {
		case speech.EventFinalized, speech.EventDiscarded, speech.EventErrored:
			terminal = ev
		}
	}

	switch terminal.Kind {
	case speech.EventFinalized:
		return o.completeTurn(ctx, session.Finalize())
	case speech.EventErrored:
		session.ClearError()
		return Message{}, false, fmt.Errorf("recognition failed: %s", terminal.Message)
	default:
		return Message{}, false, nil
	}
}

// completeTurn appends the utterance, generates the reply behind a loading
// placeholder, then voices it.
func (o *Orchestrator) completeTurn(ctx context.Context, utterance string) (Message, bool, error) {
	if utterance == "" {
		return Message{}, false, nil
	}

	o.append(newUserMessage(utterance))
	placeholder := newLoadingMessage()
	o.append(placeholder)

	reply := o.replier.GenerateReply(ctx, utterance)
	assistant := o.resolve(placeholder.ID, reply)

	if !o.speaker.Speak(ctx, reply) {
		o.logWarn("reply playback skipped", "reason", o.speaker.LastError())
	}
	return assistant, true, nil
}

// Handle answers ipc control commands against the live turn.
func (o *Orchestrator) Handle(_ context.Context, req ipc.Request) ipc.Response {
	o.mu.Lock()
	session := o.session
	active := o.turnActive
	o.mu.Unlock()

	switch req.Command {
	case "status":
		state := fsm.StateIdle
		transcript := ""
		if active && session != nil {
			state = session.State()
			transcript = session.Transcript()
		}
		return ipc.Response{OK: true, State: string(state), Transcript: transcript}
	case "stop":
		if !active || session == nil {
			return ipc.Response{OK: false, Error: "no active recording"}
		}
		session.Stop()
		return ipc.Response{OK: true, State: string(session.State())}
	case "cancel":
		if !active || session == nil {
			return ipc.Response{OK: false, Error: "no active recording"}
		}
		session.Cancel()
		return ipc.Response{OK: true, State: string(session.State())}
	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (o *Orchestrator) endTurn() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turnActive = false
	o.session = nil
}

func (o *Orchestrator) append(msg Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
}

// resolve swaps the loading placeholder for the finished assistant message.
func (o *Orchestrator) resolve(placeholderID uuid.UUID, text string) Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.messages {
		if o.messages[i].ID == placeholderID {
			o.messages[i].Text = text
			o.messages[i].Loading = false
			return o.messages[i]
		}
	}
	assistant := newAssistantMessage(text)
	o.messages = append(o.messages, assistant)
	return assistant
}

func (o *Orchestrator) logWarn(message string, args ...any) {
	if o.logger == nil {
		return
	}
	o.logger.Warn(message, args...)
}
