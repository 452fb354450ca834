package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parlo-dev/parlo/internal/fsm"
	"github.com/parlo-dev/parlo/internal/ipc"
	"github.com/parlo-dev/parlo/internal/speech"
)

type fakeListener struct {
	startErr  error
	events    chan speech.Event
	finalText string
	state     fsm.State
	live      string
	errMsg    string

	mu          sync.Mutex
	stopCalls   int
	cancelCalls int
	clearCalls  int
	finalized   bool
}

func newFakeListener(events ...speech.Event) *fakeListener {
	ch := make(chan speech.Event, len(events)+1)
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &fakeListener{events: ch, state: fsm.StateRecording}
}

func (f *fakeListener) Start(context.Context) error { return f.startErr }

func (f *fakeListener) Events() <-chan speech.Event { return f.events }

func (f *fakeListener) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
}

func (f *fakeListener) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
}

func (f *fakeListener) Finalize() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalized {
		return ""
	}
	f.finalized = true
	return f.finalText
}

func (f *fakeListener) State() fsm.State     { return f.state }
func (f *fakeListener) Transcript() string   { return f.live }
func (f *fakeListener) ErrorMessage() string { return f.errMsg }

func (f *fakeListener) ClearError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
}

type replierFunc func(ctx context.Context, userInput string) string

func (f replierFunc) GenerateReply(ctx context.Context, userInput string) string {
	return f(ctx, userInput)
}

type fakeSpeaker struct {
	playing bool
	ok      bool
	lastErr string

	mu     sync.Mutex
	spoken []string
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return f.ok
}

func (f *fakeSpeaker) IsPlaying() bool   { return f.playing }
func (f *fakeSpeaker) LastError() string { return f.lastErr }

func orchestratorWith(listener *fakeListener, reply string, speaker *fakeSpeaker) *Orchestrator {
	return NewOrchestrator(
		func() Listener { return listener },
		replierFunc(func(context.Context, string) string { return reply }),
		speaker,
		nil,
	)
}

func TestRunTurnProducesReply(t *testing.T) {
	listener := newFakeListener(
		speech.Event{Kind: speech.EventPartial, Text: "hola"},
		speech.Event{Kind: speech.EventFinalized, Text: "hola"},
	)
	listener.finalText = "hola"
	speaker := &fakeSpeaker{ok: true}
	o := orchestratorWith(listener, "¡Hola! ¿Cómo estás hoy?", speaker)

	var seen []speech.EventKind
	msg, ok, err := o.RunTurn(context.Background(), func(ev speech.Event) {
		seen = append(seen, ev.Kind)
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RoleAssistant, msg.Role)
	require.Equal(t, "¡Hola! ¿Cómo estás hoy?", msg.Text)
	require.False(t, msg.Loading)
	require.Equal(t, []speech.EventKind{speech.EventPartial, speech.EventFinalized}, seen)

	messages := o.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, RoleUser, messages[0].Role)
	require.Equal(t, "hola", messages[0].Text)
	require.Equal(t, msg.ID, messages[1].ID)

	require.Equal(t, []string{"¡Hola! ¿Cómo estás hoy?"}, speaker.spoken)
}

func TestRunTurnShowsLoadingPlaceholderWhileGenerating(t *testing.T) {
	listener := newFakeListener(speech.Event{Kind: speech.EventFinalized, Text: "ciao"})
	listener.finalText = "ciao"
	speaker := &fakeSpeaker{ok: true}

	var o *Orchestrator
	o = NewOrchestrator(
		func() Listener { return listener },
		replierFunc(func(context.Context, string) string {
			messages := o.Messages()
			require.Len(t, messages, 2)
			require.True(t, messages[1].Loading)
			require.Empty(t, messages[1].Text)
			return "Ciao! Come va?"
		}),
		speaker,
		nil,
	)

	_, ok, err := o.RunTurn(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, ok)

	messages := o.Messages()
	require.Len(t, messages, 2)
	require.False(t, messages[1].Loading)
	require.Equal(t, "Ciao! Come va?", messages[1].Text)
}

func TestRunTurnDiscardedRecordingIsNotAnError(t *testing.T) {
	listener := newFakeListener(speech.Event{Kind: speech.EventDiscarded})
	o := orchestratorWith(listener, "unused", &fakeSpeaker{ok: true})

	_, ok, err := o.RunTurn(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, o.Messages())
}

func TestRunTurnErroredClearsAndReports(t *testing.T) {
	listener := newFakeListener(speech.Event{Kind: speech.EventErrored, Message: "audio route lost"})
	o := orchestratorWith(listener, "unused", &fakeSpeaker{ok: true})

	_, ok, err := o.RunTurn(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "audio route lost")
	require.False(t, ok)
	require.Equal(t, 1, listener.clearCalls)
	require.Empty(t, o.Messages())

	// The failed turn released its slot.
	next := newFakeListener(speech.Event{Kind: speech.EventDiscarded})
	o.newListener = func() Listener { return next }
	_, _, err = o.RunTurn(context.Background(), nil)
	require.NoError(t, err)
}

func TestRunTurnSpeakFailureKeepsReply(t *testing.T) {
	listener := newFakeListener(speech.Event{Kind: speech.EventFinalized, Text: "bonjour"})
	listener.finalText = "bonjour"
	speaker := &fakeSpeaker{ok: false, lastErr: "quota exhausted"}
	o := orchestratorWith(listener, "Bonjour!", speaker)

	msg, ok, err := o.RunTurn(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Bonjour!", msg.Text)
}

func TestStartTurnRefusedWhileSpeaking(t *testing.T) {
	o := orchestratorWith(newFakeListener(), "unused", &fakeSpeaker{playing: true})

	_, err := o.StartTurn(context.Background())
	require.ErrorIs(t, err, ErrAssistantSpeaking)
}

func TestStartTurnRefusedWhileTurnActive(t *testing.T) {
	listener := newFakeListener()
	o := orchestratorWith(listener, "unused", &fakeSpeaker{ok: true})

	_, err := o.StartTurn(context.Background())
	require.NoError(t, err)

	_, err = o.StartTurn(context.Background())
	require.ErrorIs(t, err, ErrTurnInProgress)
}

func TestStartTurnPropagatesStartFailure(t *testing.T) {
	listener := newFakeListener()
	listener.startErr = errors.New("permissions not granted")
	o := orchestratorWith(listener, "unused", &fakeSpeaker{ok: true})

	_, err := o.StartTurn(context.Background())
	require.Error(t, err)

	// Failure must release the turn slot.
	listener.startErr = nil
	_, err = o.StartTurn(context.Background())
	require.NoError(t, err)
}

func TestHandleWithoutActiveTurn(t *testing.T) {
	o := orchestratorWith(newFakeListener(), "unused", &fakeSpeaker{ok: true})

	resp := o.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	require.Equal(t, string(fsm.StateIdle), resp.State)

	resp = o.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "no active recording")

	resp = o.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.False(t, resp.OK)
}

func TestHandleControlsLiveTurn(t *testing.T) {
	listener := newFakeListener()
	listener.live = "guten ta"
	o := orchestratorWith(listener, "unused", &fakeSpeaker{ok: true})

	_, err := o.StartTurn(context.Background())
	require.NoError(t, err)

	resp := o.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	require.Equal(t, string(fsm.StateRecording), resp.State)
	require.Equal(t, "guten ta", resp.Transcript)

	resp = o.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)
	require.Equal(t, 1, listener.stopCalls)

	resp = o.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.True(t, resp.OK)
	require.Equal(t, 1, listener.cancelCalls)

	resp = o.Handle(context.Background(), ipc.Request{Command: "reboot"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}
