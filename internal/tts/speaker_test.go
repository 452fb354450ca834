package tts

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSynth struct {
	pcm []byte
	err error
}

func (f *fakeSynth) Synthesize(context.Context, string) ([]byte, error) {
	return f.pcm, f.err
}

type fakePlayer struct {
	err     error
	delay   time.Duration
	played  atomic.Int32
	lastPCM []byte
}

func (f *fakePlayer) Play(_ context.Context, pcm []byte) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.played.Add(1)
	f.lastPCM = pcm
	return f.err
}

func TestSpeakerSuccess(t *testing.T) {
	player := &fakePlayer{}
	speaker := NewSpeaker(&fakeSynth{pcm: []byte{1, 2}}, player, nil)

	require.True(t, speaker.Speak(context.Background(), "hello"))
	require.Equal(t, int32(1), player.played.Load())
	require.Equal(t, []byte{1, 2}, player.lastPCM)
	require.Empty(t, speaker.LastError())
	require.False(t, speaker.IsPlaying())
}

func TestSpeakerSynthesisFailureRecorded(t *testing.T) {
	speaker := NewSpeaker(&fakeSynth{err: errors.New("quota exhausted")}, &fakePlayer{}, nil)

	require.False(t, speaker.Speak(context.Background(), "hello"))
	require.Equal(t, "quota exhausted", speaker.LastError())
}

func TestSpeakerPlaybackFailureRecorded(t *testing.T) {
	speaker := NewSpeaker(&fakeSynth{pcm: []byte{1}}, &fakePlayer{err: errors.New("sink gone")}, nil)

	require.False(t, speaker.Speak(context.Background(), "hello"))
	require.Equal(t, "sink gone", speaker.LastError())
}

func TestSpeakerEmptyTextRefused(t *testing.T) {
	player := &fakePlayer{}
	speaker := NewSpeaker(&fakeSynth{pcm: []byte{1}}, player, nil)

	require.False(t, speaker.Speak(context.Background(), ""))
	require.Equal(t, int32(0), player.played.Load())
}

func TestSpeakerIsPlayingWhileRendering(t *testing.T) {
	player := &fakePlayer{delay: 200 * time.Millisecond}
	speaker := NewSpeaker(&fakeSynth{pcm: []byte{1}}, player, nil)

	done := make(chan bool, 1)
	go func() { done <- speaker.Speak(context.Background(), "hello") }()

	require.Eventually(t, speaker.IsPlaying, time.Second, 5*time.Millisecond)
	require.True(t, <-done)
	require.False(t, speaker.IsPlaying())
}

func TestSpeakerSuccessClearsPreviousError(t *testing.T) {
	synth := &fakeSynth{err: errors.New("down")}
	speaker := NewSpeaker(synth, &fakePlayer{}, nil)

	require.False(t, speaker.Speak(context.Background(), "hello"))
	require.NotEmpty(t, speaker.LastError())

	synth.err = nil
	synth.pcm = []byte{1}
	require.True(t, speaker.Speak(context.Background(), "hello"))
	require.Empty(t, speaker.LastError())
}
