package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Player renders 16kHz mono s16 PCM to the default Pulse sink. One Player
// plays at most one clip at a time.
type Player struct {
	playing atomic.Bool
}

// NewPlayer returns an idle player.
func NewPlayer() *Player {
	return &Player{}
}

// IsPlaying reports whether a clip is currently being rendered.
func (p *Player) IsPlaying() bool {
	return p.playing.Load()
}

// Play blocks until the clip finishes or ctx is cancelled. Cancellation cuts
// playback short without error beyond ctx.Err.
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if !p.playing.CompareAndSwap(false, true) {
		return fmt.Errorf("player is busy")
	}
	defer p.playing.Store(false)

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("parlo"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	reader := pulse.NewReader(bytes.NewReader(pcm), pulseproto.FormatInt16LE)
	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(SampleRate),
		pulse.PlaybackMediaName("parlo tutor reply"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()

	done := make(chan struct{})
	go func() {
		stream.Drain()
		close(done)
	}()

	select {
	case <-ctx.Done():
		stream.Stop()
		return ctx.Err()
	case <-done:
	}

	if err := stream.Error(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}
