// Package asr streams microphone PCM to a websocket recognition service and
// adapts its hypotheses to the speech session contract.
package asr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/parlo-dev/parlo/internal/speech"
)

// Config controls the recognition websocket connection.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Language string
}

// Event is one message decoded off the recognition stream.
type Event struct {
	Text  string
	Final bool
	Err   *speech.RecognizerError
}

// Stream is one live websocket recognition exchange: binary PCM up, JSON
// hypotheses down. CloseSend ends the audio side and lets the service flush
// its final hypothesis before the connection winds down.
type Stream struct {
	conn *websocket.Conn

	events  chan Event
	audio   chan []byte
	done    chan struct{}
	closing chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

// Dial opens the recognition stream described by cfg.
func Dial(ctx context.Context, cfg Config) (*Stream, error) {
	wsURL, err := buildListenURL(cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if strings.TrimSpace(cfg.APIKey) != "" {
		headers.Set("Authorization", "Token "+cfg.APIKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("connect recognition service: %w", err)
	}

	stream := &Stream{
		conn:    conn,
		events:  make(chan Event, 64),
		audio:   make(chan []byte, 32),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}

	stream.wg.Add(2)
	go stream.readLoop()
	go stream.writeLoop()
	go func() {
		stream.wg.Wait()
		close(stream.events)
		close(stream.done)
		_ = conn.Close()
	}()

	// The watcher must not outlive the stream: one chat session runs many
	// turns against the same app-lifetime context.
	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-stream.done:
		}
	}()

	return stream, nil
}

// SendAudio queues one PCM chunk for transmission.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	closed := s.sendClosed
	s.sendMu.RUnlock()
	if closed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.streamErr(); err != nil {
			return err
		}
		return errors.New("stream closed")
	}
}

// CloseSend ends the audio side; final hypotheses keep arriving on Events.
func (s *Stream) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

// Events returns decoded recognition events. The channel closes once the
// connection winds down.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Wait blocks until the stream has fully wound down.
func (s *Stream) Wait() error {
	<-s.done
	return s.streamErr()
}

// Close tears the connection down immediately.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.streamErr()
}

func (s *Stream) streamErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	if err == nil {
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived:
			return
		}
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("close stream: %w", err))
	}
}

func (s *Stream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("read recognition event: %w", err))
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "recognition service returned an unknown error"
			}
			domain := response.Domain
			if domain == "" {
				domain = speech.ErrorDomain
			}
			s.emit(Event{Err: &speech.RecognizerError{Domain: domain, Code: response.Code, Message: message}})
			return
		}

		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}
		s.emit(Event{Text: transcript, Final: response.IsFinal || response.SpeechFinal})
	}
}

// emit forwards one decoded event. Partials may be dropped when the consumer
// lags; error and final events must land, so they wait until the consumer
// takes them or the stream is torn down.
func (s *Stream) emit(event Event) {
	if event.Err != nil || event.Final {
		select {
		case s.events <- event:
		case <-s.closing:
		}
		return
	}

	select {
	case s.events <- event:
	default:
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Domain      string `json:"domain"`
	Code        int    `json:"code"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func extractTranscript(response listenResponse) string {
	if len(response.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
}

// buildListenURL converts an http(s) endpoint to its ws(s) listen URL with
// the stream parameters parlo always uses: 16kHz mono linear16 with interim
// results, since the silence clock feeds on partial hypotheses.
func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.Endpoint)
	if base == "" {
		return "", errors.New("recognizer endpoint is not configured")
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid recognizer endpoint: %w", err)
	}
	if listenURL.Scheme != "ws" && listenURL.Scheme != "wss" {
		return "", fmt.Errorf("recognizer endpoint %q must be http(s) or ws(s)", cfg.Endpoint)
	}

	query := listenURL.Query()
	query.Set("encoding", "linear16")
	query.Set("sample_rate", "16000")
	query.Set("channels", "1")
	query.Set("interim_results", "true")
	if cfg.Model != "" {
		query.Set("model", cfg.Model)
	}
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
