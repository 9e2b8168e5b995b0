// Package client implements the chat session: transcript, send flow and the
// wiring between keyboard input, voice capture and voice playback.
package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"jarvis-chat/internal/models"
	"jarvis-chat/internal/voice"
)

const (
	BusyNotice        = "Still waiting for the previous reply"
	UnsupportedNotice = "Voice input is not supported"
	fallbackError     = "Something went wrong"
)

// Relay sends one user message and returns the assistant reply.
type Relay interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Session owns one conversation. Create it with NewSession and release it
// with Close.
type Session struct {
	relay    Relay
	view     View
	logger   zerolog.Logger
	speaker  *voice.Speaker
	rec      voice.Recognizer
	listener *voice.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	transcript Transcript
	busy       bool
}

type Option func(*Session)

func WithSpeaker(sp *voice.Speaker) Option {
	return func(s *Session) { s.speaker = sp }
}

func WithRecognizer(rec voice.Recognizer) Option {
	return func(s *Session) { s.rec = rec }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// NewSession wires a session to its relay and view. Without WithSpeaker
// replies are not spoken; without WithRecognizer the microphone is disabled.
func NewSession(ctx context.Context, relay Relay, view View, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		relay:  relay,
		view:   view,
		logger: zerolog.Nop(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.speaker == nil {
		s.speaker = voice.NewSpeaker(nil, s.logger)
	}
	s.listener = voice.NewListener(s.rec, s.onTranscript, view.SetMicLabel, s.logger)

	if s.listener.Available() {
		view.SetMicLabel(voice.IdleLabel)
	} else {
		view.Notice(voice.UnsupportedLabel)
	}
	return s
}

// SendMessage submits text and waits for the reply. Failures are rendered
// into the transcript; nothing is returned.
func (s *Session) SendMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.view.Notice(BusyNotice)
		return
	}
	s.busy = true
	s.mu.Unlock()

	s.speaker.Stop()
	s.AddMessage(models.RoleUser, text)
	s.view.SetInput("")
	s.view.SetBusy(true)
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		s.view.SetBusy(false)
	}()

	s.mu.Lock()
	s.transcript.SetPending(PendingText)
	s.renderLocked()
	s.mu.Unlock()

	reply, err := s.relay.Ask(ctx, text)
	if err != nil {
		s.logger.Warn().Err(err).Msg("chat request failed")
		s.resolve("Error: " + errorMessage(err))
		return
	}
	s.resolve(reply)
	s.speaker.Speak(reply)
}

// Submit runs SendMessage in the background so the caller can keep reading
// input. Close waits for it.
func (s *Session) Submit(text string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.SendMessage(s.ctx, text)
	}()
}

// AddMessage appends a turn and re-renders.
func (s *Session) AddMessage(role models.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Append(role, text)
	s.renderLocked()
}

// ToggleMic starts or stops voice capture.
func (s *Session) ToggleMic() {
	if !s.listener.Available() {
		s.view.Notice(UnsupportedNotice)
		return
	}
	if s.Busy() && s.listener.State() == voice.Idle {
		s.view.Notice(BusyNotice)
		return
	}
	if err := s.listener.Toggle(s.ctx); err != nil {
		s.logger.Warn().Err(err).Msg("mic toggle failed")
	}
}

func (s *Session) StopSpeaking() {
	s.speaker.Stop()
}

func (s *Session) SetAutoSpeak(on bool) {
	s.speaker.SetAutoSpeak(on)
	if !on {
		s.speaker.Stop()
	}
}

func (s *Session) AutoSpeak() bool {
	return s.speaker.AutoSpeak()
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) Turns() []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Turns()
}

func (s *Session) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Pending()
}

// Drain waits for the capture and sends already started to finish. Relay
// calls are not cancelled; they end when the reply arrives or when the
// context given to NewSession is done.
func (s *Session) Drain() {
	s.listener.Wait()
	s.wg.Wait()
}

// Close cancels capture and in-flight sends, silences playback and waits for
// background work to finish. Call Drain first to let pending replies land.
func (s *Session) Close() {
	s.cancel()
	s.listener.Stop()
	s.listener.Wait()
	s.wg.Wait()
	s.speaker.Stop()
}

func (s *Session) onTranscript(text string) {
	s.view.SetInput(text)
	s.SendMessage(s.ctx, text)
}

func (s *Session) resolve(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.ResolvePending(text)
	s.renderLocked()
}

func (s *Session) renderLocked() {
	s.view.Render(s.transcript.Turns(), s.transcript.Pending())
}

func errorMessage(err error) string {
	var relayErr *RelayError
	if errors.As(err, &relayErr) && relayErr.Message != "" {
		return relayErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallbackError
}
