// Package voice holds the speech playback and speech capture controllers
// used by the chat client. The speech engines themselves are external
// programs hidden behind the Synthesizer and Recognizer interfaces.
package voice

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Synthesizer speaks text aloud and returns when playback finishes.
// Cancelling ctx must stop playback.
type Synthesizer interface {
	Say(ctx context.Context, text string) error
}

// Speaker plays at most one utterance at a time. A new utterance always
// cancels the one still playing.
type Speaker struct {
	synth  Synthesizer
	logger zerolog.Logger

	mu        sync.Mutex
	autoSpeak bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSpeaker returns a speaker with auto-speak enabled. synth may be nil
// when no speech engine is installed; Speak is then a no-op.
func NewSpeaker(synth Synthesizer, logger zerolog.Logger) *Speaker {
	return &Speaker{
		synth:     synth,
		logger:    logger,
		autoSpeak: true,
	}
}

func (s *Speaker) Available() bool {
	return s.synth != nil
}

func (s *Speaker) SetAutoSpeak(on bool) {
	s.mu.Lock()
	s.autoSpeak = on
	s.mu.Unlock()
}

func (s *Speaker) AutoSpeak() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSpeak
}

// Speak starts reading text aloud in the background.
func (s *Speaker) Speak(text string) {
	if !s.Available() || strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.autoSpeak {
		return
	}
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		defer cancel()
		if err := s.synth.Say(ctx, text); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("speech synthesis failed")
		}
	}()
}

// Stop silences the current utterance, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// stopLocked cancels the running utterance and waits for it to exit so the
// next one never overlaps it.
func (s *Speaker) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

// Wait blocks until the current utterance, if any, has finished.
func (s *Speaker) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
