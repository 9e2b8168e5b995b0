package voice

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Labels shown on the microphone control.
const (
	IdleLabel        = "🎤 Mic"
	ListeningLabel   = "🎙 Listening..."
	UnsupportedLabel = "Speech recognition not supported on this system"
)

// ErrUnsupported is returned by Toggle when no recognizer is installed.
var ErrUnsupported = errors.New("voice input is not supported")

// Recognizer captures one utterance and returns its transcript. It returns
// when a result is ready, when recognition fails, or when ctx is cancelled.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// RecognitionError wraps a failure of the capture or transcription step.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string { return "speech recognition error: " + e.Err.Error() }
func (e *RecognitionError) Unwrap() error { return e.Err }

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Listener is the Idle/Listening state machine around a Recognizer.
type Listener struct {
	rec      Recognizer
	onResult func(text string)
	onLabel  func(label string)
	logger   zerolog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener wires a recognizer to its callbacks. rec may be nil when no
// capture backend is available. onResult receives every non-empty
// transcript; onLabel receives the microphone label on each transition.
// onLabel runs with the listener locked so labels arrive in transition
// order; it must not call back into the Listener.
func NewListener(rec Recognizer, onResult func(string), onLabel func(string), logger zerolog.Logger) *Listener {
	if onResult == nil {
		onResult = func(string) {}
	}
	if onLabel == nil {
		onLabel = func(string) {}
	}
	return &Listener{
		rec:      rec,
		onResult: onResult,
		onLabel:  onLabel,
		logger:   logger,
	}
}

func (l *Listener) Available() bool {
	return l.rec != nil
}

func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Toggle starts listening when idle and stops the capture in progress
// when already listening.
func (l *Listener) Toggle(ctx context.Context) error {
	if !l.Available() {
		return ErrUnsupported
	}

	l.mu.Lock()
	if l.state == Listening {
		l.cancel()
		l.mu.Unlock()
		return nil
	}
	l.startLocked(ctx)
	l.mu.Unlock()
	return nil
}

// Stop cancels the capture in progress, if any. The stopped capture never
// produces a result.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.state == Listening {
		l.cancel()
	}
	l.mu.Unlock()
}

// Wait blocks until every capture started so far has finished, including
// delivery of its result.
func (l *Listener) Wait() {
	l.wg.Wait()
}

func (l *Listener) startLocked(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	l.state = Listening
	l.cancel = cancel
	l.onLabel(ListeningLabel)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		text, err := l.rec.Recognize(ctx)
		stopped := ctx.Err() != nil
		cancel()

		l.mu.Lock()
		l.state = Idle
		l.cancel = nil
		l.onLabel(IdleLabel)
		l.mu.Unlock()

		switch {
		case stopped:
			l.logger.Debug().Msg("speech recognition stopped")
		case err != nil:
			l.logger.Warn().Err(err).Msg("speech recognition error")
		default:
			if text = strings.TrimSpace(text); text != "" {
				l.onResult(text)
			}
		}
	}()
}
