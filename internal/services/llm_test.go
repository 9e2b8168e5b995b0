package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis-chat/internal/config"
)

type stubProvider struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	block   chan struct{}
	active  int32
	maxSeen int32
}

func (p *stubProvider) Name() string { return "stub" }
func (p *stubProvider) Close()       {}

func (p *stubProvider) Complete(ctx context.Context, system, user string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	n := atomic.AddInt32(&p.active, 1)
	defer atomic.AddInt32(&p.active, -1)
	for {
		seen := atomic.LoadInt32(&p.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&p.maxSeen, seen, n) {
			break
		}
	}

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.reply, p.err
}

func (p *stubProvider) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	return "heard", p.err
}

func TestUpstream_UnconfiguredReportsMissingCredential(t *testing.T) {
	up := NewUpstream(nil, "openai", time.Second, 2, zerolog.Nop())
	assert.False(t, up.Configured())
	assert.Equal(t, "openai", up.Name())

	_, err := up.Complete(context.Background(), "sys", "hi")
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = up.Transcribe(context.Background(), []byte{1}, "audio/wav", "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestUpstream_PassesThroughReplyAndErrors(t *testing.T) {
	p := &stubProvider{reply: "Hi there"}
	up := NewUpstream(p, "", time.Second, 1, zerolog.Nop())
	assert.Equal(t, "stub", up.Name())

	reply, err := up.Complete(context.Background(), "sys", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	p.err = &UpstreamError{Provider: "stub", StatusCode: 502, Err: errors.New("bad gateway")}
	_, err = up.Complete(context.Background(), "sys", "Hello")
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, 502, upErr.StatusCode)
}

func TestUpstream_TimeoutBoundsCall(t *testing.T) {
	p := &stubProvider{block: make(chan struct{})}
	up := NewUpstream(p, "", 20*time.Millisecond, 1, zerolog.Nop())

	_, err := up.Complete(context.Background(), "sys", "Hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUpstream_ConcurrencyTokenBucket(t *testing.T) {
	p := &stubProvider{reply: "ok", block: make(chan struct{})}
	up := NewUpstream(p, "", 0, 2, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			up.Complete(context.Background(), "sys", "Hello")
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(p.block)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&p.maxSeen), int32(2))
	assert.Equal(t, 5, p.calls)
}

func TestNewUpstreamFromConfig(t *testing.T) {
	cfg := &config.Config{UpstreamProvider: config.ProviderOpenAI, UpstreamConcurrentReqs: 1}
	up, err := NewUpstreamFromConfig(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, ErrMissingCredential)
	require.NotNil(t, up)
	assert.False(t, up.Configured())

	cfg = &config.Config{UpstreamProvider: config.ProviderGemini}
	_, err = NewUpstreamFromConfig(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, ErrMissingCredential)

	cfg = &config.Config{UpstreamProvider: config.ProviderMock}
	up, err = NewUpstreamFromConfig(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, up.Configured())
	assert.Equal(t, "mock", up.Name())

	cfg = &config.Config{UpstreamProvider: "llama"}
	_, err = NewUpstreamFromConfig(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestMockService(t *testing.T) {
	m := NewMockService()
	reply, err := m.Complete(context.Background(), "sys", "Hello")
	require.NoError(t, err)
	assert.Equal(t, `[MOCK] Received your message: "Hello".`, reply)

	_, err = m.Transcribe(context.Background(), nil, "audio/wav", "")
	assert.Error(t, err)
}

func TestMockService_TruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 150)
	reply, err := NewMockService().Complete(context.Background(), "sys", long)
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(reply))
	assert.NotContains(t, reply, `\x`)
	assert.Contains(t, reply, strings.Repeat("é", 100)+"...")
	assert.NotContains(t, reply, strings.Repeat("é", 101))

	assert.Equal(t, "héllo", truncate("héllo", 5))
	assert.Equal(t, "日本...", truncate("日本語", 2))
}
