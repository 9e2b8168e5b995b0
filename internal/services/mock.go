package services

import (
	"context"
	"fmt"
)

// MockService is a Provider that answers locally. It backs
// UPSTREAM_PROVIDER=mock for development without an API key.
type MockService struct{}

func NewMockService() *MockService {
	return &MockService{}
}

var _ Provider = (*MockService)(nil)

func (m *MockService) Name() string { return "mock" }

func (m *MockService) Close() {}

func (m *MockService) Complete(ctx context.Context, system, user string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return fmt.Sprintf("[MOCK] Received your message: %q.", truncate(user, 100)), nil
}

func (m *MockService) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}
	return fmt.Sprintf("[MOCK] transcribed %d bytes of %s", len(audio), mimeType), nil
}

// truncate shortens s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
