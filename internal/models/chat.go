package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn represents a single entry in the client transcript.
// Turns are never modified after creation.
type ChatTurn struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func NewChatTurn(role Role, text string) ChatTurn {
	return ChatTurn{
		ID:        uuid.New(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// ChatRequest is the payload sent to the relay endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply from the relay endpoint.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ErrorResponse is returned by every relay route on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TranscribeResponse is the reply from the transcription endpoint.
type TranscribeResponse struct {
	Text string `json:"text"`
}

// HealthResponse reports whether an upstream provider is usable.
type HealthResponse struct {
	Status     string `json:"status"`
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
}
