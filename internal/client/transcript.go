package client

import "jarvis-chat/internal/models"

// PendingText is shown in place of the assistant reply while a send is in
// flight.
const PendingText = "Thinking..."

// Transcript is the append-only list of turns plus at most one pending
// assistant placeholder. It is not safe for concurrent use; Session guards it.
type Transcript struct {
	turns   []models.ChatTurn
	pending string
}

func (t *Transcript) Append(role models.Role, text string) models.ChatTurn {
	turn := models.NewChatTurn(role, text)
	t.turns = append(t.turns, turn)
	return turn
}

func (t *Transcript) SetPending(text string) {
	t.pending = text
}

// ResolvePending drops the placeholder and appends the assistant turn that
// replaces it.
func (t *Transcript) ResolvePending(text string) models.ChatTurn {
	t.pending = ""
	return t.Append(models.RoleAssistant, text)
}

// Turns returns a copy of the committed turns.
func (t *Transcript) Turns() []models.ChatTurn {
	return append([]models.ChatTurn(nil), t.turns...)
}

// Pending returns the placeholder text, or "" when nothing is in flight.
func (t *Transcript) Pending() string {
	return t.pending
}
