package client

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"jarvis-chat/internal/models"
)

func TestTerminalView_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	v := NewTerminalView(&buf)

	var tr Transcript
	tr.Append(models.RoleUser, "Hello")
	v.Render(tr.Turns(), "")
	tr.SetPending(PendingText)
	v.Render(tr.Turns(), tr.Pending())
	v.Render(tr.Turns(), tr.Pending())
	tr.ResolvePending("Hi there")
	v.Render(tr.Turns(), tr.Pending())
	v.Notice("auto-speak off")
	v.SetInput("")
	v.SetInput("lights on")

	assert.Equal(t, "You: Hello\nJarvis: Thinking...\nJarvis: Hi there\n· auto-speak off\n> lights on\n", buf.String())
}

func TestTranscript(t *testing.T) {
	var tr Transcript
	assert.Empty(t, tr.Turns())
	assert.Empty(t, tr.Pending())

	user := tr.Append(models.RoleUser, "Hello")
	tr.SetPending(PendingText)
	assert.Equal(t, PendingText, tr.Pending())

	reply := tr.ResolvePending("Hi there")
	assert.Empty(t, tr.Pending())
	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.NotEqual(t, user.ID, reply.ID)

	turns := tr.Turns()
	turns[0].Text = "mutated"
	assert.Equal(t, "Hello", tr.Turns()[0].Text)
}
