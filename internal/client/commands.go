package client

import (
	"errors"
	"strings"
)

// ErrQuit is returned by HandleLine when the user asks to leave.
var ErrQuit = errors.New("quit")

const helpText = "/mic toggle voice input · /stop silence speech · /speak on|off auto-speak · /quit leave"

// HandleLine dispatches one line of keyboard input. Plain text is sent in
// the background; lines starting with "/" are commands.
func (s *Session) HandleLine(line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		if line != "" {
			s.Submit(line)
		}
		return nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/mic":
		s.ToggleMic()
	case "/stop":
		s.StopSpeaking()
	case "/speak":
		if len(fields) < 2 {
			s.view.Notice(speakState(s.AutoSpeak()))
			return nil
		}
		switch strings.ToLower(fields[1]) {
		case "on":
			s.SetAutoSpeak(true)
		case "off":
			s.SetAutoSpeak(false)
		default:
			s.view.Notice("usage: /speak on|off")
			return nil
		}
		s.view.Notice(speakState(s.AutoSpeak()))
	case "/quit", "/exit":
		return ErrQuit
	case "/help":
		s.view.Notice(helpText)
	default:
		s.view.Notice("unknown command " + fields[0] + " (try /help)")
	}
	return nil
}

func speakState(on bool) string {
	if on {
		return "auto-speak on"
	}
	return "auto-speak off"
}
