package client

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"jarvis-chat/internal/models"
)

// View renders session state. Implementations must not call back into the
// Session.
type View interface {
	// Render shows the transcript. pending is "" when nothing is in flight.
	Render(turns []models.ChatTurn, pending string)
	SetBusy(busy bool)
	SetInput(text string)
	SetMicLabel(label string)
	Notice(msg string)
}

const (
	ansiReset     = "\033[0m"
	ansiBold      = "\033[1m"
	ansiDim       = "\033[2m"
	ansiCyan      = "\033[36m"
	ansiClearLine = "\r\033[K"
)

// TerminalView prints the transcript as a scrolling log. On a terminal the
// pending line is redrawn in place; elsewhere it is printed once.
type TerminalView struct {
	mu           sync.Mutex
	out          io.Writer
	ansi         bool
	printed      int
	pendingShown bool
	busy         bool
}

func NewTerminalView(out io.Writer) *TerminalView {
	ansi := false
	if f, ok := out.(*os.File); ok {
		ansi = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &TerminalView{out: out, ansi: ansi}
}

func (v *TerminalView) Render(turns []models.ChatTurn, pending string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pendingShown && v.ansi {
		fmt.Fprint(v.out, ansiClearLine)
		v.pendingShown = false
	}
	if v.printed > len(turns) {
		v.printed = 0
	}
	for _, turn := range turns[v.printed:] {
		fmt.Fprintln(v.out, v.format(turn.Role, turn.Text))
	}
	v.printed = len(turns)

	switch {
	case pending == "":
		v.pendingShown = false
	case !v.pendingShown:
		if v.ansi {
			fmt.Fprint(v.out, ansiDim+v.format(models.RoleAssistant, pending)+ansiReset)
		} else {
			fmt.Fprintln(v.out, v.format(models.RoleAssistant, pending))
		}
		v.pendingShown = true
	}
}

func (v *TerminalView) SetBusy(busy bool) {
	v.mu.Lock()
	v.busy = busy
	v.mu.Unlock()
}

func (v *TerminalView) Busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.busy
}

// SetInput echoes text placed in the input by voice capture. The terminal
// owns the real input line, so clearing is a no-op.
func (v *TerminalView) SetInput(text string) {
	if text == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "> %s\n", text)
}

func (v *TerminalView) SetMicLabel(label string) {
	v.Notice(label)
}

func (v *TerminalView) Notice(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ansi {
		fmt.Fprintf(v.out, "%s· %s%s\n", ansiDim, msg, ansiReset)
		return
	}
	fmt.Fprintf(v.out, "· %s\n", msg)
}

func (v *TerminalView) format(role models.Role, text string) string {
	name := "You"
	if role == models.RoleAssistant {
		name = "Jarvis"
	}
	if v.ansi {
		color := ansiBold
		if role == models.RoleAssistant {
			color = ansiBold + ansiCyan
		}
		return fmt.Sprintf("%s%s:%s %s", color, name, ansiReset, text)
	}
	return fmt.Sprintf("%s: %s", name, text)
}
