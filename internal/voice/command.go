package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrNoEngine is returned when none of the known speech programs is on PATH.
var ErrNoEngine = errors.New("no speech engine found")

var (
	defaultTTSCommands = [][]string{
		{"espeak-ng"},
		{"espeak"},
		{"say"},
		{"spd-say", "--wait"},
	}
	defaultRecordCommands = [][]string{
		{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-d", "6", "-t", "wav", "-"},
		{"rec", "-q", "-c", "1", "-r", "16000", "-t", "wav", "-", "trim", "0", "6"},
	}
)

// killGrace bounds how long a cancelled command may hold its output pipes
// open through child processes.
const killGrace = 500 * time.Millisecond

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// CommandSynthesizer speaks by running an external TTS program with the
// text as its last argument.
type CommandSynthesizer struct {
	bin  string
	args []string
}

// NewCommandSynthesizer parses a command line such as "espeak-ng -s 160".
// An empty command line picks the first installed default engine.
func NewCommandSynthesizer(cmdline string) (*CommandSynthesizer, error) {
	argv, err := resolveCommand(cmdline, defaultTTSCommands)
	if err != nil {
		return nil, err
	}
	return &CommandSynthesizer{bin: argv[0], args: argv[1:]}, nil
}

func (c *CommandSynthesizer) Say(ctx context.Context, text string) error {
	args := append(append([]string{}, c.args...), text)
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.WaitDelay = killGrace
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %v: %s", c.bin, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Transcriber turns a recorded clip into text; the relay client provides it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error)
}

// CommandRecognizer records one clip with an external program writing WAV
// to stdout, then hands the clip to a Transcriber.
type CommandRecognizer struct {
	bin         string
	args        []string
	mimeType    string
	language    string
	transcriber Transcriber
}

// NewCommandRecognizer parses a recorder command line. An empty command
// line picks arecord or sox's rec, whichever is installed.
func NewCommandRecognizer(cmdline, language string, transcriber Transcriber) (*CommandRecognizer, error) {
	argv, err := resolveCommand(cmdline, defaultRecordCommands)
	if err != nil {
		return nil, err
	}
	return &CommandRecognizer{
		bin:         argv[0],
		args:        argv[1:],
		mimeType:    "audio/wav",
		language:    language,
		transcriber: transcriber,
	}, nil
}

func (c *CommandRecognizer) Recognize(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin, c.args...)
	cmd.WaitDelay = killGrace
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &RecognitionError{Err: fmt.Errorf("%s failed: %v: %s", c.bin, err, strings.TrimSpace(stderr.String()))}
	}
	if stdout.Len() == 0 {
		return "", &RecognitionError{Err: errors.New("no audio captured")}
	}

	text, err := c.transcriber.Transcribe(ctx, stdout.Bytes(), c.mimeType, c.language)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &RecognitionError{Err: err}
	}
	return text, nil
}

func resolveCommand(cmdline string, defaults [][]string) ([]string, error) {
	if argv := strings.Fields(cmdline); len(argv) > 0 {
		if _, err := lookPath(argv[0]); err != nil {
			return nil, fmt.Errorf("%s: %w", argv[0], err)
		}
		return argv, nil
	}
	for _, argv := range defaults {
		if _, err := lookPath(argv[0]); err == nil {
			return argv, nil
		}
	}
	return nil, ErrNoEngine
}
