// Jarvis chat
//
// A terminal voice client for the Jarvis relay. Type a message and press
// Enter, or use /mic to speak it.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jarvis-chat/internal/client"
	"jarvis-chat/internal/config"
	"jarvis-chat/internal/middleware"
	"jarvis-chat/internal/voice"
)

var version = "dev"

func main() {
	if err := newRootCmd(config.LoadClient()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.ClientConfig) *cobra.Command {
	var (
		noSpeak bool
		verbose bool
	)

	rootCmd := &cobra.Command{
		Use:   "jarvis-chat",
		Short: "Jarvis - voice chat client",
		Long: `Jarvis is a minimal voice chat client. Messages go to the Jarvis relay,
replies are printed and read aloud.

  /mic           start or stop voice input
  /stop          stop speaking
  /speak on|off  toggle reading replies aloud
  /quit          leave`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noSpeak {
				cfg.AutoSpeak = false
			}
			return runChat(cmd.Context(), cfg, newLogger(verbose))
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Jarvis relay URL")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "bearer token for the relay")
	flags.StringVar(&cfg.Lang, "lang", cfg.Lang, "speech recognition language")
	flags.StringVar(&cfg.RecordCmd, "record-cmd", cfg.RecordCmd, "recorder command writing WAV to stdout (default: arecord or rec)")
	flags.StringVar(&cfg.TTSCmd, "tts-cmd", cfg.TTSCmd, "text-to-speech command (default: espeak-ng, espeak, say or spd-say)")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "relay request timeout (0 for none)")
	flags.BoolVar(&noSpeak, "no-speak", !cfg.AutoSpeak, "do not read replies aloud")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newTokenCmd())
	return rootCmd
}

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a relay started with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or AUTH_JWT_SECRET is required")
			}
			token, err := middleware.NewJWTAuth(secret).GenerateToken(subject, ttl)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "HMAC secret shared with the relay")
	cmd.Flags().StringVar(&subject, "subject", "jarvis-chat", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func runChat(parent context.Context, cfg *config.ClientConfig, logger zerolog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := client.NewRelayClient(cfg.ServerURL, cfg.Token, cfg.Timeout)
	view := client.NewTerminalView(os.Stdout)

	opts := []client.Option{client.WithLogger(logger)}

	var synth voice.Synthesizer
	if s, err := voice.NewCommandSynthesizer(cfg.TTSCmd); err != nil {
		logger.Debug().Err(err).Msg("speech output unavailable")
	} else {
		synth = s
	}
	speaker := voice.NewSpeaker(synth, logger)
	speaker.SetAutoSpeak(cfg.AutoSpeak)
	opts = append(opts, client.WithSpeaker(speaker))

	if rec, err := voice.NewCommandRecognizer(cfg.RecordCmd, cfg.Lang, relay); err != nil {
		logger.Debug().Err(err).Msg("speech input unavailable")
	} else {
		opts = append(opts, client.WithRecognizer(rec))
	}

	session := client.NewSession(ctx, relay, view, opts...)
	defer session.Close()

	view.Notice(fmt.Sprintf("connected to %s · /help for commands", cfg.ServerURL))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn().Err(err).Msg("reading input failed")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// a signal still cancels the wait through ctx
				session.Drain()
				return nil
			}
			if err := session.HandleLine(line); errors.Is(err, client.ErrQuit) {
				session.Drain()
				return nil
			}
		}
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
