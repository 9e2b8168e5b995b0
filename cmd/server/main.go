package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"jarvis-chat/internal/config"
	"jarvis-chat/internal/database"
	"jarvis-chat/internal/handlers"
	"jarvis-chat/internal/middleware"
	"jarvis-chat/internal/router"
	"jarvis-chat/internal/services"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logger := newLogger(cfg)
	logger.Info().Msg("🚀 Starting Jarvis relay...")
	logger.Info().Str("env", cfg.Env).Msg("✓ Environment variables loaded")

	// ──── Step 2: Initialize Upstream Client ────
	upstream, err := services.NewUpstreamFromConfig(cfg, logger)
	switch {
	case errors.Is(err, services.ErrMissingCredential):
		logger.Warn().Str("provider", cfg.UpstreamProvider).Msg("✗ Upstream credential missing; /api/chat will answer 500 until it is set")
	case err != nil:
		logger.Fatal().Err(err).Msg("✗ Upstream client initialization failed")
	default:
		logger.Info().Str("provider", upstream.Name()).Msg("✓ Upstream client initialized")
	}
	defer upstream.Close()

	// ──── Step 3: Initialize Rate Limiter ────
	var limiter middleware.Limiter
	if cfg.RateLimitPerMinute > 0 {
		if cfg.RedisURL != "" {
			redisClient, err := database.NewRedisClient(cfg.RedisURL)
			if err != nil {
				logger.Fatal().Err(err).Msg("✗ Redis connection failed")
			}
			defer redisClient.Close()
			limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimitPerMinute, time.Minute)
			logger.Info().Int("per_minute", cfg.RateLimitPerMinute).Msg("✓ Redis rate limiter connected")
		} else {
			memLimiter := middleware.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
			defer memLimiter.Close()
			limiter = memLimiter
			logger.Info().Int("per_minute", cfg.RateLimitPerMinute).Msg("✓ In-memory rate limiter started")
		}
	}

	var jwtAuth *middleware.JWTAuth
	if cfg.AuthJWTSecret != "" {
		jwtAuth = middleware.NewJWTAuth(cfg.AuthJWTSecret)
		logger.Info().Msg("✓ Bearer token auth enabled")
	}

	// ──── Step 4: Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(upstream, cfg.SystemPrompt, cfg.MaxBodyBytes, logger)
	transcribeHandler := handlers.NewTranscribeHandler(upstream, cfg.MaxAudioBytes, logger)
	healthHandler := handlers.NewHealthHandler(upstream)

	// ──── Step 5: Start HTTP Server ────
	r := router.New(
		router.Options{
			Logger:         logger,
			AllowedOrigins: cfg.AllowedOrigins,
			Limiter:        limiter,
			JWTAuth:        jwtAuth,
		},
		chatHandler,
		transcribeHandler,
		healthHandler,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	logger.Info().Msgf("✓ Jarvis relay ready on http://localhost:%s", cfg.Port)
	logger.Info().Msgf("  API: http://localhost:%s/api/chat", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("Server error")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}
