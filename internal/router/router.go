package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"jarvis-chat/internal/handlers"
	"jarvis-chat/internal/middleware"
)

type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	// Limiter is optional; nil disables rate limiting.
	Limiter middleware.Limiter
	// JWTAuth is optional; nil leaves the relay routes open.
	JWTAuth *middleware.JWTAuth
}

func New(
	opts Options,
	chatHandler *handlers.ChatHandler,
	transcribeHandler *handlers.TranscribeHandler,
	healthHandler *handlers.HealthHandler,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(middleware.RateLimit(opts.Limiter, opts.Logger))
		}
		if opts.JWTAuth != nil {
			r.Use(opts.JWTAuth.Middleware)
		}

		// Handlers check the method themselves so every verb gets the
		// JSON 405 body.
		r.HandleFunc("/chat", chatHandler.Chat)
		r.HandleFunc("/transcribe", transcribeHandler.Transcribe)
	})

	return r
}
