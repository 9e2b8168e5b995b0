package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"jarvis-chat/internal/metrics"
	"jarvis-chat/internal/models"
	"jarvis-chat/internal/services"
)

// ChatHandler relays a single user message to the upstream language model.
// It keeps no state between requests.
type ChatHandler struct {
	completer    services.Completer
	systemPrompt string
	maxBodyBytes int64
	logger       zerolog.Logger
}

func NewChatHandler(completer services.Completer, systemPrompt string, maxBodyBytes int64, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		completer:    completer,
		systemPrompt: systemPrompt,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		metrics.RelayRequests.WithLabelValues("chat", "method_not_allowed").Inc()
		methodNotAllowed(w)
		return
	}

	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RelayRequests.WithLabelValues("chat", "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body"))
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		metrics.RelayRequests.WithLabelValues("chat", "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, errorResp("Message required"))
		return
	}

	if h.completer == nil {
		metrics.RelayRequests.WithLabelValues("chat", "misconfigured").Inc()
		writeJSON(w, http.StatusInternalServerError, errorRespWithDetails("Server misconfigured", services.ErrMissingCredential.Error()))
		return
	}

	reply, err := h.completer.Complete(r.Context(), h.systemPrompt, message)
	if err != nil {
		if errors.Is(err, services.ErrMissingCredential) {
			metrics.RelayRequests.WithLabelValues("chat", "misconfigured").Inc()
			writeJSON(w, http.StatusInternalServerError, errorRespWithDetails("Server misconfigured", err.Error()))
			return
		}

		metrics.RelayRequests.WithLabelValues("chat", "upstream_error").Inc()
		h.logger.Error().
			Err(err).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("chat relay failed")
		writeJSON(w, http.StatusInternalServerError, errorRespWithDetails("Upstream request failed", err.Error()))
		return
	}

	metrics.RelayRequests.WithLabelValues("chat", "ok").Inc()
	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
}
