package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"jarvis-chat/internal/metrics"
	"jarvis-chat/internal/models"
	"jarvis-chat/internal/services"
)

// TranscribeHandler converts a recorded voice clip to text so clients
// without a local speech recognizer can still offer voice input.
type TranscribeHandler struct {
	transcriber   services.Transcriber
	maxAudioBytes int64
	logger        zerolog.Logger
}

func NewTranscribeHandler(transcriber services.Transcriber, maxAudioBytes int64, logger zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		transcriber:   transcriber,
		maxAudioBytes: maxAudioBytes,
		logger:        logger,
	}
}

// Transcribe handles POST /api/transcribe. The clip is either the "audio"
// field of a multipart form or the raw request body with an audio/*
// content type. An optional "language" form field or query parameter
// carries the recognizer locale.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		metrics.RelayRequests.WithLabelValues("transcribe", "method_not_allowed").Inc()
		methodNotAllowed(w)
		return
	}

	if h.maxAudioBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes)
	}

	audio, mimeType, language, err := readAudio(r)
	if err != nil {
		metrics.RelayRequests.WithLabelValues("transcribe", "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, errorResp(err.Error()))
		return
	}

	if h.transcriber == nil {
		metrics.RelayRequests.WithLabelValues("transcribe", "misconfigured").Inc()
		writeJSON(w, http.StatusInternalServerError, errorRespWithDetails("Server misconfigured", services.ErrMissingCredential.Error()))
		return
	}

	text, err := h.transcriber.Transcribe(r.Context(), audio, mimeType, language)
	if err != nil {
		if errors.Is(err, services.ErrMissingCredential) {
			metrics.RelayRequests.WithLabelValues("transcribe", "misconfigured").Inc()
			writeJSON(w, http.StatusInternalServerError, errorRespWithDetails("Server misconfigured", err.Error()))
			return
		}

		metrics.RelayRequests.WithLabelValues("transcribe", "upstream_error").Inc()
		h.logger.Error().
			Err(err).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Int("audio_bytes", len(audio)).
			Msg("transcription failed")
		writeJSON(w, http.StatusInternalServerError, errorRespWithDetails("Transcription failed", err.Error()))
		return
	}

	metrics.RelayRequests.WithLabelValues("transcribe", "ok").Inc()
	writeJSON(w, http.StatusOK, models.TranscribeResponse{Text: text})
}

var errAudioRequired = errors.New("Audio required")

func readAudio(r *http.Request) ([]byte, string, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	language := r.URL.Query().Get("language")

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, "", "", errors.New("Invalid multipart body")
		}
		if lang := r.FormValue("language"); lang != "" {
			language = lang
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			return nil, "", "", errAudioRequired
		}
		defer file.Close()

		audio, err := io.ReadAll(file)
		if err != nil {
			return nil, "", "", errors.New("Invalid audio upload")
		}
		if len(audio) == 0 {
			return nil, "", "", errAudioRequired
		}
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = "audio/wav"
		}
		return audio, mimeType, language, nil
	}

	if !strings.HasPrefix(mediaType, "audio/") {
		return nil, "", "", errors.New("Content-Type must be audio/* or multipart/form-data")
	}
	audio, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", "", errors.New("Audio too large or unreadable")
	}
	if len(audio) == 0 {
		return nil, "", "", errAudioRequired
	}
	return audio, mediaType, language, nil
}
