package handlers

import (
	"net/http"

	"jarvis-chat/internal/models"
)

// UpstreamStatus is the part of the upstream the health check reports on.
type UpstreamStatus interface {
	Name() string
	Configured() bool
}

type HealthHandler struct {
	upstream UpstreamStatus
}

func NewHealthHandler(upstream UpstreamStatus) *HealthHandler {
	return &HealthHandler{upstream: upstream}
}

// Health always answers 200; a missing credential is reported, not fatal.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{Status: "ok"}
	if h.upstream != nil {
		resp.Provider = h.upstream.Name()
		resp.Configured = h.upstream.Configured()
	}
	writeJSON(w, http.StatusOK, resp)
}
