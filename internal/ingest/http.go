package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"alertflow/internal/config"
	"alertflow/internal/domain"
)

// AlertService receives decoded lifecycle requests from ingest interfaces.
// Params: create payloads and actor transitions.
// Returns: alert snapshots and lookup flags.
type AlertService interface {
	Create(ctx context.Context, request domain.CreateRequest) (domain.Alert, error)
	Acknowledge(ctx context.Context, alertID, actor string) (domain.Alert, bool)
	Resolve(ctx context.Context, alertID, actor, notes string) (domain.Alert, bool)
	ActiveAlerts() []domain.Alert
	Stats() domain.Stats
}

// HTTPHandler decodes JSON lifecycle requests and forwards them to the service.
// Params: service, max body limit, and logger for encode failures.
// Returns: HTTP API route set.
type HTTPHandler struct {
	service     AlertService
	maxBodySize int64
	logger      *slog.Logger
}

// NewHTTPHandler creates the API handler.
// Params: alert service, max request body size in bytes, and logger.
// Returns: configured handler.
func NewHTTPHandler(service AlertService, maxBodySize int64, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{service: service, maxBodySize: maxBodySize, logger: logger}
}

// Register mounts API routes on the mux under the configured prefix.
// Params: mux and HTTP ingest config.
// Returns: routes registered as a side effect.
func (h *HTTPHandler) Register(mux *http.ServeMux, cfg config.HTTPIngestConfig) {
	prefix := strings.TrimRight(cfg.APIPrefix, "/")
	mux.HandleFunc("POST "+prefix+"/alerts", h.handleCreate)
	mux.HandleFunc("GET "+prefix+"/alerts", h.handleListActive)
	mux.HandleFunc("POST "+prefix+"/alerts/{id}/acknowledge", h.handleAcknowledge)
	mux.HandleFunc("POST "+prefix+"/alerts/{id}/resolve", h.handleResolve)
	mux.HandleFunc("GET "+prefix+"/stats", h.handleStats)
}

// handleCreate accepts one alert creation request.
// Suppressed and deduplicated requests still return 202 with the
// owning alert id.
// Params: HTTP request/response writer pair.
// Returns: 202 with id/status or 400 on invalid payload.
func (h *HTTPHandler) handleCreate(writer http.ResponseWriter, request *http.Request) {
	body, ok := h.readBody(writer, request)
	if !ok {
		return
	}
	createRequest, err := domain.DecodeCreateRequest(body)
	if err != nil {
		h.writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.service.Create(request.Context(), createRequest)
	if err != nil {
		h.writeError(writer, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(writer, http.StatusAccepted, map[string]string{
		"id":     alert.ID,
		"status": string(alert.Status),
	})
}

// handleAcknowledge transitions one alert to acknowledged.
// Params: HTTP request/response writer pair.
// Returns: 200 with alert, 404 for unknown or non-actionable ids.
func (h *HTTPHandler) handleAcknowledge(writer http.ResponseWriter, request *http.Request) {
	body, ok := h.readBody(writer, request)
	if !ok {
		return
	}
	actorRequest, err := domain.DecodeActorRequest(body)
	if err != nil {
		h.writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	alert, found := h.service.Acknowledge(request.Context(), request.PathValue("id"), actorRequest.Actor)
	if !found {
		h.writeError(writer, http.StatusNotFound, "alert not found or not active")
		return
	}
	h.writeJSON(writer, http.StatusOK, alert)
}

// handleResolve transitions one alert to resolved.
// Params: HTTP request/response writer pair.
// Returns: 200 with alert, 404 for unknown or already-terminal ids.
func (h *HTTPHandler) handleResolve(writer http.ResponseWriter, request *http.Request) {
	body, ok := h.readBody(writer, request)
	if !ok {
		return
	}
	actorRequest, err := domain.DecodeActorRequest(body)
	if err != nil {
		h.writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	alert, found := h.service.Resolve(request.Context(), request.PathValue("id"), actorRequest.Actor, actorRequest.Notes)
	if !found {
		h.writeError(writer, http.StatusNotFound, "alert not found or already terminal")
		return
	}
	h.writeJSON(writer, http.StatusOK, alert)
}

// handleListActive returns all active alerts sorted by creation time.
// Params: HTTP request/response writer pair.
// Returns: 200 with alert array.
func (h *HTTPHandler) handleListActive(writer http.ResponseWriter, _ *http.Request) {
	alerts := h.service.ActiveAlerts()
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	h.writeJSON(writer, http.StatusOK, alerts)
}

// handleStats returns lifecycle counters.
// Params: HTTP request/response writer pair.
// Returns: 200 with stats document.
func (h *HTTPHandler) handleStats(writer http.ResponseWriter, _ *http.Request) {
	h.writeJSON(writer, http.StatusOK, h.service.Stats())
}

// readBody reads one size-limited request body.
// Params: HTTP request/response writer pair.
// Returns: body bytes and false when reading already wrote an error.
func (h *HTTPHandler) readBody(writer http.ResponseWriter, request *http.Request) ([]byte, bool) {
	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		h.writeError(writer, http.StatusBadRequest, "request body unreadable or too large")
		return nil, false
	}
	return body, true
}

// writeJSON writes one JSON response document.
// Params: writer, status code, and payload.
// Returns: response written as a side effect.
func (h *HTTPHandler) writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(payload); err != nil && h.logger != nil {
		h.logger.Warn("api response encode failed", "error", err.Error())
	}
}

// writeError writes one JSON error document.
// Params: writer, status code, and message.
// Returns: response written as a side effect.
func (h *HTTPHandler) writeError(writer http.ResponseWriter, status int, message string) {
	h.writeJSON(writer, status, map[string]string{"error": message})
}
