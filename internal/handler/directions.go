package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/reservations/internal/directions"
)

type DirectionsHandler struct {
	svc    *directions.Service
	logger *slog.Logger
}

func NewDirectionsHandler(svc *directions.Service, logger *slog.Logger) *DirectionsHandler {
	return &DirectionsHandler{svc: svc, logger: logger}
}

// Get proxies the lookup and writes the provider's JSON as is. Upstream
// failures are the one case where error details reach the client.
func (h *DirectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	origin := strings.TrimSpace(r.URL.Query().Get("origin"))
	destination := strings.TrimSpace(r.URL.Query().Get("destination"))
	if origin == "" || destination == "" {
		writeError(w, http.StatusBadRequest, "origin and destination are required")
		return
	}

	body, err := h.svc.Route(r.Context(), origin, destination)
	if err != nil {
		result := "upstream_error"
		if errors.Is(err, directions.ErrUnconfigured) {
			result = "unconfigured"
		}
		directionsRequests.WithLabelValues(result).Inc()
		h.logger.Error("directions lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Directions API error",
			"details": err.Error(),
		})
		return
	}
	directionsRequests.WithLabelValues("ok").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
