package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/reservations/internal/model"
	"github.com/dukerupert/reservations/internal/store"
	"github.com/dukerupert/reservations/internal/websocket"
)

const notifyTimeout = 15 * time.Second

// Notifier is told about every newly created reservation.
type Notifier interface {
	NotifyReservation(ctx context.Context, r model.Reservation) error
}

type ReservationHandler struct {
	store    *store.ReservationStore
	hub      *websocket.Hub
	notifier Notifier
	logger   *slog.Logger
}

// NewReservationHandler wires the handler. hub and notifier may be nil.
func NewReservationHandler(s *store.ReservationStore, hub *websocket.Hub, notifier Notifier, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{store: s, hub: hub, notifier: notifier, logger: logger}
}

func (h *ReservationHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List()
	if err != nil {
		h.logger.Error("list reservations", "error", err)
		reservationOps.WithLabelValues("list", "error").Inc()
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	reservationOps.WithLabelValues("list", "ok").Inc()
	writeJSON(w, http.StatusOK, list)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeObject(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.store.Create(payload)
	if err != nil {
		h.logger.Error("create reservation", "error", err)
		reservationOps.WithLabelValues("create", "error").Inc()
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	reservationOps.WithLabelValues("create", "ok").Inc()
	h.logger.Info("reservation created", "id", res.ID)

	h.broadcast(websocket.NewMessage("reservation", "created", res.ID, res))
	h.notify(r.Context(), *res)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"reservation": res,
	})
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	removed, err := h.store.Delete(id)
	if errors.Is(err, store.ErrNotFound) {
		reservationOps.WithLabelValues("delete", "not_found").Inc()
		writeError(w, http.StatusNotFound, "Reservations file not found")
		return
	}
	if err != nil {
		h.logger.Error("delete reservation", "id", id, "error", err)
		reservationOps.WithLabelValues("delete", "error").Inc()
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if removed {
		reservationOps.WithLabelValues("delete", "ok").Inc()
		h.logger.Info("reservation deleted", "id", id)
		h.broadcast(websocket.NewMessage("reservation", "deleted", id, nil))
	} else {
		reservationOps.WithLabelValues("delete", "missing").Inc()
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": removed})
}

// notify sends the notice without holding up the response. Failures are
// logged only.
func (h *ReservationHandler) notify(ctx context.Context, res model.Reservation) {
	if h.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		if err := h.notifier.NotifyReservation(ctx, res); err != nil {
			h.logger.Warn("reservation notice failed", "id", res.ID, "error", err)
		}
	}()
}
