package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_operations_total",
			Help: "Reservation store operations by kind and outcome",
		},
		[]string{"op", "result"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_admin_login_attempts_total",
			Help: "Admin login attempts by outcome",
		},
		[]string{"result"},
	)

	directionsRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_directions_requests_total",
			Help: "Directions proxy calls by outcome",
		},
		[]string{"result"},
	)
)
