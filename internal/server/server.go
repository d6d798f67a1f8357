package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/reservations/internal/auth"
	"github.com/dukerupert/reservations/internal/config"
	"github.com/dukerupert/reservations/internal/directions"
	"github.com/dukerupert/reservations/internal/email"
	"github.com/dukerupert/reservations/internal/handler"
	"github.com/dukerupert/reservations/internal/middleware"
	"github.com/dukerupert/reservations/internal/store"
	ws "github.com/dukerupert/reservations/internal/websocket"
)

type Server struct {
	cfg           config.Config
	hub           *ws.Hub
	reservationH  *handler.ReservationHandler
	authH         *handler.AuthHandler
	directionsH   *handler.DirectionsHandler
	reservations  *store.ReservationStore
	sessionStore  *store.SessionStore
	authenticator *auth.Authenticator
	cookieCodec   *auth.CookieCodec
	rateLimiter   *middleware.RateLimiter
	authPolicy    middleware.Policy
	apiPolicy     middleware.Policy
	logger        *slog.Logger
}

// New wires every component from cfg. cfg is validated first so a server
// never starts with missing or ambiguous credentials.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	reservations := store.NewReservationStore(cfg.DataFile)
	sessionStore := store.NewSessionStore()
	cookieCodec := auth.NewCookieCodec(cfg.SessionSecret)

	var verifier auth.PasswordVerifier
	if cfg.AuthEnabled {
		v, err := cfg.PasswordVerifier()
		if err != nil {
			return nil, err
		}
		verifier = v
	}
	authenticator := auth.NewAuthenticator(cfg.AdminUsername, verifier, sessionStore, logger.With("component", "auth"))

	var notifier handler.Notifier
	mailer := email.NewClient(cfg.PostmarkToken, cfg.NotifyFrom, cfg.NotifyTo, email.WithAPIURL(cfg.PostmarkURL))
	if mailer.Configured() {
		notifier = mailer
	}

	directionsSvc := directions.NewService(directions.Config{
		APIKey:  cfg.DirectionsAPIKey,
		BaseURL: cfg.DirectionsBaseURL,
	})

	authPolicy := middleware.AuthPolicy
	authPolicy.Limit = cfg.AuthRateLimit
	apiPolicy := middleware.APIPolicy
	apiPolicy.Limit = cfg.APIRateLimit

	return &Server{
		cfg:           cfg,
		hub:           hub,
		reservationH:  handler.NewReservationHandler(reservations, hub, notifier, logger.With("component", "reservation")),
		authH:         handler.NewAuthHandler(authenticator, cookieCodec, cfg.CookieSecure, logger.With("component", "auth_handler")),
		directionsH:   handler.NewDirectionsHandler(directionsSvc, logger.With("component", "directions")),
		reservations:  reservations,
		sessionStore:  sessionStore,
		authenticator: authenticator,
		cookieCodec:   cookieCodec,
		rateLimiter:   middleware.NewRateLimiter(),
		authPolicy:    authPolicy,
		apiPolicy:     apiPolicy,
		logger:        logger,
	}, nil
}

// Close disconnects live feed clients and drops all in-memory sessions and
// rate limit counters.
func (s *Server) Close() {
	s.hub.Close()
	s.sessionStore.Clear()
	s.rateLimiter.Reset()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	apiLimited := s.rateLimited(s.apiPolicy)
	authLimited := s.rateLimited(s.authPolicy)
	admin := s.adminGuard()

	mux.Handle("GET /api/reservations", apiLimited(admin(http.HandlerFunc(s.reservationH.List))))
	mux.Handle("POST /api/reservations", apiLimited(http.HandlerFunc(s.reservationH.Create)))
	mux.Handle("DELETE /api/reservations/{id}", apiLimited(admin(http.HandlerFunc(s.reservationH.Delete))))
	mux.Handle("GET /api/directions", apiLimited(http.HandlerFunc(s.directionsH.Get)))

	if s.cfg.AuthEnabled {
		mux.Handle("POST /admin/login", authLimited(http.HandlerFunc(s.authH.Login)))
		mux.HandleFunc("POST /admin/logout", s.authH.Logout)
	}
	mux.Handle("GET /admin/ws", apiLimited(admin(ws.HandleWebSocket(s.hub, s.cfg.WebSocketOrigins, s.logger.With("component", "websocket")))))

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	logged := middleware.RequestLogger(s.logger.With("component", "http"), s.cfg.TrustProxy)
	return middleware.RequestID(logged(middleware.Metrics(mux)))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// adminGuard is RequireAdmin, or a pass-through when auth is disabled.
func (s *Server) adminGuard() func(http.Handler) http.Handler {
	if !s.cfg.AuthEnabled {
		return middleware.Passthrough
	}
	return middleware.RequireAdmin(s.authenticator, s.cookieCodec)
}

func (s *Server) rateLimited(p middleware.Policy) func(http.Handler) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r, s.cfg.TrustProxy)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, p)
}
