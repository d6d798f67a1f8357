package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/reservations/internal/auth"
	"github.com/dukerupert/reservations/internal/store"
)

type AuthHandler struct {
	authn        *auth.Authenticator
	codec        *auth.CookieCodec
	cookieSecure bool
	logger       *slog.Logger
}

func NewAuthHandler(a *auth.Authenticator, codec *auth.CookieCodec, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authn:        a,
		codec:        codec,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess, err := h.authn.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrValidation):
		loginAttempts.WithLabelValues("invalid_request").Inc()
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		loginAttempts.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		loginAttempts.WithLabelValues("error").Inc()
		h.logger.Error("admin login", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	loginAttempts.WithLabelValues("ok").Inc()

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    h.codec.Encode(sess.Token),
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(store.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Logout destroys the session, if any, and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authn.Logout(r.Context(), h.codec.TokenFromRequest(r))

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
