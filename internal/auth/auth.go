package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/reservations/internal/model"
	"github.com/dukerupert/reservations/internal/store"
)

var (
	// ErrValidation means the login request is missing a username or password.
	ErrValidation = errors.New("username and password are required")
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUnauthorized means there is no live admin session for the token.
	ErrUnauthorized = errors.New("unauthorized")
)

// Authenticator checks admin credentials and owns the admin session
// lifecycle on top of a SessionStore.
type Authenticator struct {
	username string
	verifier PasswordVerifier
	sessions *store.SessionStore
	logger   *slog.Logger
}

// NewAuthenticator creates an authenticator. A nil verifier or empty
// username makes every login fail with ErrUnconfigured.
func NewAuthenticator(username string, verifier PasswordVerifier, sessions *store.SessionStore, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		username: username,
		verifier: verifier,
		sessions: sessions,
		logger:   logger,
	}
}

// Login verifies the credentials and creates a fresh admin session.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if username == "" || password == "" {
		return nil, ErrValidation
	}
	if a.verifier == nil || a.username == "" {
		a.logger.ErrorContext(ctx, "login attempted without configured credentials")
		return nil, ErrUnconfigured
	}

	// Both checks always run so a wrong username costs the same as a wrong password.
	userOK := ConstantTimeEqual(username, a.username)
	passOK := a.verifier.Verify(password)
	if !userOK || !passOK {
		a.logger.WarnContext(ctx, "admin login failed")
		return nil, ErrInvalidCredentials
	}

	a.sessions.DeleteExpired()
	sess, err := a.sessions.Create(true)
	if err != nil {
		a.logger.ErrorContext(ctx, "create session", "error", err)
		return nil, err
	}
	a.logger.InfoContext(ctx, "admin logged in")
	return sess, nil
}

// Logout destroys the session. Unknown tokens are ignored.
func (a *Authenticator) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	a.sessions.Delete(token)
	a.logger.InfoContext(ctx, "admin logged out")
}

// RequireAdmin returns the session for token iff it is live and carries the
// admin flag.
func (a *Authenticator) RequireAdmin(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	sess := a.sessions.GetByToken(token)
	if sess == nil || !sess.IsAdmin {
		return nil, ErrUnauthorized
	}
	return sess, nil
}
