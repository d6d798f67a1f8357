// Package config holds the runtime settings of the reservation server and
// validates them at startup. Values come from CLI flags backed by
// environment variables; no secret has a default.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/reservations/internal/auth"
)

// MinSessionSecretLen is the shortest accepted cookie signing secret.
const MinSessionSecretLen = 32

var (
	ErrMissingUsername   = errors.New("admin username is required when auth is enabled")
	ErrWeakSessionSecret = fmt.Errorf("session secret must be at least %d bytes", MinSessionSecretLen)
	ErrInvalidRateLimit  = errors.New("rate limits must be positive")
	ErrMissingDataFile   = errors.New("reservations file path is required")
)

// Config is the full server configuration.
type Config struct {
	Port            string
	DataFile        string
	StaticDir       string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	AuthEnabled       bool
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	SessionSecret     string
	CookieSecure      bool
	TrustProxy        bool

	// WebSocketOrigins are extra origins allowed on the admin live feed.
	WebSocketOrigins []string

	DirectionsAPIKey  string
	DirectionsBaseURL string

	// New-reservation notices; disabled unless token and recipient are set.
	PostmarkToken string
	PostmarkURL   string
	NotifyFrom    string
	NotifyTo      string

	AuthRateLimit int
	APIRateLimit  int
}

// Validate rejects incomplete or ambiguous configurations. With auth
// enabled exactly one of AdminPassword or AdminPasswordHash must be set.
func (c Config) Validate() error {
	if c.DataFile == "" {
		return ErrMissingDataFile
	}
	if c.AuthRateLimit <= 0 || c.APIRateLimit <= 0 {
		return ErrInvalidRateLimit
	}
	if !c.AuthEnabled {
		return nil
	}
	if c.AdminUsername == "" {
		return ErrMissingUsername
	}
	if _, err := c.PasswordVerifier(); err != nil {
		return err
	}
	if len(c.SessionSecret) < MinSessionSecretLen {
		return ErrWeakSessionSecret
	}
	return nil
}

// PasswordVerifier builds the admin password strategy.
func (c Config) PasswordVerifier() (auth.PasswordVerifier, error) {
	return auth.NewPasswordVerifier(c.AdminPassword, c.AdminPasswordHash)
}
