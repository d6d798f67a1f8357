package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dukerupert/reservations/internal/config"
	"github.com/dukerupert/reservations/internal/logging"
	"github.com/dukerupert/reservations/internal/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP server (default)",
		Action: serve,
	}
}

// serveFlags are registered on the root command and inherited by serve.
func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "port",
			Usage:   "HTTP listen port",
			Sources: cli.EnvVars("PORT"),
			Value:   "3000",
		},
		&cli.StringFlag{
			Name:    "data-file",
			Usage:   "Path of the reservations JSON file",
			Sources: cli.EnvVars("RESERVATIONS_FILE"),
			Value:   "reservations.json",
		},
		&cli.StringFlag{
			Name:    "static-dir",
			Usage:   "Serve static files from this directory at /",
			Sources: cli.EnvVars("STATIC_DIR"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Sources: cli.EnvVars("LOG_FORMAT"),
			Value:   "text",
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Usage:   "Grace period for in-flight requests on shutdown",
			Sources: cli.EnvVars("SHUTDOWN_TIMEOUT"),
			Value:   5 * time.Second,
		},
		&cli.BoolFlag{
			Name:    "auth",
			Usage:   "Require an admin session for protected routes",
			Sources: cli.EnvVars("AUTH_ENABLED"),
			Value:   true,
		},
		&cli.StringFlag{
			Name:    "admin-username",
			Usage:   "Admin login name",
			Sources: cli.EnvVars("ADMIN_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "Admin password (plaintext); prefer --admin-password-hash",
			Sources: cli.EnvVars("ADMIN_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "admin-password-hash",
			Usage:   "bcrypt hash of the admin password (see hash-password)",
			Sources: cli.EnvVars("ADMIN_PASSWORD_HASH"),
		},
		&cli.StringFlag{
			Name:    "session-secret",
			Usage:   "Secret used to sign session cookies (at least 32 bytes)",
			Sources: cli.EnvVars("SESSION_SECRET"),
		},
		&cli.BoolFlag{
			Name:    "cookie-secure",
			Usage:   "Mark the session cookie Secure",
			Sources: cli.EnvVars("COOKIE_SECURE"),
		},
		&cli.BoolFlag{
			Name:    "trust-proxy",
			Usage:   "Take the client address from X-Forwarded-For / CF-Connecting-IP",
			Sources: cli.EnvVars("TRUST_PROXY"),
		},
		&cli.StringSliceFlag{
			Name:    "ws-origin",
			Usage:   "Extra origin pattern allowed on the admin live feed (repeatable)",
			Sources: cli.EnvVars("WS_ORIGINS"),
		},
		&cli.StringFlag{
			Name:    "directions-api-key",
			Usage:   "API key for the upstream directions service",
			Sources: cli.EnvVars("DIRECTIONS_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "directions-url",
			Usage:   "Override the upstream directions endpoint",
			Sources: cli.EnvVars("DIRECTIONS_URL"),
		},
		&cli.StringFlag{
			Name:    "postmark-token",
			Usage:   "Postmark server token for new-reservation notices",
			Sources: cli.EnvVars("POSTMARK_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "notify-from",
			Usage:   "Sender address of new-reservation notices",
			Sources: cli.EnvVars("NOTIFY_FROM"),
		},
		&cli.StringFlag{
			Name:    "notify-to",
			Usage:   "Recipient of new-reservation notices",
			Sources: cli.EnvVars("NOTIFY_TO"),
		},
		&cli.IntFlag{
			Name:    "auth-rate-limit",
			Usage:   "Login attempts allowed per client per 15 minutes",
			Sources: cli.EnvVars("AUTH_RATE_LIMIT"),
			Value:   20,
		},
		&cli.IntFlag{
			Name:    "api-rate-limit",
			Usage:   "API requests allowed per client per minute",
			Sources: cli.EnvVars("API_RATE_LIMIT"),
			Value:   120,
		},
	}
}

func configFromCommand(cmd *cli.Command) config.Config {
	return config.Config{
		Port:              cmd.String("port"),
		DataFile:          cmd.String("data-file"),
		StaticDir:         cmd.String("static-dir"),
		LogLevel:          cmd.String("log-level"),
		LogFormat:         cmd.String("log-format"),
		ShutdownTimeout:   cmd.Duration("shutdown-timeout"),
		AuthEnabled:       cmd.Bool("auth"),
		AdminUsername:     cmd.String("admin-username"),
		AdminPassword:     cmd.String("admin-password"),
		AdminPasswordHash: cmd.String("admin-password-hash"),
		SessionSecret:     cmd.String("session-secret"),
		CookieSecure:      cmd.Bool("cookie-secure"),
		TrustProxy:        cmd.Bool("trust-proxy"),
		WebSocketOrigins:  cmd.StringSlice("ws-origin"),
		DirectionsAPIKey:  cmd.String("directions-api-key"),
		DirectionsBaseURL: cmd.String("directions-url"),
		PostmarkToken:     cmd.String("postmark-token"),
		NotifyFrom:        cmd.String("notify-from"),
		NotifyTo:          cmd.String("notify-to"),
		AuthRateLimit:     cmd.Int("auth-rate-limit"),
		APIRateLimit:      cmd.Int("api-rate-limit"),
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg := configFromCommand(cmd)
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	if !cfg.AuthEnabled {
		logger.Warn("auth disabled; admin routes are open")
	}
	if cfg.AdminPassword != "" {
		logger.Warn("plaintext admin password configured; prefer --admin-password-hash")
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr, "data_file", cfg.DataFile, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
