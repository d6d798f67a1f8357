package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/reservations/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAuthenticator(t *testing.T, password, hash string) *Authenticator {
	t.Helper()
	v, err := NewPasswordVerifier(password, hash)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return NewAuthenticator("admin", v, store.NewSessionStore(), testLogger())
}

func TestLoginPlaintext(t *testing.T) {
	a := setupAuthenticator(t, "s3cret-pass", "")
	ctx := context.Background()

	sess, err := a.Login(ctx, "admin", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !sess.IsAdmin {
		t.Error("expected admin session")
	}
	if sess.Token == "" {
		t.Error("expected session token")
	}
}

func TestLoginHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate hash: %v", err)
	}
	a := setupAuthenticator(t, "", string(hash))
	ctx := context.Background()

	if _, err := a.Login(ctx, "admin", "hashed-pass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := a.Login(ctx, "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginWrongUsername(t *testing.T) {
	a := setupAuthenticator(t, "s3cret-pass", "")

	_, err := a.Login(context.Background(), "root", "s3cret-pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	a := setupAuthenticator(t, "s3cret-pass", "")

	_, err := a.Login(context.Background(), "admin", "s3cret-pasS")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginMissingFields(t *testing.T) {
	a := setupAuthenticator(t, "s3cret-pass", "")
	ctx := context.Background()

	if _, err := a.Login(ctx, "", "s3cret-pass"); !errors.Is(err, ErrValidation) {
		t.Errorf("empty username err = %v, want ErrValidation", err)
	}
	if _, err := a.Login(ctx, "admin", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty password err = %v, want ErrValidation", err)
	}
}

func TestLoginUnconfigured(t *testing.T) {
	a := NewAuthenticator("admin", nil, store.NewSessionStore(), testLogger())

	_, err := a.Login(context.Background(), "admin", "anything")
	if !errors.Is(err, ErrUnconfigured) {
		t.Errorf("err = %v, want ErrUnconfigured", err)
	}
}

func TestRequireAdminLifecycle(t *testing.T) {
	a := setupAuthenticator(t, "s3cret-pass", "")
	ctx := context.Background()

	if _, err := a.RequireAdmin(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("before login err = %v, want ErrUnauthorized", err)
	}
	if _, err := a.RequireAdmin(ctx, "made-up-token"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("unknown token err = %v, want ErrUnauthorized", err)
	}

	sess, err := a.Login(ctx, "admin", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := a.RequireAdmin(ctx, sess.Token); err != nil {
		t.Errorf("after login err = %v, want nil", err)
	}

	a.Logout(ctx, sess.Token)
	if _, err := a.RequireAdmin(ctx, sess.Token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("after logout err = %v, want ErrUnauthorized", err)
	}

	// Logout is idempotent
	a.Logout(ctx, sess.Token)
	a.Logout(ctx, "")
}

func TestRequireAdminRejectsNonAdminSession(t *testing.T) {
	ss := store.NewSessionStore()
	v, _ := NewPasswordVerifier("pw", "")
	a := NewAuthenticator("admin", v, ss, testLogger())

	sess, _ := ss.Create(false)
	if _, err := a.RequireAdmin(context.Background(), sess.Token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestReloginCreatesFreshToken(t *testing.T) {
	a := setupAuthenticator(t, "s3cret-pass", "")
	ctx := context.Background()

	first, _ := a.Login(ctx, "admin", "s3cret-pass")
	second, _ := a.Login(ctx, "admin", "s3cret-pass")
	if first.Token == second.Token {
		t.Error("expected a new token on re-login")
	}
}
