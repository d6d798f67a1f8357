package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUnconfigured means no admin password strategy is available.
	ErrUnconfigured = errors.New("admin credentials are not configured")
	// ErrAmbiguousCredentials means both a password and a hash were supplied.
	ErrAmbiguousCredentials = errors.New("configure either an admin password or a password hash, not both")
)

// PasswordVerifier checks a candidate password against the configured secret.
type PasswordVerifier interface {
	Verify(password string) bool
}

// NewPasswordVerifier picks the verification strategy. Exactly one of
// password or hash must be set; a hash must be a valid bcrypt hash.
func NewPasswordVerifier(password, hash string) (PasswordVerifier, error) {
	switch {
	case password != "" && hash != "":
		return nil, ErrAmbiguousCredentials
	case hash != "":
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("parse admin password hash: %w", err)
		}
		return bcryptVerifier{hash: []byte(hash)}, nil
	case password != "":
		return plaintextVerifier{secret: []byte(password)}, nil
	default:
		return nil, ErrUnconfigured
	}
}

// HashPassword returns a bcrypt hash suitable for the admin password hash
// setting.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

type bcryptVerifier struct {
	hash []byte
}

func (v bcryptVerifier) Verify(password string) bool {
	return bcrypt.CompareHashAndPassword(v.hash, []byte(password)) == nil
}

type plaintextVerifier struct {
	secret []byte
}

func (v plaintextVerifier) Verify(password string) bool {
	return ConstantTimeEqual(password, string(v.secret))
}

// ConstantTimeEqual compares two strings without leaking where they first
// differ or whether their lengths match.
func ConstantTimeEqual(a, b string) bool {
	eq, _ := compareFull([]byte(a), []byte(b))
	return eq
}

// compareFull walks max(len(a), len(b)) bytes, padding the shorter input
// with zeros, and returns the number of positions inspected.
func compareFull(a, b []byte) (bool, int) {
	n := max(len(a), len(b))
	var diff byte
	for i := 0; i < n; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		diff |= x ^ y
	}
	lenEq := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	return subtle.ConstantTimeByteEq(diff, 0)&lenEq == 1, n
}
