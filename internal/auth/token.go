package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/civicfeed/civicfeed/internal/errors"
)

// GenerateAdminToken creates a random admin token plus the bcrypt hash to
// store in ADMIN_TOKEN_HASH. The raw token is shown once and never stored.
func GenerateAdminToken() (rawToken string, hash string, err error) {
	secret := randomToken(32)
	if secret == "" {
		return "", "", fmt.Errorf("failed to generate token")
	}
	rawToken = "cf_" + secret
	h, err := bcrypt.GenerateFromPassword([]byte(rawToken), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return rawToken, string(h), nil
}

// VerifyAdminToken compares a presented token against the configured bcrypt
// hash. An empty hash means admin endpoints are disabled.
func VerifyAdminToken(hash, token string) error {
	if hash == "" || token == "" {
		return apperrors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return apperrors.ErrUnauthorized
	}
	return nil
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	// URL-safe base64 without padding, then trim to n chars
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}
