// Package session keeps the remote API token in a sealed cookie and makes it
// available to outbound calls through the request context.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	CookieName = "taquilla_session"
	nonceSize  = 24
	maxAge     = 12 * time.Hour
)

var ErrInvalidCookie = errors.New("session: invalid cookie")

// Sealer encrypts and authenticates cookie values with a key derived from
// the configured secret.
type Sealer struct {
	key    [32]byte
	secure bool
	rand   io.Reader
}

func NewSealer(secret string, secure bool) *Sealer {
	return &Sealer{key: sha256.Sum256([]byte(secret)), secure: secure, rand: rand.Reader}
}

func (s *Sealer) Seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidCookie
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrInvalidCookie
	}
	return string(plain), nil
}

// SetCookie stores the sealed token on the response.
func (s *Sealer) SetCookie(w http.ResponseWriter, token string) error {
	sealed, err := s.Seal(token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Sealer) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the token in the session cookie, if it opens.
func (s *Sealer) TokenFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	token, err := s.Open(c.Value)
	if err != nil {
		return "", false
	}
	return token, true
}

type tokenKey struct{}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Provider hands the per-request token to the API client.
type Provider struct{}

func (Provider) Token(ctx context.Context) string { return TokenFromContext(ctx) }
