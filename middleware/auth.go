package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"

	"taquilla/session"
	"taquilla/utils"
)

// JWT claims issued by the remote API.
type Claims struct {
	Username string   `json:"username"`
	UserID   string   `json:"userId"`
	Role     []string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Role {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

var ErrMissingToken = errors.New("missing token")

type claimsKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns nil for anonymous requests.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// Auth verifies bearer tokens or the sealed session cookie.
type Auth struct {
	secret []byte
	sealer *session.Sealer
}

func NewAuth(secret string, sealer *session.Sealer) *Auth {
	return &Auth{secret: []byte(secret), sealer: sealer}
}

func (a *Auth) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("unauthorized: invalid token")
	}
	return claims, nil
}

// tokenFromRequest prefers the Authorization header over the cookie.
func (a *Auth) tokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) < 8 || !strings.EqualFold(h[:7], "Bearer ") {
			return "", errors.New("invalid token format")
		}
		return strings.TrimSpace(h[7:]), nil
	}
	if a.sealer != nil {
		if token, ok := a.sealer.TokenFromRequest(r); ok {
			return token, nil
		}
	}
	return "", ErrMissingToken
}

// Identify attaches claims and token to the request when they verify.
func (a *Auth) Identify(r *http.Request) (*http.Request, error) {
	if ClaimsFromContext(r.Context()) != nil {
		return r, nil
	}
	token, err := a.tokenFromRequest(r)
	if err != nil {
		return r, err
	}
	claims, err := a.ValidateJWT(token)
	if err != nil {
		return r, err
	}
	ctx := session.WithToken(WithClaims(r.Context(), claims), token)
	return r.WithContext(ctx), nil
}

func (a *Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		r, err := a.Identify(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, utils.CodeUnauthenticated, "Inicia sesión para continuar")
			return
		}
		next(w, r, ps)
	}
}

func (a *Auth) OptionalAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		r, _ = a.Identify(r)
		next(w, r, ps)
	}
}

// Identity is the http.Handler form of OptionalAuth, applied ahead of the gate.
func (a *Auth) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _ = a.Identify(r)
		next.ServeHTTP(w, r)
	})
}
