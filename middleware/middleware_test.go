package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taquilla/access"
	"taquilla/session"
)

const testSecret = "jwt-test-secret"

func signToken(t *testing.T, secret string, userID string, roles ...string) string {
	t.Helper()
	claims := Claims{
		Username: "ana",
		UserID:   userID,
		Role:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateBearerAndCookie(t *testing.T) {
	sealer := session.NewSealer("session-secret-123", false)
	auth := NewAuth(testSecret, sealer)
	token := signToken(t, testSecret, "u1", "SELLER")

	var seen *Claims
	var seenToken string
	h := auth.Authenticate(func(_ http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		seen = ClaimsFromContext(r.Context())
		seenToken = session.TokenFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h(rec, r, nil)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)
	assert.True(t, seen.HasRole("seller"))
	assert.Equal(t, token, seenToken)

	seen = nil
	cookieRec := httptest.NewRecorder()
	require.NoError(t, sealer.SetCookie(cookieRec, token))
	r = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.AddCookie(cookieRec.Result().Cookies()[0])
	h(httptest.NewRecorder(), r, nil)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)
}

func TestAuthenticateRejects(t *testing.T) {
	auth := NewAuth(testSecret, nil)
	called := false
	h := auth.Authenticate(func(http.ResponseWriter, *http.Request, httprouter.Params) { called = true })

	for name, header := range map[string]string{
		"missing":      "",
		"format":       "Token abc",
		"wrong secret": "Bearer " + signToken(t, "other-secret", "u1"),
	} {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h(rec, r, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
	assert.False(t, called)
}

func TestGate(t *testing.T) {
	auth := NewAuth(testSecret, nil)
	h := Stack(okHandler(), auth.Identity, Gate(access.Default()))

	tests := []struct {
		name     string
		path     string
		roles    []string
		status   int
		location string
	}{
		{"public page", "/eventos", nil, http.StatusOK, ""},
		{"anonymous api backoffice", "/api/backoffice/sales", nil, http.StatusUnauthorized, ""},
		{"client api backoffice", "/api/backoffice/sales", []string{"CLIENT"}, http.StatusForbidden, ""},
		{"seller api backoffice", "/api/backoffice/sales", []string{"SELLER"}, http.StatusOK, ""},
		{"seller admin page", "/backoffice/admin/users", []string{"SELLER"}, http.StatusSeeOther, "/"},
		{"anonymous checkout page", "/checkout/step2?x=1", nil, http.StatusSeeOther, "/login?next=%2Fcheckout%2Fstep2%3Fx%3D1"},
		{"client checkout", "/api/checkout/sessions", []string{"CLIENT"}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.roles != nil {
				r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "u1", tt.roles...))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

func TestVisitorAndOwner(t *testing.T) {
	var owner string
	h := Visitor(false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		owner = Owner(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "visitor:"+cookies[0].Value, owner)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, "visitor:"+cookies[0].Value, owner)

	ctx := WithClaims(r.Context(), &Claims{UserID: "42"})
	assert.Equal(t, "user:42", Owner(ctx))
}

func TestRecoverAndLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Stack(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestLogger(logger), Recover(logger))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var last map[string]any
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &last))
	assert.Equal(t, "request", last["msg"])
	assert.EqualValues(t, 500, last["status"])
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(httprouter.Handle) httprouter.Handle {
		return func(next httprouter.Handle) httprouter.Handle {
			return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
				order = append(order, name)
				next(w, r, ps)
			}
		}
	}
	h := Chain(mw("a"), mw("b"))(func(http.ResponseWriter, *http.Request, httprouter.Params) {
		order = append(order, "handler")
	})
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
