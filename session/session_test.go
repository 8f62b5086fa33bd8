package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	s := NewSealer("a-long-session-secret", true)
	sealed, err := s.Seal("jwt.token.value")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "jwt.token.value")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "jwt.token.value", plain)
}

func TestOpenRejectsForeignOrTamperedValues(t *testing.T) {
	s := NewSealer("a-long-session-secret", true)
	other := NewSealer("another-session-secret", true)

	sealed, err := other.Seal("token")
	require.NoError(t, err)
	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrInvalidCookie)

	_, err = s.Open("not base64 !!")
	assert.ErrorIs(t, err, ErrInvalidCookie)
	_, err = s.Open("c2hvcnQ")
	assert.ErrorIs(t, err, ErrInvalidCookie)
}

func TestCookieFlow(t *testing.T) {
	s := NewSealer("a-long-session-secret", false)
	rec := httptest.NewRecorder()
	require.NoError(t, s.SetCookie(rec, "tok"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	token, ok := s.TokenFromRequest(r)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	rec = httptest.NewRecorder()
	s.ClearCookie(rec)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestProviderReadsContext(t *testing.T) {
	assert.Empty(t, Provider{}.Token(context.Background()))
	ctx := WithToken(context.Background(), "abc")
	assert.Equal(t, "abc", Provider{}.Token(ctx))
}
