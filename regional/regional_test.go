package regional

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taquilla/middleware"
	"taquilla/models"
)

func TestValidate(t *testing.T) {
	cfg := models.RegionalConfig{Locale: "en-us", Currency: "usd", TimeZone: "America/New_York"}
	require.NoError(t, Validate(&cfg))
	assert.Equal(t, "en-US", cfg.Locale)
	assert.Equal(t, "USD", cfg.Currency)

	bad := []struct {
		cfg  models.RegionalConfig
		want error
	}{
		{models.RegionalConfig{Locale: "??", Currency: "USD", TimeZone: "UTC"}, ErrInvalidLocale},
		{models.RegionalConfig{Locale: "es", Currency: "XYZQ", TimeZone: "UTC"}, ErrInvalidCurrency},
		{models.RegionalConfig{Locale: "es", Currency: "EUR", TimeZone: "Mars/Olympus"}, ErrInvalidTimeZone},
		{models.RegionalConfig{Locale: "es", Currency: "EUR"}, ErrInvalidTimeZone},
	}
	for _, tt := range bad {
		c := tt.cfg
		assert.ErrorIs(t, Validate(&c), tt.want)
	}
}

func TestFormatterPrice(t *testing.T) {
	f := NewFormatter(models.RegionalConfig{Locale: "en-US", Currency: "USD", TimeZone: "UTC"})
	assert.Contains(t, f.Price(1234.5, "USD"), "1,234.50")
	assert.Contains(t, f.Price(1234.5, ""), "1,234.50")

	yen := f.Price(1234, "JPY")
	assert.Contains(t, yen, "1,234")
	assert.NotContains(t, yen, ".")
}

func TestFormatterFallsBackOnBadConfig(t *testing.T) {
	f := NewFormatter(models.RegionalConfig{Locale: "??", Currency: "nope", TimeZone: "nowhere"})
	assert.NotEmpty(t, f.Price(10, ""))
	parse := func(s string) (time.Time, bool) {
		t, err := time.Parse(time.RFC3339, s)
		return t, err == nil
	}
	assert.Equal(t, "2025-06-01 20:00", f.Date("2025-06-01T20:00:00Z", parse))
	assert.Equal(t, "mañana", f.Date("mañana", parse))
}

func TestFormatterDateUsesZone(t *testing.T) {
	f := NewFormatter(models.DefaultRegionalConfig())
	parse := func(s string) (time.Time, bool) {
		t, err := time.Parse(time.RFC3339, s)
		return t, err == nil
	}
	assert.Equal(t, "2025-06-01 15:00", f.Date("2025-06-01T20:00:00Z", parse))
}

func TestFormatterForUsesOwnerConfig(t *testing.T) {
	store := NewMemoryStore()
	h := NewHandler(store)
	ctx := middleware.WithClaims(t.Context(), &middleware.Claims{UserID: "9"})
	require.NoError(t, store.Put(ctx, "user:9", models.RegionalConfig{Locale: "en-US", Currency: "USD", TimeZone: "UTC"}))

	assert.Equal(t, "en-US", h.FormatterFor(ctx).Config().Locale)
	assert.Equal(t, "es-CO", h.FormatterFor(t.Context()).Config().Locale)
}

func TestHandlers(t *testing.T) {
	h := NewHandler(NewMemoryStore())
	router := httprouter.New()
	router.GET("/api/regional", h.Get)
	router.PUT("/api/regional", h.Put)
	srv := middleware.Visitor(false)(router)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/regional", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"locale":"es-CO","currency":"COP","timeZone":"America/Bogota"}`, rec.Body.String())
	visitor := rec.Result().Cookies()[0]

	r := httptest.NewRequest(http.MethodPut, "/api/regional", strings.NewReader(`{"locale":"en-US","currency":"usd","timeZone":"UTC"}`))
	r.AddCookie(visitor)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	r = httptest.NewRequest(http.MethodGet, "/api/regional", nil)
	r.AddCookie(visitor)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, r)
	assert.JSONEq(t, `{"locale":"en-US","currency":"USD","timeZone":"UTC"}`, rec.Body.String())
}
