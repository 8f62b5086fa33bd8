package idempotency

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taquilla/middleware"
	"taquilla/utils"
)

func counting(calls *atomic.Int32, status int) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		n := calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		utils.RespondWithJSON(w, status, map[string]any{"call": n, "body": string(body)})
	}
}

func post(h httprouter.Handle, key, owner, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/checkout/sessions/s1/pay", strings.NewReader(body))
	if key != "" {
		r.Header.Set(HeaderKey, key)
	}
	if owner != "" {
		r = r.WithContext(middleware.WithClaims(r.Context(), &middleware.Claims{UserID: owner}))
	}
	rec := httptest.NewRecorder()
	h(rec, r, nil)
	return rec
}

func TestReplaysFirstResponse(t *testing.T) {
	var calls atomic.Int32
	h := New(NewMemoryStore(), time.Hour).Handle(counting(&calls, http.StatusOK))

	first := post(h, "k1", "u1", `{"a":1}`)
	second := post(h, "k1", "u1", `{"a":1}`)

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestKeysAreScopedToOwner(t *testing.T) {
	var calls atomic.Int32
	h := New(NewMemoryStore(), time.Hour).Handle(counting(&calls, http.StatusOK))

	post(h, "k1", "u1", "")
	rec := post(h, "k1", "u2", "")
	assert.EqualValues(t, 2, calls.Load())
	assert.Empty(t, rec.Header().Get(HeaderReplayed))
}

func TestDifferentBodySameKeyConflicts(t *testing.T) {
	var calls atomic.Int32
	h := New(NewMemoryStore(), time.Hour).Handle(counting(&calls, http.StatusOK))

	post(h, "k1", "u1", `{"a":1}`)
	rec := post(h, "k1", "u1", `{"a":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeKeyConflict)
	assert.EqualValues(t, 1, calls.Load())
}

func TestServerErrorsAreNotStored(t *testing.T) {
	var calls atomic.Int32
	h := New(NewMemoryStore(), time.Hour).Handle(counting(&calls, http.StatusBadGateway))

	post(h, "k1", "u1", "")
	post(h, "k1", "u1", "")
	assert.EqualValues(t, 2, calls.Load())
}

func TestPanicReleasesKey(t *testing.T) {
	var calls atomic.Int32
	guard := New(NewMemoryStore(), time.Hour)
	panicking := guard.Handle(func(http.ResponseWriter, *http.Request, httprouter.Params) {
		calls.Add(1)
		panic("pasarela caída")
	})

	assert.PanicsWithValue(t, "pasarela caída", func() {
		post(panicking, "k1", "u1", `{"a":1}`)
	})

	rec := post(guard.Handle(counting(&calls, http.StatusOK)), "k1", "u1", `{"a":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderReplayed))
	assert.EqualValues(t, 2, calls.Load())
}

func TestInFlightRequestConflicts(t *testing.T) {
	store := NewMemoryStore()
	g := New(store, time.Hour)
	_, reserved, err := store.Reserve(context.Background(), Record{
		Key:         "user:u1|k1",
		RequestHash: requestHash(httptest.NewRequest(http.MethodPost, "/api/checkout/sessions/s1/pay", nil), "user:u1", nil),
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, reserved)

	var calls atomic.Int32
	rec := post(g.Handle(counting(&calls, http.StatusOK)), "k1", "", "")
	// anonymous caller has a different owner, so it gets its own record
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = post(g.Handle(counting(&calls, http.StatusOK)), "k1", "u1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeInProgress)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestNoHeaderPassesThrough(t *testing.T) {
	var calls atomic.Int32
	h := New(NewMemoryStore(), time.Hour).Handle(counting(&calls, http.StatusOK))
	post(h, "", "u1", "")
	post(h, "", "u1", "")
	assert.EqualValues(t, 2, calls.Load())
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, reserved, _ := store.Reserve(ctx, Record{Key: "k", ExpiresAt: now.Add(time.Minute)})
	require.True(t, reserved)
	_, reserved, _ = store.Reserve(ctx, Record{Key: "k", ExpiresAt: now.Add(time.Minute)})
	assert.False(t, reserved)

	now = now.Add(2 * time.Minute)
	_, reserved, _ = store.Reserve(ctx, Record{Key: "k", ExpiresAt: now.Add(time.Minute)})
	assert.True(t, reserved)
}
