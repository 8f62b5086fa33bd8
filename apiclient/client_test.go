package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceServer answers with the given statuses in order, repeating the last one.
func sequenceServer(t *testing.T, statuses []int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		status := statuses[min(n, len(statuses))-1]
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = io.WriteString(w, body)
			return
		}
		_, _ = io.WriteString(w, `{"message":"boom"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(baseURL string, opts ...Option) *Client {
	return New(baseURL, append([]Option{WithRetryDelay(time.Millisecond)}, opts...)...)
}

func TestDoRetriesServerErrorsUntilSuccess(t *testing.T) {
	srv, calls := sequenceServer(t, []int{500, 503, 200}, `{"ok":true}`)
	c := newTestClient(srv.URL)

	res, err := c.Do(context.Background(), Request{URL: "/thing", Retries: 2})
	require.NoError(t, err)

	var out struct{ OK bool }
	require.NoError(t, res.Decode(&out))
	assert.True(t, out.OK)
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestDoGivesUpWhenRetriesExhausted(t *testing.T) {
	srv, calls := sequenceServer(t, []int{500, 500, 200}, `{"ok":true}`)
	c := newTestClient(srv.URL)

	_, err := c.Do(context.Background(), Request{URL: "/thing", Retries: 1})
	require.Error(t, err)

	httpErr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 500, httpErr.Status)
	assert.Equal(t, "Internal Server Error", httpErr.StatusText)
	assert.Equal(t, map[string]any{"message": "boom"}, httpErr.Details)
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := sequenceServer(t, []int{404}, "")
	c := newTestClient(srv.URL)

	_, err := c.Do(context.Background(), Request{URL: "/missing", Retries: 3})

	httpErr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 404, httpErr.Status)
	assert.False(t, httpErr.Retryable())
	assert.Equal(t, srv.URL+"/missing", httpErr.URL)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestDoRetriesTooManyRequests(t *testing.T) {
	srv, calls := sequenceServer(t, []int{429, 200}, `[]`)
	c := newTestClient(srv.URL)

	_, err := c.Do(context.Background(), Request{URL: "/x", Retries: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestDoTextDetailsAndBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = io.WriteString(w, "hola")
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, "bad input")
		}
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)
	ctx := context.Background()

	res, err := c.Do(ctx, Request{URL: "/text"})
	require.NoError(t, err)
	assert.Equal(t, "hola", res.Text)
	assert.Nil(t, res.JSON)

	res, err = c.Do(ctx, Request{Method: http.MethodDelete, URL: "/empty"})
	require.NoError(t, err)
	assert.True(t, res.NoContent)

	_, err = c.Do(ctx, Request{URL: "/bad"})
	httpErr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, "bad input", httpErr.Details)
}

func TestDoSendsHeadersAndBody(t *testing.T) {
	var got *http.Request
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	type ctxKey struct{}
	provider := TokenProviderFunc(func(ctx context.Context) string {
		tok, _ := ctx.Value(ctxKey{}).(string)
		return tok
	})
	c := newTestClient(srv.URL, WithTokenProvider(provider))

	ctx := context.WithValue(context.Background(), ctxKey{}, "secret-token")
	extra := http.Header{}
	extra.Set("X-Trace", "abc")
	_, err := c.Do(ctx, Request{Method: http.MethodPost, URL: "items", Body: map[string]int{"n": 1}, Headers: extra})
	require.NoError(t, err)

	assert.Equal(t, "/items", got.URL.Path)
	assert.Equal(t, "Bearer secret-token", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "abc", got.Header.Get("X-Trace"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
	assert.JSONEq(t, `{"n":1}`, gotBody)

	_, err = c.Do(context.Background(), Request{URL: "/anon"})
	require.NoError(t, err)
	assert.Empty(t, got.Header.Get("Authorization"))
}

type flakyTransport struct {
	failures int32
	calls    int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.next.RoundTrip(r)
}

func TestDoRetriesTransportFailures(t *testing.T) {
	srv, _ := sequenceServer(t, []int{200}, `{"ok":true}`)

	ft := &flakyTransport{failures: 1, next: http.DefaultTransport}
	c := newTestClient(srv.URL, WithHTTPClient(&http.Client{Transport: ft}))
	_, err := c.Do(context.Background(), Request{URL: "/", Retries: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&ft.calls))

	ft = &flakyTransport{failures: 5, next: http.DefaultTransport}
	c = newTestClient(srv.URL, WithHTTPClient(&http.Client{Transport: ft}))
	_, err = c.Do(context.Background(), Request{URL: "/", Retries: 2})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection reset"))
	_, isHTTP := AsHTTPError(err)
	assert.False(t, isHTTP)
	assert.False(t, IsCanceled(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&ft.calls))
}

func TestDoReportsCancellationDistinctly(t *testing.T) {
	srv, calls := sequenceServer(t, []int{503}, "")
	c := New(srv.URL, WithRetryDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for atomic.LoadInt32(calls) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := c.Do(ctx, Request{URL: "/slow", Retries: 3})
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.ErrorIs(t, err, context.Canceled)
	_, isHTTP := AsHTTPError(err)
	assert.False(t, isHTTP)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestDoCanceledBeforeStart(t *testing.T) {
	srv, calls := sequenceServer(t, []int{200}, `{}`)
	c := newTestClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Do(ctx, Request{URL: "/"})
	assert.True(t, IsCanceled(err))
	assert.EqualValues(t, 0, atomic.LoadInt32(calls))
}

func TestDoBacksOffLinearly(t *testing.T) {
	var (
		mu    sync.Mutex
		stamp []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamp = append(stamp, time.Now())
		n := len(stamp)
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	t.Cleanup(srv.Close)

	delay := 100 * time.Millisecond
	c := New(srv.URL)
	start := time.Now()
	_, err := c.Do(context.Background(), Request{URL: "/thing", Retries: 2, RetryDelay: delay})
	require.NoError(t, err)

	elapsed := time.Since(start)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamp, 3)
	assert.GreaterOrEqual(t, elapsed, 3*delay)
	assert.GreaterOrEqual(t, stamp[1].Sub(stamp[0]), delay)
	assert.GreaterOrEqual(t, stamp[2].Sub(stamp[1]), 2*delay)
}
