// Package idempotency replays the first response to a mutating request when
// the client repeats it with the same Idempotency-Key header.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"taquilla/middleware"
	"taquilla/utils"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	DefaultTTL     = 24 * time.Hour

	maxKeyLength = 128
	maxBodyBytes = 1 << 20
)

const (
	CodeKeyConflict = "idempotency_conflict"
	CodeInProgress  = "request_in_progress"
)

type Guard struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func New(store Store, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{store: store, ttl: ttl, now: time.Now}
}

func requestHash(r *http.Request, owner string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + owner + ":"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// captureWriter tees the response so it can be stored after the handler returns.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
		c.ResponseWriter.WriteHeader(code)
	}
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.WriteHeader(http.StatusOK)
	}
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

// Handle wraps a mutating route. Requests without the header pass through.
// Keys are scoped to the caller, so two users never share a record.
func (g *Guard) Handle(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := r.Header.Get(HeaderKey)
		if key == "" {
			next(w, r, ps)
			return
		}
		if len(key) > maxKeyLength {
			utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "Idempotency-Key demasiado largo")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, utils.CodeInvalidBody, "No pudimos leer la solicitud")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		owner := middleware.Owner(r.Context())
		now := g.now()
		rec := Record{
			Key:         owner + "|" + key,
			Method:      r.Method,
			Path:        r.URL.Path,
			Owner:       owner,
			RequestHash: requestHash(r, owner, body),
			CreatedAt:   now,
			ExpiresAt:   now.Add(g.ttl),
		}

		ctx := r.Context()
		existing, reserved, err := g.store.Reserve(ctx, rec)
		if err != nil {
			slog.Error("idempotency reserve", "path", r.URL.Path, "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, utils.CodeInternal, "No pudimos procesar la solicitud")
			return
		}
		if !reserved {
			g.replay(w, rec, existing)
			return
		}

		cw := &captureWriter{ResponseWriter: w}
		defer func() {
			// stored answers must not depend on the caller still being connected
			storeCtx := context.WithoutCancel(ctx)
			if p := recover(); p != nil {
				if err := g.store.Release(storeCtx, rec.Key); err != nil {
					slog.Warn("idempotency release", "error", err)
				}
				panic(p)
			}
			g.finish(storeCtx, w, cw, rec.Key)
		}()
		next(cw, r, ps)
	}
}

func (g *Guard) finish(ctx context.Context, w http.ResponseWriter, cw *captureWriter, key string) {
	if cw.status == 0 || cw.status >= 500 {
		// nothing written or a transient failure: let the client retry
		if err := g.store.Release(ctx, key); err != nil {
			slog.Warn("idempotency release", "error", err)
		}
		return
	}
	if err := g.store.Complete(ctx, key, cw.status, w.Header().Get("Content-Type"), cw.buf.Bytes()); err != nil {
		slog.Warn("idempotency complete", "error", err)
	}
}

func (g *Guard) replay(w http.ResponseWriter, rec, existing Record) {
	switch {
	case existing.RequestHash != rec.RequestHash:
		utils.RespondWithError(w, http.StatusConflict, CodeKeyConflict, "La clave ya se usó con otra solicitud")
	case !existing.Done:
		w.Header().Set("Retry-After", "1")
		utils.RespondWithJSON(w, http.StatusConflict, utils.ErrorResponse{
			Error:     "La solicitud anterior sigue en curso",
			Code:      CodeInProgress,
			Retryable: true,
		})
	default:
		if existing.ContentType != "" {
			w.Header().Set("Content-Type", existing.ContentType)
		}
		w.Header().Set(HeaderReplayed, "true")
		w.WriteHeader(existing.Status)
		_, _ = w.Write(existing.Body)
	}
}
