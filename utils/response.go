package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"taquilla/apiclient"
)

const (
	CodeInvalidID        = "invalid_id"
	CodeInvalidBody      = "invalid_request_body"
	CodeInvalidFilter    = "invalid_filter"
	CodeUnauthenticated  = "unauthenticated"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeRateLimited      = "rate_limited"
	CodeUpstream         = "upstream_error"
	CodeUpstreamRejected = "upstream_rejected"
	CodeInternal         = "internal_error"
)

// genericFailure is the only text end users see for failed remote calls.
const genericFailure = "No pudimos completar la acción, inténtalo de nuevo"

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// RespondWithJSON writes data as a JSON body with the given status.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func RespondWithError(w http.ResponseWriter, status int, code, msg string) {
	RespondWithJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// WriteAPIError maps a failed remote call to a response. It reports false when
// nothing was written because the caller went away.
func WriteAPIError(w http.ResponseWriter, r *http.Request, err error) bool {
	if apiclient.IsCanceled(err) {
		slog.Debug("remote call canceled", "path", r.URL.Path)
		return false
	}

	httpErr, ok := apiclient.AsHTTPError(err)
	if !ok {
		slog.Error("remote call failed", "path", r.URL.Path, "error", err)
		RespondWithJSON(w, http.StatusBadGateway, ErrorResponse{Error: genericFailure, Code: CodeUpstream, Retryable: true})
		return true
	}

	slog.Warn("remote call rejected",
		"path", r.URL.Path, "upstream", httpErr.URL, "status", httpErr.Status, "details", httpErr.Details)

	switch {
	case httpErr.Status == http.StatusTooManyRequests:
		RespondWithJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: genericFailure, Code: CodeRateLimited, Retryable: true})
	case httpErr.Status >= 500:
		RespondWithJSON(w, http.StatusBadGateway, ErrorResponse{Error: genericFailure, Code: CodeUpstream, Retryable: true})
	case httpErr.Status == http.StatusUnauthorized:
		RespondWithError(w, http.StatusUnauthorized, CodeUnauthenticated, "Inicia sesión para continuar")
	case httpErr.Status == http.StatusForbidden:
		RespondWithError(w, http.StatusForbidden, CodeForbidden, "No tienes permiso para esta acción")
	case httpErr.Status == http.StatusNotFound:
		RespondWithError(w, http.StatusNotFound, CodeNotFound, "No encontrado")
	default:
		RespondWithError(w, httpErr.Status, CodeUpstreamRejected, genericFailure)
	}
	return true
}

// ValidUUID reports whether s is a canonical UUID string.
func ValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// DecodeJSON reads a JSON body, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ClientIP prefers the first X-Forwarded-For hop.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
