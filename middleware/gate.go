package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"taquilla/access"
	"taquilla/utils"
)

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/api" || strings.HasPrefix(path, "/ws/")
}

// Gate enforces the access policy for every path. API callers get JSON
// errors; page requests are redirected.
func Gate(policy *access.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var roles []string
			if c := ClaimsFromContext(r.Context()); c != nil {
				roles = c.Role
				if len(roles) == 0 {
					roles = []string{""}
				}
			}
			d := policy.Decide(roles, r.URL.Path)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if isAPIPath(r.URL.Path) {
				if d.Reason == access.ReasonUnauthenticated {
					utils.RespondWithError(w, http.StatusUnauthorized, utils.CodeUnauthenticated, "Inicia sesión para continuar")
				} else {
					utils.RespondWithError(w, http.StatusForbidden, utils.CodeForbidden, "No tienes permiso para esta acción")
				}
				return
			}

			if d.Reason == access.ReasonUnauthenticated {
				http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
		})
	}
}
