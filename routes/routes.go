package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/julienschmidt/httprouter"

	"taquilla/admin"
	"taquilla/auth"
	"taquilla/banners"
	"taquilla/checkout"
	"taquilla/events"
	"taquilla/favorites"
	"taquilla/idempotency"
	"taquilla/live"
	"taquilla/middleware"
	"taquilla/ratelim"
	"taquilla/regional"
	"taquilla/tickets"
)

// Handlers groups every feature handler the router serves.
type Handlers struct {
	Auth        *middleware.Auth
	Limiter     *ratelim.RateLimiter
	Idempotency *idempotency.Guard
	Session     *auth.Handler
	Events      *events.Handler
	Favorites   *favorites.Handler
	Regional    *regional.Handler
	Checkout    *checkout.Handler
	Tickets     *tickets.Handler
	Admin       *admin.Handler
	Banners     *banners.Handler
	Live        *live.Handler
	StaticDir   string
}

func Index(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("200"))
}

func AddAuthRoutes(router *httprouter.Router, h *Handlers) {
	router.POST("/api/auth/login", h.Limiter.Limit(h.Session.Login))
	router.POST("/api/auth/logout", h.Session.Logout)
	router.GET("/api/auth/me", h.Auth.Authenticate(h.Session.Me))
}

func AddEventsRoutes(router *httprouter.Router, h *Handlers) {
	router.GET("/api/events", h.Events.List)
	router.GET("/api/events/facets", h.Events.Facets)
	router.GET("/api/events/event/:eventid", h.Events.Detail)
	router.GET("/eventos/:eventid", h.Events.Page)
	router.GET("/api/banners/:eventid", h.Banners.Serve)
	router.GET("/ws/search", h.Live.Search)
}

func AddFavoritesRoutes(router *httprouter.Router, h *Handlers) {
	router.GET("/api/favorites", h.Favorites.List)
	router.PUT("/api/favorites/:eventid", h.Favorites.Add)
	router.DELETE("/api/favorites/:eventid", h.Favorites.Remove)
}

func AddRegionalRoutes(router *httprouter.Router, h *Handlers) {
	router.GET("/api/regional", h.Regional.Get)
	router.PUT("/api/regional", h.Regional.Put)
}

func AddCheckoutRoutes(router *httprouter.Router, h *Handlers) {
	guard := middleware.Chain(h.Limiter.Limit, h.Auth.Authenticate)
	router.POST("/api/checkout/sessions", guard(h.Checkout.CreateSession))
	router.GET("/api/checkout/sessions/:sessionid", h.Auth.Authenticate(h.Checkout.GetSession))
	router.POST("/api/checkout/sessions/:sessionid/pay", guard(h.Idempotency.Handle(h.Checkout.Pay)))
}

func AddBackofficeRoutes(router *httprouter.Router, h *Handlers) {
	a := h.Auth.Authenticate
	router.GET("/api/backoffice/sales", a(h.Admin.ListSales))
	router.GET("/api/backoffice/sales/:saleid", a(h.Admin.GetSale))
	router.POST("/api/backoffice/sales/:saleid/validate", a(h.Tickets.ValidateSale))
	router.GET("/api/backoffice/admin/vendors", a(h.Admin.ListVendors))

	router.POST("/api/backoffice/events", a(h.Admin.CreateEvent))
	router.PUT("/api/backoffice/events/:eventid", a(h.Admin.UpdateEvent))
	router.DELETE("/api/backoffice/events/:eventid", a(h.Admin.DeleteEvent))

	router.POST("/api/backoffice/tickets/scan", a(h.Tickets.Scan))
	router.GET("/api/backoffice/tickets/:saleid/validate", a(h.Tickets.CheckSale))
	router.GET("/api/backoffice/tickets/:saleid/print", a(h.Tickets.Print))
}

// AddStaticRoutes serves the storefront bundle. Unknown page paths fall back
// to index.html so client-side routing keeps working.
func AddStaticRoutes(router *httprouter.Router, h *Handlers) {
	if h.StaticDir == "" {
		return
	}
	router.ServeFiles("/static/*filepath", http.Dir(h.StaticDir))
	index := filepath.Join(h.StaticDir, "index.html")
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || isAPI(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}

func isAPI(path string) bool {
	return len(path) >= 4 && (path[:4] == "/api" || path[:4] == "/ws/")
}

// New builds the router with every feature's routes.
func New(h *Handlers) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", Index)

	AddAuthRoutes(router, h)
	AddEventsRoutes(router, h)
	AddFavoritesRoutes(router, h)
	AddRegionalRoutes(router, h)
	AddCheckoutRoutes(router, h)
	AddBackofficeRoutes(router, h)
	AddStaticRoutes(router, h)
	return router
}
