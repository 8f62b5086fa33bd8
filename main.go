package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"taquilla/access"
	"taquilla/admin"
	"taquilla/apiclient"
	"taquilla/auth"
	"taquilla/banners"
	"taquilla/checkout"
	"taquilla/config"
	"taquilla/db"
	"taquilla/events"
	"taquilla/favorites"
	"taquilla/idempotency"
	"taquilla/live"
	"taquilla/logx"
	"taquilla/middleware"
	"taquilla/mq"
	"taquilla/ratelim"
	"taquilla/rdx"
	"taquilla/regional"
	"taquilla/routes"
	"taquilla/session"
	"taquilla/tickets"
)

const paymentDelay = 1500 * time.Millisecond

// stores bundles the persistence backends, in-memory when none is configured.
type stores struct {
	cache       rdx.Cache
	favorites   favorites.Store
	regional    regional.Store
	idempotency idempotency.Store
	emitter     mq.Emitter
	closers     []func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}

	if cfg.RedisAddr != "" {
		conn, err := rdx.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		s.cache = rdx.NewRedisCache(conn, "taquilla:")
		s.favorites = favorites.NewRedisStore(conn)
		s.emitter = mq.NewRedisEmitter(conn)
		s.closers = append(s.closers, func() { _ = conn.Close() })
	} else {
		slog.Warn("REDIS_ADDR not set; catalog cache and favorites kept in memory")
		s.cache = rdx.NewMemoryCache()
		s.favorites = favorites.NewMemoryStore()
		s.emitter = mq.NewLocalEmitter()
	}

	if cfg.MongoURI != "" {
		database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = db.Disconnect(database) })

		reg := regional.NewMongoStore(database.Collection(db.RegionalCollection))
		idem := idempotency.NewMongoStore(database.Collection(db.IdempotencyCollection))
		if err := reg.EnsureIndexes(ctx); err != nil {
			s.close()
			return nil, err
		}
		if err := idem.EnsureIndexes(ctx); err != nil {
			s.close()
			return nil, err
		}
		s.regional = reg
		s.idempotency = idem
	} else {
		slog.Warn("MONGO_URI not set; regional settings and payment replays kept in memory")
		s.regional = regional.NewMemoryStore()
		s.idempotency = idempotency.NewMemoryStore()
	}
	return s, nil
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newAPIClient(cfg *config.Config, logger *slog.Logger) *apiclient.Client {
	opts := []apiclient.Option{
		apiclient.WithTokenProvider(session.Provider{}),
		apiclient.WithRetryDelay(cfg.APIRetryDelay),
		apiclient.WithReadRetries(cfg.APIRetries),
		apiclient.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		apiclient.WithLogger(logger.With("component", "apiclient")),
	}
	if cfg.APIRateLimit > 0 {
		burst := max(int(cfg.APIRateLimit), 1)
		opts = append(opts, apiclient.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.APIRateLimit), burst)))
	}
	return apiclient.New(cfg.APIBaseURL, opts...)
}

func buildHandlers(cfg *config.Config, st *stores, api *apiclient.Client, limiter *ratelim.RateLimiter) (*routes.Handlers, *middleware.Auth, error) {
	sealer := session.NewSealer(cfg.SessionSecret, cfg.SecureCookies)
	authn := middleware.NewAuth(cfg.JWTSecret, sealer)

	catalog := events.NewCatalog(api, st.cache, cfg.CatalogTTL, events.WithEmitter(st.emitter))
	reg := regional.NewHandler(st.regional)

	co, err := checkout.NewHandler(api, checkout.NewSimulator(paymentDelay))
	if err != nil {
		return nil, nil, err
	}

	return &routes.Handlers{
		Auth:        authn,
		Limiter:     limiter,
		Idempotency: idempotency.New(st.idempotency, idempotency.DefaultTTL),
		Session:     auth.NewHandler(api, authn, sealer),
		Events:      events.NewHandler(catalog, api, st.favorites, reg, cfg.StaticDir),
		Favorites:   favorites.NewHandler(st.favorites),
		Regional:    reg,
		Checkout:    co,
		Tickets:     tickets.NewHandler(api, tickets.NewSigner(cfg.TicketSecret, tickets.DefaultDrift)),
		Admin:       admin.NewHandler(api, catalog),
		Banners:     banners.NewHandler(api, catalog, st.cache),
		Live:        live.NewHandler(catalog, st.favorites, cfg.CORSOrigins),
		StaticDir:   cfg.StaticDir,
	}, authn, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logx.New(logx.Options{
		Level:      cfg.LogLevel,
		Color:      cfg.LogColor,
		FluentHost: cfg.FluentHost,
		FluentPort: cfg.FluentPort,
	})
	if err != nil {
		logger.Warn("fluentd unavailable; logging to console only", "error", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := access.Load(cfg.AccessPolicyFile)
	if err != nil {
		logger.Error("load access policy", "error", err)
		os.Exit(1)
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := openStores(startCtx, cfg)
	cancel()
	if err != nil {
		logger.Error("open stores", "error", err)
		os.Exit(1)
	}
	defer st.close()

	limiter := ratelim.NewRateLimiter(30, 10)
	go limiter.Run(ctx)

	api := newAPIClient(cfg, logger)
	h, authn, err := buildHandlers(cfg, st, api, limiter)
	if err != nil {
		logger.Error("build handlers", "error", err)
		os.Exit(1)
	}
	router := routes.New(h)

	go func() {
		if err := h.Live.Follow(ctx, st.emitter); err != nil {
			logger.Warn("catalog change feed stopped", "error", err)
		}
	}()

	// recover → log → headers → visitor → identity → gate → router
	handler := middleware.Stack(router,
		middleware.Recover(logger),
		middleware.RequestLogger(logger),
		middleware.SecurityHeaders,
		middleware.Visitor(cfg.SecureCookies),
		authn.Identity,
		middleware.Gate(policy),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		ExposedHeaders:   []string{"Idempotency-Key", "Retry-After"},
		AllowCredentials: true,
	}).Handler(handler)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsHandler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		logger.Info("closing live search channels")
		h.Live.Shutdown()
	})

	go func() {
		logger.Info("server listening", "addr", cfg.Addr(), "api", cfg.APIBaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutdown signal received; shutting down gracefully")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return
	}
	logger.Info("server stopped cleanly")
}
