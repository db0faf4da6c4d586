package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/moonlitpsych/moonlit-scheduler/internal/config"
	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/booking"
	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/directory"
	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/partners"
	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/roster"
	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/supervision"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/auth"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/db"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/ehr"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/jobs"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/memo"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/middleware"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/redisclient"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/rowstore"
)

// Redis key prefixes. Each memo cache purges its whole store, so caches never
// share a prefix.
const (
	prefixEHR    = "memo:ehr"
	prefixRoster = "memo:roster"
)

// app holds the wired services shared by serve, worker and roster rebuild.
type app struct {
	pool  *pgxpool.Pool
	redis *redis.Client
	queue *jobs.Enqueuer
	roles auth.RoleStore

	supervision *supervision.Service
	directory   *directory.Service
	roster      *roster.Service
	booking     *booking.Service
	partners    *partners.Service
}

func (a *app) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// rosterQueue returns the rebuild queue, or an untyped nil so the handler
// falls back to inline rebuilds.
func (a *app) rosterQueue() roster.Queue {
	if a.queue == nil {
		return nil
	}
	return a.queue
}

// memoStores returns one store per cache: redis-backed when a client is
// given, in-process otherwise.
func memoStores(rdb *redis.Client) (ehrStore, rosterStore memo.Store) {
	if rdb == nil {
		return memo.NewMemoryStore(), memo.NewMemoryStore()
	}
	return memo.NewRedisStore(rdb, prefixEHR), memo.NewRedisStore(rdb, prefixRoster)
}

func newEHRClient(cfg *config.Config, store memo.Store, loc *time.Location, logger zerolog.Logger) ehr.Client {
	if cfg.EHRBaseURL == "" {
		logger.Warn().Msg("EHR_BASE_URL not set; using in-memory EHR client")
		return ehr.NewMemoryClient(loc)
	}
	return ehr.NewHTTPClient(ehr.HTTPConfig{
		BaseURL:  cfg.EHRBaseURL,
		APIKey:   cfg.EHRAPIKey,
		Timeout:  cfg.EHRTimeout,
		CacheTTL: cfg.AvailabilityCacheTTL,
	}, store, logger)
}

func newRowStore(cfg *config.Config, pool *pgxpool.Pool) (rowstore.Store, error) {
	if cfg.RowstoreBackend == "supabase" {
		return rowstore.DialSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	}
	return rowstore.NewPGStore(pool), nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a := &app{pool: pool}
	logger.Info().Msg("connected to database")

	if cfg.RedisURL != "" {
		if a.redis, err = redisclient.Connect(ctx, cfg.RedisURL, logger); err != nil {
			a.Close()
			return nil, err
		}
		if a.queue, err = jobs.NewEnqueuer(cfg.RedisURL, logger); err != nil {
			a.Close()
			return nil, err
		}
	}
	ehrStore, rosterStore := memoStores(a.redis)

	rows, err := newRowStore(cfg, pool)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("row store: %w", err)
	}

	tx := db.NewTransactor(pool)
	a.roles = auth.NewPGRoleStore(pool)
	a.supervision = supervision.NewService(supervision.NewRepoPG(pool), tx, logger)
	a.directory = directory.NewService(
		directory.NewProviderRepoPG(pool),
		directory.NewPayerRepoPG(pool),
		directory.NewNetworkRepoPG(pool),
		loc,
	)
	a.roster = roster.NewService(roster.NewRepoPG(pool), tx, a.directory, a.supervision, rosterStore, loc, logger)
	a.booking = booking.NewService(a.roster, newEHRClient(cfg, ehrStore, loc, logger), loc, logger)
	a.partners = partners.NewService(rows)
	return a, nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "If-None-Match"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	return e
}

func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: key,
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtCfg), nil
	}
	return auth.JWTMiddleware(jwtCfg), nil
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	return rl
}

func registerRoutes(e *echo.Echo, cfg *config.Config, a *app, logger zerolog.Logger) error {
	authMW, err := authMiddleware(cfg)
	if err != nil {
		return err
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(a.pool, func() *db.PoolStats { return db.GetPoolStats(a.pool) }))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	apiV1.Use(authMW)
	apiV1.Use(auth.CapabilityMiddleware(a.roles, auth.DefaultRoleTable(), logger))

	auth.NewHandler(a.roles, auth.DefaultRoleTable()).RegisterRoutes(apiV1)
	booking.NewHandler(a.booking).RegisterRoutes(apiV1)
	supervision.NewHandler(a.supervision).RegisterRoutes(apiV1)
	directory.NewHandler(a.directory).RegisterRoutes(apiV1)
	roster.NewHandler(a.roster, a.rosterQueue()).RegisterRoutes(apiV1)
	partners.NewHandler(a.partners).RegisterRoutes(apiV1)
	return nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	if n, err := auth.SeedAdmins(ctx, a.roles, cfg.AdminEmailList(), logger); err != nil {
		logger.Warn().Err(err).Msg("seeding admin grants failed")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("seeded admin grants")
	}

	e := newEcho(cfg, logger)
	if err := registerRoutes(e, cfg, a, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to register routes")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
