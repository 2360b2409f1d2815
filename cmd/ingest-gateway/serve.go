package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"ingest-gateway/ingest"
	"ingest-gateway/ingest/application"
	"ingest-gateway/ingest/domain"
	"ingest-gateway/ingest/infra"
	"ingest-gateway/logger"
	"ingest-gateway/middleware/apikey"
	"ingest-gateway/middleware/ratelimit"
	rldomain "ingest-gateway/middleware/ratelimit/domain"
	rlinfra "ingest-gateway/middleware/ratelimit/infra"
	"ingest-gateway/retry"
)

// app é o processo montado: o handler HTTP e o que precisa ser fechado.
type app struct {
	handler http.Handler
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config) (domain.Store, func() error, error) {
	if cfg.dbDriver == driverMemory {
		return infra.NewMemoryStore(), func() error { return nil }, nil
	}

	s, err := infra.OpenSQL(cfg.dbDriver, cfg.dbDSN, infra.PoolOptions{
		MaxOpenConns:    cfg.dbMaxOpenConns,
		MaxIdleConns:    cfg.dbMaxOpenConns,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.dbAutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.Migrate(migrateCtx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
	}
	return s, s.Close, nil
}

func openRedis(ctx context.Context, cfg config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.redisAddr,
		Password: cfg.redisPassword,
		DB:       cfg.redisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// buildApp monta store, pipeline e a cadeia de middlewares. Os janitors do
// rate limit param quando ctx encerra.
func buildApp(ctx context.Context, cfg config, log zerolog.Logger) (*app, error) {
	a := &app{}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	var rdb *redis.Client
	if cfg.needsRedis() {
		rdb, err = openRedis(ctx, cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
	}

	serials := application.NewSerialGenerator(store, retry.Policy{
		MaxAttempts: cfg.serialAttempts,
		BaseDelay:   cfg.serialBaseDelay,
	})
	dispatcher := application.NewDispatcher(
		application.NewNewCompanyHandler(store, serials),
		application.NewDeleteDevicesHandler(store),
	)

	var (
		admitter rldomain.Admitter
		stats    rldomain.StatsStore
		report   ingest.StatsReporter
	)
	switch cfg.rateBackend {
	case rateBackendRedis:
		admitter = rlinfra.NewRedisWindowStore(rdb, cfg.rateLimit, cfg.rateWindow, rlinfra.WithWindowPrefix(cfg.rateRedisPrefix))
	case rateBackendTokenBucket:
		tb := rlinfra.NewTokenBucketStore(cfg.rateLimit, cfg.rateWindow, rlinfra.WithBucketIdleTTL(cfg.rateIdleTTL))
		tb.StartJanitor(ctx)
		admitter = tb
	default:
		ws := rlinfra.NewWindowStore(cfg.rateLimit, cfg.rateWindow, rlinfra.WithIdleTTL(cfg.rateIdleTTL))
		ws.StartJanitor(ctx)
		admitter = ws
	}

	switch cfg.rateStatsBackend {
	case rateBackendMemory:
		s := rlinfra.NewMemoryStatsStore(rlinfra.WithTrackKeys(cfg.rateStatsTrackKeys))
		stats, report = s, s
	case rateBackendRedis:
		s := rlinfra.NewRedisStatsStore(rdb,
			rlinfra.WithStatsPrefix(cfg.rateStatsPrefix),
			rlinfra.WithStatsTTL(cfg.rateStatsTTL),
			rlinfra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
		stats, report = s, s
	}

	authExempt := []string{ingest.PathHealth}
	limitExempt := []string{ingest.PathHealth, ingest.PathStats}

	h := http.Handler(ingest.NewRouter(ingest.Options{
		Processor:    dispatcher,
		Health:       store,
		Stats:        report,
		MaxBodyBytes: cfg.maxBodyBytes,
		ExposeErrors: !cfg.production(),
	}))

	authOpts := apikey.Options{Key: cfg.apiKey, BcryptHash: cfg.apiKeyBcrypt, ExemptPaths: authExempt}
	if !authOpts.Enabled() {
		log.Warn().Msg("API_KEY not configured, authentication disabled")
	}
	h = apikey.Middleware(authOpts)(h)

	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Store:               admitter,
			Stats:               stats,
			TrustXForwardedFor:  cfg.trustXFF,
			ExemptPaths:         limitExempt,
			RejectStatus:        http.StatusTooManyRequests,
			AddRateLimitHeaders: cfg.addHeaders,
		})(h)
	}

	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
		ExemptPaths:    limitExempt,
	})(h)

	h = logger.Middleware(log)(h)

	h = cors.New(cors.Options{
		AllowedOrigins: cfg.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", apikey.DefaultHeader, ingest.CorrelationHeader},
		ExposedHeaders: []string{ingest.CorrelationHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	}).Handler(h)

	a.handler = h
	return a, nil
}

func serve(ctx context.Context, cfg config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.listenAddr).
		Str("db_driver", cfg.dbDriver).
		Str("env", cfg.appEnv).
		Msg("ingest gateway listening")
	log.Info().
		Bool("enabled", cfg.rateEnabled).
		Str("backend", cfg.rateBackend).
		Int("limit", cfg.rateLimit).
		Dur("window", cfg.rateWindow).
		Bool("trust_xff", cfg.trustXFF).
		Str("stats", cfg.rateStatsBackend).
		Msg("rate limit")
	log.Info().
		Int("max", cfg.concurrencyMax).
		Dur("acquire_timeout", cfg.concurrencyTimeout).
		Msg("concurrency")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
