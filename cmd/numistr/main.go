package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kailas-cloud/numistr/internal/config"
	dbPostgres "github.com/kailas-cloud/numistr/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/numistr/internal/db/redis"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/filter"
	"github.com/kailas-cloud/numistr/internal/domain/catalog/variant"
	"github.com/kailas-cloud/numistr/internal/domain/material"
	logpkg "github.com/kailas-cloud/numistr/internal/logger"
	"github.com/kailas-cloud/numistr/internal/metrics"
	accountrepo "github.com/kailas-cloud/numistr/internal/repository/account"
	catalogrepo "github.com/kailas-cloud/numistr/internal/repository/catalog"
	ratelimitrepo "github.com/kailas-cloud/numistr/internal/repository/ratelimit"
	"github.com/kailas-cloud/numistr/internal/repository/respcache"
	taxonomyrepo "github.com/kailas-cloud/numistr/internal/repository/taxonomy"
	chiTransport "github.com/kailas-cloud/numistr/internal/transport/chi"
	accountuc "github.com/kailas-cloud/numistr/internal/usecase/account"
	cataloguc "github.com/kailas-cloud/numistr/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/numistr/internal/usecase/health"
	ratelimituc "github.com/kailas-cloud/numistr/internal/usecase/ratelimit"
	"github.com/kailas-cloud/numistr/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting numistr API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("cache_enabled", cfg.Cache.IsEnabled()),
		zap.Bool("rate_limits_enabled", cfg.RateLimits.IsEnabled()),
	)

	ctx := context.Background()
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second

	pg, err := dbPostgres.NewStore(ctx, dbPostgres.Config{DSN: cfg.Database.DSN, MaxConns: cfg.Database.MaxConns})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.WaitForReady(ctx, readiness); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Account lookups go through gorm on the same database.
	gormDB, err := gorm.Open(gormpg.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Fatal("Failed to open account database", zap.Error(err))
	}

	// The key/value store backs both the payload cache and the rate limiter.
	var kv *dbRedis.Store
	if cfg.Cache.IsEnabled() || cfg.RateLimits.IsEnabled() {
		kv, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Prefix:   cfg.Cache.KeyPrefix,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer kv.Close()
		if err := kv.WaitForReady(ctx, readiness); err != nil {
			// Rate limiting fails open and the cache is optional; keep serving.
			logger.Warn("Cache store not ready", zap.Error(err))
		}
	}

	metrics.RegisterCatalogMetrics()

	materials := material.NewNormalizer(cfg.Materials.Table())
	budget := filter.Budget{
		CeilingBase:  cfg.RateLimits.ComplexBase,
		CeilingStep:  5,
		CeilingFloor: cfg.RateLimits.ComplexFloor,
		TimeoutBase:  time.Duration(cfg.RateLimits.TimeoutBaseSec) * time.Second,
		TimeoutStep:  2 * time.Second,
		TimeoutMax:   time.Duration(cfg.RateLimits.TimeoutMaxSec) * time.Second,
	}

	// Repositories
	catalogRepo := catalogrepo.New(pg, catalogrepo.Config{
		VariantTables:   cfg.Catalog.VariantTables,
		AttributeTables: cfg.Catalog.AttributeTables,
		ContentTable:    cfg.Catalog.ContentTable,
		ImageTable:      cfg.Catalog.ImageTable,
		FieldIDs:        cfg.Catalog.FieldIDs,
	}, materials, logger)
	taxonomyRepo := taxonomyrepo.New(pg, cfg.Catalog.CategoryTable, cfg.Catalog.Extension)
	accountRepo := accountrepo.New(gormDB, cfg.Auth.TokenSeries)

	// Without a store the cache computes every payload.
	cache := respcache.New(nil, metrics.ResponseCacheTotal, logger)
	if cfg.Cache.IsEnabled() {
		cache = respcache.New(kv, metrics.ResponseCacheTotal, logger)
	}

	var limiter chiTransport.Limiter
	if cfg.RateLimits.IsEnabled() {
		window := time.Duration(cfg.RateLimits.WindowSec) * time.Second
		limiter = ratelimituc.New(ratelimitrepo.New(kv, window))
	}

	// kv is a typed pointer: assign only when opened so the interface stays nil.
	var cachePinger healthuc.Pinger
	if kv != nil {
		cachePinger = kv
	}

	// Use cases
	catalogSvc := cataloguc.New(catalogRepo, taxonomyRepo, cache, materials, cataloguc.Config{
		RootCategoryID: cfg.Catalog.RootCategoryID,
		SafeCap:        cfg.Catalog.SafeCap,
		TitleLanguages: cfg.Catalog.TitleLanguages,
		StatsTTL:       time.Duration(cfg.Cache.TTLStatsSec) * time.Second,
		RegionsTTL:     time.Duration(cfg.Cache.TTLRegionSec) * time.Second,
		Budget:         budget,
		Images:         variant.ImageURLs{Root: cfg.Images.Root, ViewerPath: cfg.Images.ViewerPath},
	})
	accountSvc := accountuc.New(accountRepo, cfg.Auth.ProGroupID)
	healthSvc := healthuc.New(pg, cachePinger)

	server := chiTransport.NewServer(catalogSvc, limiter, accountSvc, healthSvc, chiTransport.Options{
		DefaultPerPage: cfg.Catalog.DefaultPerPage,
		MaxPerPage:     cfg.Catalog.MaxPerPage,
		Ceilings:       cfg.RateLimits.Ceilings,
		Budget:         budget,
	})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.CORSMiddleware())
	r.Use(metrics.Middleware())
	r.Handle("/metrics", metrics.Handler())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that answers with the error envelope instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json; charset=utf-8")
					w.Header().Set("Cache-Control", "no-store")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"errors":[{"title":"Internal server error","code":500}]}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", chiTransport.ClientIP(r)),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
