package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"parley.app/server/common/extract"
	"parley.app/server/common/id"
	"parley.app/server/common/llm"
	"parley.app/server/common/logger"
	"parley.app/server/common/otel"
	"parley.app/server/core/config"
	"parley.app/server/core/db"
	"parley.app/server/internal/catalog"
	"parley.app/server/internal/http/middleware"
	httprouter "parley.app/server/internal/http/router"
	"parley.app/server/internal/service"
	"parley.app/server/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "parley server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	var catalogCache catalog.Cache
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		catalogCache = catalog.NewRedisCache(redisClient)
		slog.InfoContext(ctx, "redis connected")
	}

	llmCfg := providerConfig(cfg)

	normalizer := llm.NewNormalizer(llmCfg, extract.New(nil), llm.NewImageFetcher(nil))
	dispatcher := llm.NewDispatcher(llmCfg, llm.DispatcherOptions{
		Session: llm.SessionOptions{
			PollInterval: time.Duration(cfg.Session.PollIntervalMillis) * time.Millisecond,
			MaxPolls:     cfg.Session.MaxPolls,
		},
	})
	registry := catalog.NewRegistry(llmCfg, catalog.Options{
		Cache:    catalogCache,
		CacheTTL: time.Duration(cfg.Catalog.CacheTTLSeconds) * time.Second,
	})

	stores := store.NewStores(database)
	services := service.NewServices(&cfg, stores, normalizer, dispatcher, registry)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,

		// Provider round-trips (file sessions in particular) can take
		// minutes; the write timeout has to cover the slowest dispatch.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span, Recovery catches panics, Logger
	// logs with trace context.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		JWTIssuer: cfg.Auth.Issuer,
	})

	return router
}

func providerConfig(cfg config.Config) llm.Config {
	cred := func(p config.ProviderConfig) llm.Credential {
		return llm.Credential{APIKey: p.APIKey, BaseURL: p.BaseURL}
	}
	return llm.Config{
		OpenAI:    cred(cfg.Providers.OpenAI),
		Anthropic: cred(cfg.Providers.Anthropic),
		Google:    cred(cfg.Providers.Google),
		DeepSeek:  cred(cfg.Providers.DeepSeek),
		Mistral:   cred(cfg.Providers.Mistral),
	}
}
