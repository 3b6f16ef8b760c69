package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/amiyamandal-dev/repoportal/internal/api"
	"github.com/amiyamandal-dev/repoportal/internal/api/handlers"
	"github.com/amiyamandal-dev/repoportal/internal/auth"
	"github.com/amiyamandal-dev/repoportal/internal/backend"
	"github.com/amiyamandal-dev/repoportal/internal/config"
	"github.com/amiyamandal-dev/repoportal/internal/observability"
	"github.com/amiyamandal-dev/repoportal/internal/render"
	"github.com/amiyamandal-dev/repoportal/internal/repository"
	"github.com/amiyamandal-dev/repoportal/internal/repository/badger"
	"github.com/amiyamandal-dev/repoportal/internal/repository/memory"
	"github.com/amiyamandal-dev/repoportal/internal/repository/redis"
	"github.com/amiyamandal-dev/repoportal/internal/service"
	"github.com/amiyamandal-dev/repoportal/internal/validator"
	"github.com/amiyamandal-dev/repoportal/internal/web"
	"github.com/amiyamandal-dev/repoportal/pkg/logger"
)

const version = "1.0.0"

// openStore opens the session store selected by store.driver
func openStore(ctx context.Context, cfg config.StoreConfig) (repository.SessionStore, error) {
	switch cfg.Driver {
	case "badger":
		db, err := badger.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return badger.NewSessionRepo(db, cfg.TTL), nil
	case "redis":
		return redis.NewSessionRepo(ctx, redis.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.TTL,
		})
	case "memory":
		return memory.NewSessionRepo(cfg.TTL), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting repository portal",
		"version", version,
		"mode", cfg.Server.Mode,
		"backend", cfg.Backend.BaseURL,
	)

	ctx := context.Background()
	metrics := observability.NewMetrics("portal", prometheus.DefaultRegisterer)

	// Session store
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Error("Failed to open session store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	log.Info("Session store opened", "driver", cfg.Store.Driver, "ttl", cfg.Store.TTL)

	// Repository API client
	client, err := backend.New(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Backend.RateLimit,
		Burst:     cfg.Backend.Burst,
		UserAgent: cfg.Backend.UserAgent,
	}, metrics, log)
	if err != nil {
		log.Error("Failed to create backend client", "error", err)
		os.Exit(1)
	}

	if err := client.Ping(ctx); err != nil {
		log.Warn("Repository API is not reachable", "base_url", cfg.Backend.BaseURL, "error", err)
	} else {
		log.Info("Connected to repository API", "base_url", cfg.Backend.BaseURL)
	}

	tokens := auth.NewTokenInspector(cfg.Auth.JWTSecret)
	if !tokens.Verifies() {
		log.Warn("auth.jwt_secret is not set; access tokens are decoded without verification")
	}
	v := validator.New()

	// Initialize services
	searchService := service.NewSearchService(client, cfg.Search.ItemsPerPage, metrics, log)
	searchService.SetSequenceTTL(cfg.Store.TTL)
	filterService, err := service.NewFilterService(client, searchService, service.FilterConfig{
		CacheTTL:       cfg.Filters.CacheTTL,
		AuthorPreview:  cfg.Filters.AuthorPreview,
		KeywordPreview: cfg.Filters.KeywordPreview,
		FetchTimeout:   cfg.Backend.Timeout,
	}, metrics, log)
	if err != nil {
		log.Error("Failed to create option indexes", "error", err)
		os.Exit(1)
	}
	defer filterService.Close()
	projectService := service.NewProjectService(client, metrics, log)
	authService := service.NewAuthService(client, tokens, v, log)

	// Initialize handlers
	webHandler := web.NewWebHandler(
		searchService,
		filterService,
		projectService,
		authService,
		store,
		render.New(),
		api.Cookies(cfg),
		log,
	)
	authHandler := handlers.NewAuthHandler(authService, log)
	searchHandler := handlers.NewSearchHandler(searchService, filterService, store, v, log)
	projectHandler := handlers.NewProjectHandler(projectService, log)
	healthHandler := handlers.NewHealthHandler(store, client, log)

	// Initialize router
	router := api.NewRouter(
		authHandler,
		searchHandler,
		projectHandler,
		healthHandler,
		webHandler,
		authService,
		prometheus.DefaultGatherer,
		cfg,
		log,
	)
	engine := router.Setup()
	defer router.Close()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Error("Server failed", "error", err)
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server stopped gracefully")
}
