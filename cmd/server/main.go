package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stwalsh4118/subsoil/internal/config"
	"github.com/stwalsh4118/subsoil/internal/database"
	"github.com/stwalsh4118/subsoil/internal/datasource"
	"github.com/stwalsh4118/subsoil/internal/handlers"
	"github.com/stwalsh4118/subsoil/internal/loader"
	"github.com/stwalsh4118/subsoil/internal/logger"
	"github.com/stwalsh4118/subsoil/internal/metrics"
	"github.com/stwalsh4118/subsoil/internal/middleware"
	"github.com/stwalsh4118/subsoil/internal/render"
	"github.com/stwalsh4118/subsoil/internal/repository"
	"github.com/stwalsh4118/subsoil/internal/resolver"
	"github.com/stwalsh4118/subsoil/internal/services"
	"github.com/stwalsh4118/subsoil/internal/voice"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting Subsoil API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"feed":        cfg.Feed.BaseURL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handlers.Check{}

	// Optional parcel store
	var repo repository.PolygonRepository
	if cfg.Database.Enabled {
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", err, map[string]interface{}{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to create schema", err, nil)
		}

		log.Info("Database connection established", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})

		repo = repository.NewPolygonRepository(db)
		checks["database"] = db.Ping
	}

	// Optional geometry cache
	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer cache.Close()

		log.Info("Geometry cache enabled", map[string]interface{}{
			"addr": cfg.Redis.Addr,
			"db":   cfg.Redis.DB,
			"ttl":  cfg.Redis.TTL.String(),
		})

		checks["redis"] = func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		}
	}

	// Initialize data source, renderer, resolver and service
	source := datasource.NewCachedSource(
		datasource.NewHTTPSource(cfg.Feed.BaseURL, cfg.Feed.Timeout, log),
		cache,
		cfg.Redis.TTL,
		log,
	)
	view := render.NewViewState()
	res := resolver.New(view,
		resolver.WithThreshold(cfg.Match.Threshold),
		resolver.WithMinTokenLength(cfg.Match.MinTokenLength),
		resolver.WithZoom(cfg.Map.VoiceZoom, cfg.Map.CompanyZoom),
		resolver.WithLogger(log),
	)
	mapService := services.NewMapService(services.MapServiceConfig{
		Source:     source,
		Loader:     loader.New(cfg.Feed.Workers, log),
		Resolver:   res,
		Repository: repo,
		Renderer:   view,
		Voice:      voice.NewControl(cfg.Match.Language),
		Logger:     log,
	})
	defer mapService.Close()

	// Load regions in the background so the server answers readiness probes
	go func() {
		if err := mapService.Reload(ctx); err != nil {
			log.Error("Initial region load failed", err, nil)
		}
	}()
	go mapService.Run(ctx, cfg.Feed.ReloadInterval)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS -> Metrics
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log, "/health", "/health/ready", "/metrics"))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	router.Use(middleware.Metrics())

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(mapService, cfg.Server.Env, checks)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Initialize handlers
	regionHandler := handlers.NewRegionHandler(mapService)
	resolveHandler := handlers.NewResolveHandler(mapService)
	companyHandler := handlers.NewCompanyHandler(mapService)
	voiceHandler := handlers.NewVoiceHandler(mapService, view)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		regions := v1.Group("/regions")
		{
			regions.GET("", regionHandler.List)
			regions.GET("/:id", regionHandler.Get)
			regions.GET("/:id/stats", regionHandler.Stats)
			regions.GET("/:id/companies", regionHandler.Companies)
			regions.POST("/:id/select", regionHandler.Select)
		}
		resolve := v1.Group("/resolve")
		{
			resolve.POST("/voice", resolveHandler.Voice)
			resolve.POST("/containment", resolveHandler.Containment)
		}
		companies := v1.Group("/companies")
		{
			companies.GET("/polygons", companyHandler.Polygons)
			companies.GET("/:location", companyHandler.Get)
			companies.GET("/:location/regions", companyHandler.Regions)
			companies.POST("/:location/select", companyHandler.Select)
		}
		voiceRoutes := v1.Group("/voice")
		{
			voiceRoutes.POST("/start", voiceHandler.Start)
			voiceRoutes.POST("/stop", voiceHandler.Stop)
			voiceRoutes.POST("/transcripts", voiceHandler.Transcript)
			voiceRoutes.GET("/last", voiceHandler.Last)
		}
		v1.GET("/view", voiceHandler.View)
		v1.GET("/load/progress", voiceHandler.Progress)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
