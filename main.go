package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/handler"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/middleware"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/pkg/logger"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/service"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.Info("configuration loaded successfully", "path", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := service.OpenDatabase(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	var archive handler.DocumentArchive
	if cfg.Minio.Enabled {
		minioSvc, err := service.NewMinioService(&cfg.Minio)
		if err != nil {
			return fmt.Errorf("failed to initialize MINIO service: %w", err)
		}
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure MINIO bucket: %w", err)
		}
		archive = minioSvc
		slog.Info("document archive enabled", "bucket", cfg.Minio.Bucket)
	}

	openai := service.NewOpenAIService(&cfg.OpenAI)
	extractor := service.NewExtractor(openai, service.ExtractorConfigFrom(&cfg.OpenAI))
	store := service.NewSQLStore(db)

	if cfg.Janitor.Enabled {
		janitor := service.NewFileJanitor(openai, &cfg.Janitor, cfg.OpenAI.FilePrefix)
		if err := janitor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start file janitor: %w", err)
		}
		defer janitor.Stop()
	}

	router := newRouter(cfg, routerDeps{
		auth:       handler.NewAuthHandler(cfg),
		properties: handler.NewPropertyHandler(store, archive),
		documents: handler.NewDocumentHandler(extractor, service.NewPDFInspector(cfg.Server.MaxPDFPages),
			archive, store, cfg.Server.MaxUploadMB<<20),
		ping: db.Ping,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.CORS(&cfg.CORS, router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

type routerDeps struct {
	auth       *handler.AuthHandler
	properties *handler.PropertyHandler
	documents  *handler.DocumentHandler
	ping       func(context.Context) error
}

func newRouter(cfg *config.Config, deps routerDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(noCacheMiddleware())
	router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))

	router.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if err := deps.ping(c.Request.Context()); err != nil {
			logger.Error(c.Request.Context(), "health check failed", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/login", deps.auth.Login)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", deps.auth.GetCurrentUser)

		// extraction holds a remote run open, so uploads get a tighter budget
		uploads := middleware.RateLimit(cfg.RateLimit.UploadRequests, cfg.RateLimit.Window)
		protected.POST("/properties/upload", uploads, deps.documents.Upload)
		protected.POST("/properties/import", uploads, deps.documents.Import)

		protected.POST("/properties", deps.properties.Create)
		protected.GET("/properties", deps.properties.List)
		protected.GET("/properties/:id", deps.properties.Get)
		protected.PATCH("/properties/:id", deps.properties.Update)
		protected.DELETE("/properties/:id", deps.properties.Delete)
		protected.GET("/properties/:id/export", deps.properties.Export)
		protected.GET("/properties/:id/document", deps.properties.Document)
	}

	return router
}

// noCacheMiddleware keeps API responses out of browser and proxy caches
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
