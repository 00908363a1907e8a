package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/handler"
	"github.com/henrymedina447/sbs-suptech-etl-v2/middleware"
	"github.com/henrymedina447/sbs-suptech-etl-v2/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ETL HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loaded()

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	router := newRouter(cfg,
		handler.NewAuthHandler(cfg),
		handler.NewETLHandler(a.orchestrator, a.metadata, service.NewRunStore(&cfg.Store)),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config, authHandler *handler.AuthHandler, etlHandler *handler.ETLHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Token requests are limited per IP, everything else per client.
	api := router.Group("/api")
	{
		api.POST("/auth/token", middleware.RateLimit(cfg.Server.RateLimit, time.Minute), authHandler.Token)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	protected.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))
	{
		protected.GET("/auth/me", authHandler.GetCurrentClient)
		protected.POST("/etl/start", middleware.RequireScope(middleware.ScopeRun), etlHandler.Start)
		protected.GET("/etl/runs", middleware.RequireScope(middleware.ScopeRead), etlHandler.ListRuns)
		protected.GET("/etl/runs/:id", middleware.RequireScope(middleware.ScopeRead), etlHandler.GetRun)
		protected.GET("/etl/metadata/:type/:id", middleware.RequireScope(middleware.ScopeRead), etlHandler.GetMetadata)
	}

	return router
}
