package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/ehr/explorer/internal/platform/db"
	"github.com/ehr/explorer/internal/platform/middleware"
	"github.com/ehr/explorer/internal/platform/reporting"
)

const analysisTimeout = 30 * time.Second

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis catalog over HTTP (read-only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServer(cmd.Context())
		},
	}
}

// newServer builds the echo instance for an already loaded dataset.
func (a *app) newServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.SecurityHeaders())
	if a.cfg.MetricsEnabled {
		e.Use(middleware.Metrics(a.metrics))
		e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))
	}

	e.GET("/healthz", a.health)

	apiV1 := e.Group("/api/v1", middleware.RequestTimeout(analysisTimeout))
	reporting.NewHandler(a.runner()).RegisterRoutes(apiV1)

	return e
}

func (a *app) health(c echo.Context) error {
	body := map[string]interface{}{
		"status": "ok",
		"source": a.cfg.Source,
		"tables": len(a.ds.Names()),
	}
	status := http.StatusOK
	if a.pool != nil {
		h := db.Check(c.Request().Context(), a.pool)
		body["database"] = h
		if !h.Healthy {
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	return c.JSON(status, body)
}

func (a *app) runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := a.load(ctx); err != nil {
		return err
	}

	e := a.newServer()

	// Graceful shutdown
	go func() {
		addr := ":" + a.cfg.Port
		a.logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info().Msg("server stopped")
	return nil
}
