package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/CollComm/werewolf-sign/internal/api"
	"github.com/CollComm/werewolf-sign/internal/app"
	"github.com/CollComm/werewolf-sign/internal/config"
	"github.com/CollComm/werewolf-sign/internal/logging"
	"github.com/CollComm/werewolf-sign/internal/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, closer, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer closer.Close()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.TracingEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	pipeline, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(
		api.NewHandler(pipeline.Processor, pipeline.Staging, logger),
		logger,
		api.RouterOptions{AllowedOrigins: cfg.FrontendURLs, MaxUploadBytes: cfg.MaxUploadBytes},
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
}
