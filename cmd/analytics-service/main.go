package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-core/internal/api/handlers"
	"auction-core/internal/api/middleware"
	"auction-core/internal/app"
	"auction-core/internal/config"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithConfig(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development}).
		With("service", "analytics-service", "instance_id", cfg.Instance.ID)
	log.Info("Starting analytics service", "storage", cfg.Storage.Driver)

	infra, err := app.Open(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to initialize infrastructure", "error", err)
		os.Exit(1)
	}
	defer infra.Close()

	projector := services.NewEventProjector(infra.EventLog, infra.Counters, log.With("component", "projector"))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		if err := projector.Start(ctx, infra.Subscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event projector failed", "error", err)
			os.Exit(1)
		}
	}()

	router := mux.NewRouter()
	router.Use(middleware.CORS)
	handlers.NewCountersHandler(projector, log).RegisterRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down analytics service")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Analytics service stopped")
}
