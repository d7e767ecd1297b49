package main

import (
	"context"
	"encoding/json"
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
	"auction-core/pkg/logger"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithConfig(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development}).
		With("service", "bidding-service", "instance_id", cfg.Instance.ID)
	log.Info("Starting bidding service", "storage", cfg.Storage.Driver)

	infra, err := app.Open(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to initialize infrastructure", "error", err)
		os.Exit(1)
	}
	defer infra.Close()

	// Closing is left to the auction service's scheduler; bids still close
	// overdue auctions lazily.
	auctionManager, bidService, _ := infra.Services()

	router := mux.NewRouter()
	router.Use(middleware.CORS)
	router.Use(middleware.RequestLogger(log))

	handlers.NewBidHandler(bidService, log).RegisterRoutes(router)
	sessions, stopSessions := context.WithCancel(context.Background())
	defer stopSessions()
	wsHandler := handlers.NewWebSocketHandler(bidService, auctionManager, log)
	wsHandler.SetBaseContext(sessions)
	wsHandler.RegisterRoutes(router)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"service":   "bidding-service",
			"storage":   cfg.Storage.Driver,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)

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

	log.Info("Shutting down bidding service")
	// Hijacked websocket connections are not closed by server.Shutdown.
	stopSessions()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bidding service stopped")
}
