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

	"github.com/gorilla/mux"

	"github.com/ecochain/platform/pkg/common/config"
	"github.com/ecochain/platform/pkg/common/database"
	"github.com/ecochain/platform/pkg/common/kafka"
	"github.com/ecochain/platform/pkg/common/logger"
	"github.com/ecochain/platform/pkg/common/middleware"
	"github.com/ecochain/platform/pkg/notifier"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to postgres")
	}

	repo := notifier.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate notification schema")
	}

	service := notifier.NewService(repo)

	consumer := kafka.NewConsumer(cfg.UploadEventsTopic, "notifier-service")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, service.Process); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Fatal("Consumer error")
		}
	}()

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.BodyLimit(1 << 20))
	router.HandleFunc("/health", healthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	notifier.NewHTTPHandler(service).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8085"),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8085",
		}).Info("Notifier Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Notifier Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Notifier Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
