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
	"github.com/ecochain/platform/pkg/contentstore"
	"github.com/ecochain/platform/pkg/dedupe"
	"github.com/ecochain/platform/pkg/ledger"
	"github.com/ecochain/platform/pkg/minting"
	"github.com/ecochain/platform/pkg/observability/metrics"
	"github.com/ecochain/platform/pkg/scoring"
	"github.com/ecochain/platform/pkg/upload"
)

func main() {
	logger.Init()
	cfg := config.Load()

	repo, fileStore := buildRepository(cfg)

	rules, err := scoring.LoadRules(cfg.ScoringRulesPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.ScoringRulesPath).Fatal("Failed to load scoring rules")
	}
	engine := scoring.NewEngine(rules)

	store := contentstore.NewLighthouseClient(
		cfg.ContentStoreBaseURL,
		cfg.ContentStoreAPIKey,
		cfg.ContentStoreGateway,
		cfg.ContentStoreTimeout,
		cfg.ContentStorePin,
	)

	client := ledger.NewHTTPClient(cfg.LedgerBaseURL, cfg.LedgerAPIKey, cfg.LedgerRequestTimeout, cfg.LedgerConfirmTimeout)
	dispatcher := minting.NewDispatcher(minting.NewOrchestrator(client, cfg.ExplorerBaseURL), cfg.MintQueueSize)

	producer := kafka.NewProducer(cfg.UploadEventsTopic)
	defer producer.Close()

	var dedupeIndex *dedupe.Index
	if cfg.DedupeEnabled {
		dedupeIndex = dedupe.NewIndex(database.GetRedis(), cfg.DedupeTTL)
	}

	service := upload.NewService(upload.NewValidator(), repo, store, cfg.ContentStoreGateway, engine, dispatcher, producer, dedupeIndex)

	handler := upload.NewHTTPHandler(service, upload.HandlerConfig{
		MaxBody:          cfg.MaxUploadBytes,
		Network:          cfg.LedgerNetwork,
		ExplorerBaseURL:  cfg.ExplorerBaseURL,
		NFTContract:      cfg.NFTContract,
		RegistryContract: cfg.RegistryContract,
	})

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/ready", readyCheck(repo)).Methods("GET")
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	handler.Register(api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if fileStore != nil && cfg.SessionBackupInterval > 0 {
		go backupLoop(ctx, fileStore, cfg.SessionBackupInterval)
	}

	// No write deadline: a mint with confirmation polling can hold the
	// upload response open for several minutes.
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"backend": cfg.SessionBackend,
		}).Info("Upload Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Upload Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	// Let queued mints finish before the process exits.
	if err := dispatcher.Stop(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Mint dispatcher did not drain in time")
	}

	if fileStore != nil {
		if _, err := fileStore.Backup(); err != nil {
			logger.Log.WithError(err).Error("Final session backup failed")
		}
	}

	logger.Log.Info("Upload Service stopped")
}

// buildRepository selects the session backend. The file backend doubles as
// the backup target, so it is returned separately for the backup loop.
func buildRepository(cfg *config.Config) (upload.Repository, *upload.FileStore) {
	if cfg.SessionBackend == "postgres" {
		db, err := database.GetPostgres()
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to postgres")
		}
		store := upload.NewGormStore(db)
		if err := store.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate session schema")
		}
		return store, nil
	}

	store, err := upload.NewFileStore(cfg.SessionDataDir)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open session store")
	}
	return store, store
}

func backupLoop(ctx context.Context, store *upload.FileStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path, err := store.Backup()
			if err != nil {
				logger.Log.WithError(err).Error("Session backup failed")
				continue
			}
			logger.Log.WithField("path", path).Info("Session backup written")
		}
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readyCheck probes the session backend. A not-found result still proves the
// backend answers, so only other errors mark the service unready.
func readyCheck(repo upload.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := repo.Get(r.Context(), "readiness-probe")
		if err != nil && !errors.Is(err, upload.ErrNotFound) {
			logger.Log.WithError(err).Warn("Readiness probe failed")
			http.Error(w, `{"status":"unready"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
