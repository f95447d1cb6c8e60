package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/launchpad/internal/app/database"
	"github.com/splax/launchpad/internal/ingest"
	"github.com/splax/launchpad/internal/transport"
	"github.com/splax/launchpad/pkg/config"
	"github.com/splax/launchpad/pkg/logger"
)

func main() {
	_ = config.LoadDotenv()
	cfg := config.LoadIngestConfig()
	log := logger.New("ingest", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.DatabaseURL, database.Options{}, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	broker, err := transport.Connect(cfg.Transport, "launchpad-ingest")
	if err != nil {
		log.Error("failed to connect to log transport", "error", err)
		os.Exit(1)
	}
	defer broker.Close()

	pipeline, err := ingest.Setup(ctx, broker, store, cfg, log)
	if err != nil {
		log.Error("failed to set up ingestion consumers", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := store.Ping(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("ingest metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()

	log.Info("ingestion pipeline starting", "partitions", cfg.Transport.Partitions, "batch_size", cfg.BatchSize)
	runErr := pipeline.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown failed", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("ingestion pipeline failed", "error", runErr)
		os.Exit(1)
	}
	log.Info("ingestion pipeline stopped")
}
