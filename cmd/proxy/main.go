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

	"github.com/splax/launchpad/internal/proxy"
	"github.com/splax/launchpad/pkg/config"
	"github.com/splax/launchpad/pkg/logger"
)

func main() {
	_ = config.LoadDotenv()
	cfg := config.LoadProxyConfig()
	log := logger.New("proxy", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := proxy.New(cfg.BaseURL, nil, log)
	if err != nil {
		log.Error("invalid proxy configuration", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           p,
		ReadHeaderTimeout: 5 * time.Second,
	}

	admin := http.NewServeMux()
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	adminSrv := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           admin,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 2)
	go func() {
		log.Info("proxy starting", "addr", cfg.Addr, "base_url", cfg.BaseURL)
		errorCh <- srv.ListenAndServe()
	}()
	go func() {
		log.Info("proxy admin starting", "addr", cfg.AdminAddr)
		errorCh <- adminSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	for _, s := range []*http.Server{srv, adminSrv} {
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "addr", s.Addr, "error", err)
		}
	}
	log.Info("proxy stopped")
}
