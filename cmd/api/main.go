package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/splax/launchpad/internal/app/database"
	"github.com/splax/launchpad/internal/gateway"
	httpx "github.com/splax/launchpad/internal/http"
	"github.com/splax/launchpad/internal/launcher"
	"github.com/splax/launchpad/internal/service/deploy"
	"github.com/splax/launchpad/internal/service/logs"
	"github.com/splax/launchpad/internal/service/project"
	"github.com/splax/launchpad/internal/transport"
	"github.com/splax/launchpad/internal/ws"
	"github.com/splax/launchpad/pkg/config"
	"github.com/splax/launchpad/pkg/logger"
)

func main() {
	_ = config.LoadDotenv()
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.DatabaseURL, database.Options{
		MigrationsDir: cfg.MigrationsDir,
		AutoMigrate:   cfg.AutoMigrate,
	}, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	l, closeLauncher, err := launcher.New(cfg.Launcher, launcher.Settings{
		BuildCommand: cfg.Launcher.BuildCommand,
		LogLevel:     cfg.LogLevel,
		Storage:      cfg.Storage,
		Transport:    cfg.Transport,
	}, log)
	if err != nil {
		log.Error("failed to configure launcher", "backend", cfg.Launcher.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeLauncher(); err != nil {
			log.Warn("launcher close failed", "error", err)
		}
	}()

	hub := ws.NewHub(ctx)
	redisClient, err := transport.NewRedisClient(cfg.Transport.RedisURL)
	if err != nil {
		log.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	bridge := gateway.NewBridge(redisClient, hub, cfg.Transport.ChannelPrefix, log)
	if err := bridge.Ping(ctx); err != nil {
		log.Warn("redis unavailable; live log fan-out will retry", "error", err)
	}
	go func() {
		for {
			err := bridge.Run(ctx)
			if ctx.Err() != nil {
				return
			}
			log.Warn("notification bridge stopped; restarting", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()

	projectSvc := project.New(store, log)
	deploySvc := deploy.New(store, store, l, log)
	logSvc := logs.New(store)

	router := httpx.NewRouter(log, projectSvc, deploySvc, logSvc, hub, httpx.Options{
		WSQueue:      cfg.WSSendBuffer,
		AllowChannel: bridge.Allows,
		DBHealth:     store.Ping,
		PublicScheme: cfg.PublicURLScheme,
		ProxyDomain:  cfg.ProxyDomain,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "launcher", cfg.Launcher.Backend)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
