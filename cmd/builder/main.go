package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/storage"
	"github.com/splax/launchpad/internal/transport"
	"github.com/splax/launchpad/internal/worker"
	"github.com/splax/launchpad/internal/workspace"
	"github.com/splax/launchpad/pkg/config"
	"github.com/splax/launchpad/pkg/logger"
)

func main() {
	_ = config.LoadDotenv()
	cfg := config.LoadBuilderConfig()
	log := logger.New("builder", logger.ParseLevel(cfg.LogLevel)).With(
		"deployment_id", cfg.DeploymentID,
		"project_id", cfg.ProjectID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker, err := transport.Connect(cfg.Transport, "launchpad-builder-"+cfg.DeploymentID)
	if err != nil {
		log.Error("failed to connect to log transport", "error", err)
		os.Exit(1)
	}
	defer broker.Close()

	var live transport.Broadcaster
	if redisClient, err := transport.NewRedisClient(cfg.Transport.RedisURL); err != nil {
		log.Warn("live log notifications disabled", "error", err)
	} else {
		defer redisClient.Close()
		live = transport.NewNotifier(redisClient, cfg.Transport.ChannelPrefix)
	}

	emitter, err := transport.NewEmitter(cfg.ProjectID, cfg.DeploymentID, broker, live, cfg.PublishTimeout, log)
	if err != nil {
		log.Error("failed to configure log emitter", "error", err)
		os.Exit(1)
	}

	uploader, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Error("failed to configure content storage", "error", err)
		_ = emitter.Emit(ctx, transport.Event{
			Message: "Error in build and upload process: " + err.Error(),
			Level:   domain.LogLevelError,
			Status:  domain.DeploymentStatusFailed,
		})
		os.Exit(1)
	}

	ws, err := workspace.New(cfg.Workdir)
	if err != nil {
		log.Error("failed to prepare workspace", "error", err)
		os.Exit(1)
	}

	runner, err := worker.New(worker.Config{
		Build: domain.BuildContext{
			ProjectID:        cfg.ProjectID,
			ProjectSubdomain: cfg.ProjectSubdomain,
			DeploymentID:     cfg.DeploymentID,
			RepositoryURL:    cfg.RepositoryURL,
		},
		BuildCommand: cfg.BuildCommand,
		KeyPrefix:    cfg.Storage.KeyPrefix,
		GitTimeout:   cfg.GitTimeout,
		BuildTimeout: cfg.BuildTimeout,
	}, emitter, uploader, ws, log)
	if err != nil {
		log.Error("invalid build context", "error", err)
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil {
		log.Error("build failed", "error", err)
		os.Exit(1)
	}
	log.Info("build finished")
}
