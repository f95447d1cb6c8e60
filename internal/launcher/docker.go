package launcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/splax/launchpad/internal/docker"
	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/pkg/config"
)

// ContainerRunner starts one-shot containers.
type ContainerRunner interface {
	Run(ctx context.Context, spec docker.RunSpec) (string, error)
}

// Docker launches each build in its own auto-removed container.
type Docker struct {
	runner   ContainerRunner
	image    string
	network  string
	settings Settings
	logger   *slog.Logger
}

// NewDocker constructs a container launcher.
func NewDocker(runner ContainerRunner, cfg config.LauncherConfig, settings Settings, logger *slog.Logger) *Docker {
	if settings.BuildCommand == "" {
		settings.BuildCommand = cfg.BuildCommand
	}
	return &Docker{
		runner:   runner,
		image:    cfg.WorkerImage,
		network:  cfg.Network,
		settings: settings,
		logger:   logger,
	}
}

// Launch starts the worker container for the build.
func (d *Docker) Launch(ctx context.Context, build domain.BuildContext) error {
	spec := docker.RunSpec{
		Name:  "launchpad-build-" + build.DeploymentID,
		Image: d.image,
		Env:   Env(build, d.settings),
		Labels: map[string]string{
			"launchpad.project":    build.ProjectID,
			"launchpad.deployment": build.DeploymentID,
		},
		Network: d.network,
	}
	id, err := d.runner.Run(ctx, spec)
	if err != nil {
		return fmt.Errorf("launch build container: %w", err)
	}
	d.logger.Info("build worker started", "deployment_id", build.DeploymentID, "container_id", shortID(id))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
