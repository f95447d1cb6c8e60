package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/splax/launchpad/internal/docker"
	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/pkg/config"
)

// Launcher provisions one isolated build worker per deployment. Launch returns
// once the worker has been started; it never waits for the build.
type Launcher interface {
	Launch(ctx context.Context, build domain.BuildContext) error
}

// Settings are the collaborator settings every worker receives.
type Settings struct {
	BuildCommand string
	LogLevel     string
	Storage      config.StorageConfig
	Transport    config.TransportConfig
}

// Env renders the full worker environment for a build.
func Env(build domain.BuildContext, settings Settings) []string {
	env := []string{
		"GIT_REPOSITORY_URL=" + build.RepositoryURL,
		"PROJECT_ID=" + build.ProjectID,
		"PROJECT_SUBDOMAIN=" + build.ProjectSubdomain,
		"DEPLOYMENT_ID=" + build.DeploymentID,
	}
	if settings.BuildCommand != "" {
		env = append(env, "BUILD_COMMAND="+settings.BuildCommand)
	}
	if settings.LogLevel != "" {
		env = append(env, "LOG_LEVEL="+settings.LogLevel)
	}
	env = append(env, settings.Storage.Env()...)
	env = append(env, settings.Transport.Env()...)
	return env
}

// New selects a launcher backend from configuration.
func New(cfg config.LauncherConfig, settings Settings, logger *slog.Logger) (Launcher, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "docker":
		engine, err := docker.Connect(cfg.DockerHost)
		if err != nil {
			return nil, nil, err
		}
		return NewDocker(engine, cfg, settings, logger), engine.Close, nil
	case "process":
		p := NewProcess(cfg, settings, logger)
		return p, func() error { p.Wait(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported launcher backend %q", cfg.Backend)
	}
}
