package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/pkg/config"
)

// Process launches each build as a detached local builder process. It exists
// for single-host development where no container runtime is available.
type Process struct {
	binary   string
	workdir  string
	settings Settings
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewProcess constructs a process launcher.
func NewProcess(cfg config.LauncherConfig, settings Settings, logger *slog.Logger) *Process {
	if settings.BuildCommand == "" {
		settings.BuildCommand = cfg.BuildCommand
	}
	return &Process{
		binary:   cfg.BuilderBinary,
		workdir:  cfg.Workdir,
		settings: settings,
		logger:   logger,
	}
}

// Launch starts the builder binary and returns without waiting for it.
func (p *Process) Launch(ctx context.Context, build domain.BuildContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.workdir, 0o755); err != nil {
		return fmt.Errorf("prepare builder workdir: %w", err)
	}
	// The worker must outlive the request that launched it.
	cmd := exec.Command(p.binary)
	cmd.Dir = p.workdir
	cmd.Env = append(baseEnv(), Env(build, p.settings)...)
	cmd.Env = append(cmd.Env, "BUILDER_WORKDIR="+filepath.Join(p.workdir, "builds"))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start builder process: %w", err)
	}
	p.logger.Info("build worker started", "deployment_id", build.DeploymentID, "pid", cmd.Process.Pid)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := cmd.Wait(); err != nil {
			p.logger.Warn("build worker exited", "deployment_id", build.DeploymentID, "error", err)
			return
		}
		p.logger.Info("build worker exited", "deployment_id", build.DeploymentID)
	}()
	return nil
}

// Wait blocks until every launched worker has exited.
func (p *Process) Wait() {
	p.wg.Wait()
}

func baseEnv() []string {
	var env []string
	for _, key := range []string{"PATH", "HOME", "TMPDIR"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}
