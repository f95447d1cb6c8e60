// Package worker performs one deployment's build: checkout, build command,
// output upload and progress reporting on the log transport.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/git"
	"github.com/splax/launchpad/internal/storage"
	"github.com/splax/launchpad/internal/transport"
	"github.com/splax/launchpad/internal/workspace"
	"github.com/splax/launchpad/pkg/config"
)

// Emitter publishes build log lines.
type Emitter interface {
	Emit(ctx context.Context, event transport.Event) error
}

// CloneFunc checks a repository out into dest.
type CloneFunc func(ctx context.Context, repoURL, dest string, opts git.CloneOptions) (string, error)

// Config parameterises a single build attempt.
type Config struct {
	Build        domain.BuildContext
	BuildCommand string
	KeyPrefix    string
	GitTimeout   time.Duration
	BuildTimeout time.Duration
}

// Runner executes one build attempt.
type Runner struct {
	cfg       Config
	emitter   Emitter
	uploader  storage.Uploader
	workspace *workspace.Manager
	clone     CloneFunc
	log       *slog.Logger
}

// New constructs a Runner.
func New(cfg Config, emitter Emitter, uploader storage.Uploader, ws *workspace.Manager, log *slog.Logger) (*Runner, error) {
	if strings.TrimSpace(cfg.Build.DeploymentID) == "" {
		return nil, errors.New("deployment id required")
	}
	if strings.TrimSpace(cfg.Build.RepositoryURL) == "" {
		return nil, errors.New("repository url required")
	}
	if strings.TrimSpace(cfg.Build.ProjectSubdomain) == "" {
		return nil, errors.New("project subdomain required")
	}
	if emitter == nil || uploader == nil || ws == nil {
		return nil, errors.New("emitter, uploader and workspace are required")
	}
	if strings.TrimSpace(cfg.BuildCommand) == "" {
		cfg.BuildCommand = config.DefaultBuildCommand
	}
	if cfg.GitTimeout <= 0 {
		cfg.GitTimeout = 2 * time.Minute
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 20 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:       cfg,
		emitter:   emitter,
		uploader:  uploader,
		workspace: ws,
		clone:     git.Clone,
		log:       log.With("deployment_id", cfg.Build.DeploymentID, "project_id", cfg.Build.ProjectID),
	}, nil
}

// Run performs the build. Every failure is reported as a FAILED log line
// before it is returned.
func (r *Runner) Run(ctx context.Context) error {
	r.emit(ctx, "Starting build process...", domain.LogLevelInfo, domain.DeploymentStatusInProgress)

	workdir, err := r.workspace.Prepare(r.cfg.Build.DeploymentID)
	if err != nil {
		return r.fail(ctx, "workspace", err)
	}
	defer func() {
		if err := r.workspace.Cleanup(workdir); err != nil {
			r.log.Error("workspace cleanup failed", "error", err)
		}
	}()

	source := filepath.Join(workdir, "source")
	gitCtx, cancelGit := context.WithTimeout(ctx, r.cfg.GitTimeout)
	progress := &progressWriter{onLine: func(line string) {
		r.emit(ctx, "git: "+line, domain.LogLevelInfo, "")
	}}
	commit, err := r.clone(gitCtx, r.cfg.Build.RepositoryURL, source, git.CloneOptions{Depth: 1, Progress: progress})
	cancelGit()
	progress.Flush()
	if err != nil {
		return r.fail(ctx, "clone", err)
	}
	r.emit(ctx, fmt.Sprintf("Cloned %s %s", r.cfg.Build.RepositoryURL, shortHash(commit)), domain.LogLevelInfo, "")

	buildCtx, cancelBuild := context.WithTimeout(ctx, r.cfg.BuildTimeout)
	code, err := runBuild(buildCtx, r.cfg.BuildCommand, source, func(line string, stderr bool) {
		if stderr {
			r.emit(ctx, "Error: "+line, domain.LogLevelError, "")
			return
		}
		r.emit(ctx, line, domain.LogLevelInfo, "")
	})
	cancelBuild()
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("build exceeded %s: %w", r.cfg.BuildTimeout, err)
	}
	if err != nil {
		return r.fail(ctx, "build", err)
	}
	if code != 0 {
		r.emit(ctx, fmt.Sprintf("Build failed with exit code %d", code), domain.LogLevelError, domain.DeploymentStatusFailed)
		return fmt.Errorf("%w: exit code %d", ErrBuildFailed, code)
	}

	r.emit(ctx, "Build complete. Uploading assets...", domain.LogLevelInfo, "")
	outputDir, err := ResolveOutputDir(source, OutputDirs)
	if err != nil {
		return r.fail(ctx, "output", err)
	}
	files, err := CollectFiles(outputDir)
	if err != nil {
		return r.fail(ctx, "output", err)
	}
	for _, rel := range files {
		r.emit(ctx, "Uploading "+rel, domain.LogLevelInfo, "")
		key := storage.Key(r.cfg.KeyPrefix, r.cfg.Build.ProjectSubdomain, rel)
		if err := storage.UploadFile(ctx, r.uploader, key, filepath.Join(outputDir, filepath.FromSlash(rel))); err != nil {
			r.emit(ctx, fmt.Sprintf("Error uploading file: %v", err), domain.LogLevelError, domain.DeploymentStatusFailed)
			return err
		}
	}

	r.log.Info("build published", "files", len(files))
	if err := r.emitter.Emit(ctx, transport.Event{Message: "Done", Level: domain.LogLevelInfo, Status: domain.DeploymentStatusReady}); err != nil {
		return fmt.Errorf("report completion: %w", err)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, stage string, err error) error {
	r.log.Error("build stage failed", "stage", stage, "error", err)
	r.emit(ctx, fmt.Sprintf("Error in build and upload process: %v", err), domain.LogLevelError, domain.DeploymentStatusFailed)
	return fmt.Errorf("%s: %w", stage, err)
}

// emit reports a line; transport failures are logged and the build carries on.
func (r *Runner) emit(ctx context.Context, message, level, status string) {
	if err := r.emitter.Emit(ctx, transport.Event{Message: message, Level: level, Status: status}); err != nil {
		r.log.Warn("log line not published", "error", err)
	}
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
