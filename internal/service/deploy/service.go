package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/launcher"
	"github.com/splax/launchpad/internal/repository"
)

// DefaultListLimit bounds deployment history queries.
const DefaultListLimit = 50

// launchTimeout bounds a worker launch, which may include an image pull.
const launchTimeout = 2 * time.Minute

// Service orchestrates deployments for projects.
type Service struct {
	projects    repository.ProjectRepository
	deployments repository.DeploymentRepository
	launcher    launcher.Launcher
	logger      *slog.Logger
	now         func() time.Time
}

// New constructs a deployment service.
func New(projects repository.ProjectRepository, deployments repository.DeploymentRepository, l launcher.Launcher, logger *slog.Logger) Service {
	return Service{
		projects:    projects,
		deployments: deployments,
		launcher:    l,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

var (
	errMissingProjectID    = fmt.Errorf("%w: project_id is required", domain.ErrValidation)
	errMissingDeploymentID = fmt.Errorf("%w: deployment id is required", domain.ErrValidation)
)

// Start records a QUEUED deployment and launches its build worker. It returns
// as soon as the worker has been launched. A launch failure leaves the record
// QUEUED and is reported as a dispatch error.
func (s Service) Start(ctx context.Context, projectID string) (*domain.Deployment, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errMissingProjectID
	}
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deployment := &domain.Deployment{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Status:    domain.DeploymentStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deployments.CreateDeployment(ctx, deployment); err != nil {
		return nil, err
	}

	build := domain.BuildContext{
		ProjectID:        project.ID,
		ProjectSubdomain: project.Subdomain,
		DeploymentID:     deployment.ID,
		RepositoryURL:    project.GitURL,
	}
	// The record already exists, so the launch outlives a disconnecting client.
	launchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), launchTimeout)
	defer cancel()
	if err := s.launcher.Launch(launchCtx, build); err != nil {
		s.logger.Error("build worker launch failed", "deployment_id", deployment.ID, "project_id", project.ID, "error", err)
		return deployment, fmt.Errorf("%w: %v", domain.ErrDispatch, err)
	}
	s.logger.Info("deployment queued", "deployment_id", deployment.ID, "project_id", project.ID)
	return deployment, nil
}

// Get returns a deployment by identifier.
func (s Service) Get(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	deploymentID = strings.TrimSpace(deploymentID)
	if deploymentID == "" {
		return nil, errMissingDeploymentID
	}
	return s.deployments.GetDeploymentByID(ctx, deploymentID)
}

// List returns the most recent deployments of a project, newest first.
func (s Service) List(ctx context.Context, projectID string, limit int) ([]domain.Deployment, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errMissingProjectID
	}
	if _, err := s.projects.GetProjectByID(ctx, projectID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	return s.deployments.ListDeploymentsByProject(ctx, projectID, limit)
}
