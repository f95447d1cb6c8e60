package repository

import (
	"context"

	"github.com/splax/launchpad/internal/domain"
)

// ProjectRepository persists projects.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	GetProjectBySubdomain(ctx context.Context, subdomain string) (*domain.Project, error)
}

// DeploymentRepository stores deployment history.
type DeploymentRepository interface {
	CreateDeployment(ctx context.Context, deployment *domain.Deployment) error
	GetDeploymentByID(ctx context.Context, deploymentID string) (*domain.Deployment, error)
	ListDeploymentsByProject(ctx context.Context, projectID string, limit int) ([]domain.Deployment, error)
	// UpdateDeploymentStatus moves a deployment to status. It returns
	// ErrNotFound for unknown deployments and ErrTerminal when the deployment
	// already reached READY or FAILED.
	UpdateDeploymentStatus(ctx context.Context, deploymentID, status string) error
}

// LogRepository handles log persistence and retrieval.
type LogRepository interface {
	// InsertLogEvent stores event. Inserting an event id that already exists is
	// a no-op. ErrNotFound is returned when the deployment does not exist.
	InsertLogEvent(ctx context.Context, event domain.LogEvent) error
	ListLogEvents(ctx context.Context, deploymentID string) ([]domain.LogEvent, error)
}

// Store bundles the repositories backed by one database.
type Store interface {
	ProjectRepository
	DeploymentRepository
	LogRepository
	Ping(ctx context.Context) error
	Close()
}
