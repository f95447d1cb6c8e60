package domain

import "time"

// Deployment lifecycle states.
const (
	DeploymentStatusQueued     = "QUEUED"
	DeploymentStatusInProgress = "IN_PROGRESS"
	DeploymentStatusReady      = "READY"
	DeploymentStatusFailed     = "FAILED"
)

// Deployment captures a single build-and-publish attempt for a project.
type Deployment struct {
	ID        string
	ProjectID string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminalStatus reports whether a deployment in status can no longer change.
func IsTerminalStatus(status string) bool {
	return status == DeploymentStatusReady || status == DeploymentStatusFailed
}

// ValidDeploymentStatus reports whether status is a known lifecycle state.
func ValidDeploymentStatus(status string) bool {
	switch status {
	case DeploymentStatusQueued, DeploymentStatusInProgress, DeploymentStatusReady, DeploymentStatusFailed:
		return true
	default:
		return false
	}
}

// BuildContext is the correlation context handed to a build worker at launch.
// It is never persisted.
type BuildContext struct {
	ProjectID        string
	ProjectSubdomain string
	DeploymentID     string
	RepositoryURL    string
}
