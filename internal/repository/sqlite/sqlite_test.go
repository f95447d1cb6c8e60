package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/repository"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo
}

func seed(t *testing.T, repo *Repository) (*domain.Project, *domain.Deployment) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	project := &domain.Project{ID: "p1", Name: "demo", GitURL: "https://example.com/a/b", Subdomain: "brave-red-fox", CreatedAt: now}
	require.NoError(t, repo.CreateProject(ctx, project))
	deployment := &domain.Deployment{ID: "d1", ProjectID: project.ID, Status: domain.DeploymentStatusQueued, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateDeployment(ctx, deployment))
	return project, deployment
}

func TestProjectLookups(t *testing.T) {
	repo := newRepo(t)
	project, _ := seed(t, repo)
	ctx := context.Background()

	got, err := repo.GetProjectBySubdomain(ctx, project.Subdomain)
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)
	assert.Equal(t, project.GitURL, got.GitURL)

	_, err = repo.GetProjectByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	dup := &domain.Project{ID: "p2", Name: "other", GitURL: "https://example.com/c", Subdomain: project.Subdomain, CreatedAt: time.Now()}
	assert.ErrorIs(t, repo.CreateProject(ctx, dup), repository.ErrConflict)
}

func TestCreateDeploymentRequiresProject(t *testing.T) {
	repo := newRepo(t)
	now := time.Now()
	err := repo.CreateDeployment(context.Background(), &domain.Deployment{ID: "d9", ProjectID: "nope", Status: domain.DeploymentStatusQueued, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateDeploymentStatusStopsAtTerminal(t *testing.T) {
	repo := newRepo(t)
	_, deployment := seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.UpdateDeploymentStatus(ctx, deployment.ID, domain.DeploymentStatusInProgress))
	require.NoError(t, repo.UpdateDeploymentStatus(ctx, deployment.ID, domain.DeploymentStatusReady))
	assert.ErrorIs(t, repo.UpdateDeploymentStatus(ctx, deployment.ID, domain.DeploymentStatusFailed), repository.ErrTerminal)
	assert.ErrorIs(t, repo.UpdateDeploymentStatus(ctx, "missing", domain.DeploymentStatusFailed), repository.ErrNotFound)

	got, err := repo.GetDeploymentByID(ctx, deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusReady, got.Status)

	list, err := repo.ListDeploymentsByProject(ctx, deployment.ProjectID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, deployment.ID, list[0].ID)
}

func TestLogEventsOrderedAndIdempotent(t *testing.T) {
	repo := newRepo(t)
	project, deployment := seed(t, repo)
	ctx := context.Background()
	base := time.Now().UTC()

	events := []domain.LogEvent{
		{EventID: "e3", DeploymentID: deployment.ID, ProjectID: project.ID, Log: "third", Level: domain.LogLevelInfo, Sequence: 3, Timestamp: base.Add(2 * time.Millisecond)},
		{EventID: "e1", DeploymentID: deployment.ID, ProjectID: project.ID, Log: "first", Level: domain.LogLevelInfo, Sequence: 1, Timestamp: base},
		{EventID: "e2", DeploymentID: deployment.ID, ProjectID: project.ID, Log: "second", Level: domain.LogLevelError, Sequence: 2, Timestamp: base},
	}
	for _, e := range events {
		require.NoError(t, repo.InsertLogEvent(ctx, e))
	}
	require.NoError(t, repo.InsertLogEvent(ctx, events[0]), "duplicate event ids are ignored")

	got, err := repo.ListLogEvents(ctx, deployment.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].Log, got[1].Log, got[2].Log})

	empty, err := repo.ListLogEvents(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)

	orphan := domain.LogEvent{EventID: "e4", DeploymentID: "unknown", Log: "x", Timestamp: base}
	assert.ErrorIs(t, repo.InsertLogEvent(ctx, orphan), repository.ErrNotFound)
}
