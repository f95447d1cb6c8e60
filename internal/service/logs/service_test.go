package logs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/repository/sqlite"
)

func TestGetReturnsOrderedEventsForDeployment(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)

	now := time.Now().UTC()
	require.NoError(t, store.CreateProject(ctx, &domain.Project{ID: "p-1", Name: "demo", GitURL: "https://example.com/a", Subdomain: "demo", CreatedAt: now}))
	for _, id := range []string{"d-1", "d-2"} {
		require.NoError(t, store.CreateDeployment(ctx, &domain.Deployment{ID: id, ProjectID: "p-1", Status: domain.DeploymentStatusQueued, CreatedAt: now, UpdatedAt: now}))
	}
	events := []domain.LogEvent{
		{EventID: "e-3", DeploymentID: "d-1", Log: "third", Sequence: 3, Timestamp: now.Add(2 * time.Second)},
		{EventID: "e-1", DeploymentID: "d-1", Log: "first", Sequence: 1, Timestamp: now},
		{EventID: "e-x", DeploymentID: "d-2", Log: "other", Sequence: 1, Timestamp: now},
		{EventID: "e-2", DeploymentID: "d-1", Log: "second", Sequence: 2, Timestamp: now},
	}
	for _, ev := range events {
		require.NoError(t, store.InsertLogEvent(ctx, ev))
	}

	svc := New(store)
	got, err := svc.Get(ctx, "d-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].Log, got[1].Log, got[2].Log})
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp))
		assert.Equal(t, "d-1", got[i].DeploymentID)
	}
}

func TestGetUnknownDeploymentIsEmpty(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)

	got, err := New(store).Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
