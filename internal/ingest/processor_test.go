package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/repository"
	"github.com/splax/launchpad/internal/repository/sqlite"
	"github.com/splax/launchpad/internal/transport"
)

type fakeMsg struct {
	data     []byte
	mu       sync.Mutex
	acks     int
	naks     int
	terms    int
	progress int
}

func (m *fakeMsg) Data() []byte { return m.data }

func (m *fakeMsg) Ack() error        { m.mu.Lock(); m.acks++; m.mu.Unlock(); return nil }
func (m *fakeMsg) Nak() error        { m.mu.Lock(); m.naks++; m.mu.Unlock(); return nil }
func (m *fakeMsg) Term() error       { m.mu.Lock(); m.terms++; m.mu.Unlock(); return nil }
func (m *fakeMsg) InProgress() error { m.mu.Lock(); m.progress++; m.mu.Unlock(); return nil }

func lineMsg(t *testing.T, line transport.LogLine) *fakeMsg {
	t.Helper()
	data, err := json.Marshal(line)
	require.NoError(t, err)
	return &fakeMsg{data: data}
}

type fakeStore struct {
	events   []domain.LogEvent
	statuses []string
	failAt   int
	failErr  error
	calls    int
}

func (s *fakeStore) InsertLogEvent(_ context.Context, event domain.LogEvent) error {
	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return s.failErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *fakeStore) UpdateDeploymentStatus(_ context.Context, _ string, status string) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deliveries(msgs ...*fakeMsg) []Delivery {
	out := make([]Delivery, len(msgs))
	for i, m := range msgs {
		out[i] = m
	}
	return out
}

func TestProcessPersistsEveryMessageThenAcks(t *testing.T) {
	store := &fakeStore{}
	proc := NewProcessor(store, 0, discard())
	msgs := []*fakeMsg{
		lineMsg(t, transport.LogLine{ProjectID: "p", DeploymentID: "d1", Log: "a", Sequence: 1}),
		lineMsg(t, transport.LogLine{ProjectID: "p", DeploymentID: "d2", Log: "b", Sequence: 1}),
		lineMsg(t, transport.LogLine{ProjectID: "p", DeploymentID: "d1", Log: "c", Sequence: 2, Status: domain.DeploymentStatusReady}),
	}

	out := proc.Process(context.Background(), deliveries(msgs...))
	require.NoError(t, out.Err)
	assert.Equal(t, 3, out.Count(ActionAck))
	for _, m := range msgs {
		assert.Zero(t, m.acks, "nothing is acknowledged before commit")
	}

	require.NoError(t, proc.Commit(out))
	for _, m := range msgs {
		assert.Equal(t, 1, m.acks)
	}
	require.Len(t, store.events, 3)
	assert.Equal(t, "d2", store.events[1].DeploymentID)
	assert.Equal(t, domain.LogLevelInfo, store.events[0].Level)
	assert.False(t, store.events[0].Timestamp.IsZero())
	assert.Equal(t, []string{domain.DeploymentStatusReady}, store.statuses)
}

func TestProcessStopsAtFirstFailureAndRedeliversRemainder(t *testing.T) {
	store := &fakeStore{failAt: 2, failErr: errors.New("connection reset")}
	proc := NewProcessor(store, 0, discard())
	msgs := []*fakeMsg{
		lineMsg(t, transport.LogLine{DeploymentID: "d1", Log: "a"}),
		lineMsg(t, transport.LogLine{DeploymentID: "d1", Log: "b"}),
		lineMsg(t, transport.LogLine{DeploymentID: "d1", Log: "c"}),
	}

	out := proc.Process(context.Background(), deliveries(msgs...))
	require.Error(t, out.Err)
	require.NoError(t, proc.Commit(out))

	assert.Equal(t, 1, msgs[0].acks)
	assert.Equal(t, 1, msgs[1].naks)
	assert.Equal(t, 1, msgs[2].naks)
	assert.Equal(t, 2, store.calls, "processing stops at the failing message")
}

func TestProcessTerminatesPoisonMessages(t *testing.T) {
	// The garbage payload never reaches the store, so the second store call
	// belongs to the third message.
	store := &fakeStore{failAt: 2, failErr: repository.ErrNotFound}
	proc := NewProcessor(store, 0, discard())
	msgs := []*fakeMsg{
		{data: []byte("garbage")},
		lineMsg(t, transport.LogLine{DeploymentID: "ok", Log: "a"}),
		lineMsg(t, transport.LogLine{DeploymentID: "gone", Log: "b"}),
	}

	out := proc.Process(context.Background(), deliveries(msgs...))
	require.NoError(t, out.Err)
	require.NoError(t, proc.Commit(out))

	assert.Equal(t, 1, msgs[0].terms)
	assert.Equal(t, 1, msgs[1].acks)
	assert.Equal(t, 1, msgs[2].terms)
}

func TestProcessSendsHeartbeatsDuringLongBatches(t *testing.T) {
	store := &fakeStore{}
	proc := NewProcessor(store, time.Second, discard())
	clock := time.Unix(0, 0)
	proc.now = func() time.Time {
		clock = clock.Add(600 * time.Millisecond)
		return clock
	}
	msgs := []*fakeMsg{
		lineMsg(t, transport.LogLine{DeploymentID: "d", Log: "a"}),
		lineMsg(t, transport.LogLine{DeploymentID: "d", Log: "b"}),
		lineMsg(t, transport.LogLine{DeploymentID: "d", Log: "c"}),
	}

	out := proc.Process(context.Background(), deliveries(msgs...))
	require.NoError(t, out.Err)
	for _, m := range msgs {
		assert.GreaterOrEqual(t, m.progress, 1)
	}
}

func TestEventIDFollowsPublishKey(t *testing.T) {
	line := transport.LogLine{DeploymentID: "d", Log: "a", Sequence: 4}
	assert.Equal(t, eventID(line), eventID(line))

	next := line
	next.Sequence = 5
	assert.NotEqual(t, eventID(line), eventID(next))

	otherDeployment := line
	otherDeployment.DeploymentID = "e"
	assert.NotEqual(t, eventID(line), eventID(otherDeployment))
}

func TestRedeliveryDoesNotDuplicateRows(t *testing.T) {
	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer repo.Close()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, repo.CreateProject(ctx, &domain.Project{ID: "p", Name: "demo", GitURL: "https://example.com/x", Subdomain: "x", CreatedAt: now}))
	require.NoError(t, repo.CreateDeployment(ctx, &domain.Deployment{ID: "d", ProjectID: "p", Status: domain.DeploymentStatusQueued, CreatedAt: now, UpdatedAt: now}))

	proc := NewProcessor(repo, 0, discard())
	batch := func() []Delivery {
		return deliveries(
			lineMsg(t, transport.LogLine{ProjectID: "p", DeploymentID: "d", Log: "one", Sequence: 1, Timestamp: now, Status: domain.DeploymentStatusInProgress}),
			lineMsg(t, transport.LogLine{ProjectID: "p", DeploymentID: "d", Log: "two", Sequence: 2, Timestamp: now, Status: domain.DeploymentStatusFailed}),
		)
	}
	for i := 0; i < 2; i++ {
		out := proc.Process(ctx, batch())
		require.NoError(t, out.Err)
		assert.Equal(t, 2, out.Count(ActionAck))
	}

	events, err := repo.ListLogEvents(ctx, "d")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "one", events[0].Log)

	dep, err := repo.GetDeploymentByID(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusFailed, dep.Status)
}
