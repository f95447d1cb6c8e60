package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher appends lines to the durable log stream.
type Publisher interface {
	Publish(ctx context.Context, line LogLine) error
}

// Broadcaster delivers lines to live observers. Delivery is best effort.
type Broadcaster interface {
	Notify(ctx context.Context, line LogLine) error
}

// Event is a single line emitted by a build.
type Event struct {
	Message string
	Level   string
	Status  string
}

// Emitter stamps build lines with the correlation context and a sequence
// number, then sends each one on the durable stream and the notification
// channel.
type Emitter struct {
	projectID    string
	deploymentID string
	durable      Publisher
	live         Broadcaster
	timeout      time.Duration
	log          *slog.Logger
	now          func() time.Time

	mu  sync.Mutex
	seq int64
}

// NewEmitter returns an emitter for one deployment. live may be nil.
func NewEmitter(projectID, deploymentID string, durable Publisher, live Broadcaster, timeout time.Duration, log *slog.Logger) (*Emitter, error) {
	if strings.TrimSpace(deploymentID) == "" {
		return nil, errors.New("emitter requires deployment id")
	}
	if durable == nil {
		return nil, errors.New("emitter requires a durable publisher")
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{
		projectID:    projectID,
		deploymentID: deploymentID,
		durable:      durable,
		live:         live,
		timeout:      timeout,
		log:          log,
		now:          time.Now,
	}, nil
}

// Emit publishes event. Lines are serialised so sequence numbers follow
// stream order. Only durable publish failures are returned.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	level := strings.TrimSpace(event.Level)
	if level == "" {
		level = "info"
	}
	e.seq++
	line := LogLine{
		ProjectID:    e.projectID,
		DeploymentID: e.deploymentID,
		Log:          event.Message,
		Level:        level,
		Status:       event.Status,
		Sequence:     e.seq,
		Timestamp:    e.now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := e.durable.Publish(pubCtx, line); err != nil {
		return fmt.Errorf("emit line %d: %w", line.Sequence, err)
	}
	if e.live != nil {
		if err := e.live.Notify(pubCtx, line); err != nil {
			e.log.Warn("live notification dropped", "deployment_id", e.deploymentID, "seq", line.Sequence, "error", err)
		}
	}
	return nil
}
