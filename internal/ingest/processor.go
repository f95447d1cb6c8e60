// Package ingest persists build log lines from the durable stream and
// acknowledges each message only once its row is stored.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/repository"
	"github.com/splax/launchpad/internal/transport"
)

// eventNamespace scopes deterministic log event identifiers.
var eventNamespace = uuid.MustParse("6f1d3c2a-94b7-4c55-8a1e-2b0f7d9e4a10")

// Delivery is one message fetched from the stream. jetstream.Msg satisfies it.
type Delivery interface {
	Data() []byte
	Ack() error
	Nak() error
	Term() error
	InProgress() error
}

// Store is the persistence the pipeline writes to.
type Store interface {
	InsertLogEvent(ctx context.Context, event domain.LogEvent) error
	UpdateDeploymentStatus(ctx context.Context, deploymentID, status string) error
}

// Action is the commit decision for one message.
type Action int

const (
	// ActionAck marks a message whose side effects are durable.
	ActionAck Action = iota
	// ActionTerm marks a message that can never be stored.
	ActionTerm
	// ActionNak marks a message that must be redelivered.
	ActionNak
)

func (a Action) String() string {
	switch a {
	case ActionAck:
		return "ack"
	case ActionTerm:
		return "term"
	case ActionNak:
		return "nak"
	default:
		return "action(" + strconv.Itoa(int(a)) + ")"
	}
}

// Decision pairs a message with its commit action.
type Decision struct {
	Msg    Delivery
	Action Action
	Reason error
}

// Outcome is the result of processing one batch, in batch order.
type Outcome struct {
	Decisions []Decision
	// Err is the store failure that stopped the batch, if any.
	Err error
}

// Count returns how many decisions carry action.
func (o Outcome) Count(action Action) int {
	n := 0
	for _, d := range o.Decisions {
		if d.Action == action {
			n++
		}
	}
	return n
}

// Processor turns batches into log events. Processing and committing are
// separate steps so a batch's acknowledgements follow its stored prefix.
type Processor struct {
	store     Store
	heartbeat time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewProcessor constructs a Processor. A heartbeat of zero disables liveness
// signals.
func NewProcessor(store Store, heartbeat time.Duration, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{store: store, heartbeat: heartbeat, log: log, now: time.Now}
}

// Process stores batch in order and stops at the first store failure. Every
// message from the failure onwards is marked for redelivery.
func (p *Processor) Process(ctx context.Context, batch []Delivery) Outcome {
	out := Outcome{Decisions: make([]Decision, 0, len(batch))}
	lastBeat := p.now()
	for i, msg := range batch {
		if out.Err != nil {
			out.Decisions = append(out.Decisions, Decision{Msg: msg, Action: ActionNak, Reason: out.Err})
			continue
		}
		if p.heartbeat > 0 && p.now().Sub(lastBeat) >= p.heartbeat {
			p.touch(batch)
			lastBeat = p.now()
		}
		if err := ctx.Err(); err != nil {
			out.Err = err
			out.Decisions = append(out.Decisions, Decision{Msg: msg, Action: ActionNak, Reason: err})
			continue
		}

		err := p.persist(ctx, msg)
		switch {
		case err == nil:
			out.Decisions = append(out.Decisions, Decision{Msg: msg, Action: ActionAck})
		case isPoison(err):
			p.log.Warn("dropping undeliverable log line", "index", i, "error", err)
			out.Decisions = append(out.Decisions, Decision{Msg: msg, Action: ActionTerm, Reason: err})
		default:
			out.Err = err
			out.Decisions = append(out.Decisions, Decision{Msg: msg, Action: ActionNak, Reason: err})
		}
	}
	return out
}

// Commit applies the decisions of out in batch order. Acknowledgement errors
// are joined; the affected messages are redelivered after AckWait.
func (p *Processor) Commit(out Outcome) error {
	var errs []error
	for _, d := range out.Decisions {
		var err error
		switch d.Action {
		case ActionAck:
			err = d.Msg.Ack()
		case ActionTerm:
			err = d.Msg.Term()
		case ActionNak:
			err = d.Msg.Nak()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Action, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) touch(batch []Delivery) {
	for _, msg := range batch {
		if err := msg.InProgress(); err != nil {
			p.log.Debug("progress signal failed", "error", err)
		}
	}
}

func (p *Processor) persist(ctx context.Context, msg Delivery) error {
	line, err := transport.Decode(msg.Data())
	if err != nil {
		return err
	}
	event := domain.LogEvent{
		EventID:      eventID(line),
		DeploymentID: line.DeploymentID,
		ProjectID:    line.ProjectID,
		Log:          line.Log,
		Level:        line.Level,
		Sequence:     line.Sequence,
		Timestamp:    line.Timestamp.UTC(),
	}
	if event.Level == "" {
		event.Level = domain.LogLevelInfo
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if err := p.store.InsertLogEvent(ctx, event); err != nil {
		return fmt.Errorf("insert log event: %w", err)
	}
	if line.Status != "" && domain.ValidDeploymentStatus(line.Status) {
		err := p.store.UpdateDeploymentStatus(ctx, line.DeploymentID, line.Status)
		if err != nil && !errors.Is(err, repository.ErrTerminal) {
			return fmt.Errorf("update deployment status: %w", err)
		}
	}
	return nil
}

// eventID derives the event identity from the line's publish key, so
// redeliveries map to the same row whatever the stream position.
func eventID(line transport.LogLine) string {
	return uuid.NewSHA1(eventNamespace, []byte(transport.MessageID(line))).String()
}

func isPoison(err error) bool {
	return errors.Is(err, transport.ErrInvalidLine) || errors.Is(err, repository.ErrNotFound)
}
