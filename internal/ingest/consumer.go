package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// State is the position of a partition consumer in its loop.
type State int32

const (
	StateWaiting State = iota
	StateProcessing
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateProcessing:
		return "processing"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// Source yields batches of messages for one partition. Next blocks until at
// least one message arrives, the fetch window expires (empty batch) or ctx ends.
type Source interface {
	Next(ctx context.Context) ([]Delivery, error)
}

// Consumer runs the waiting, processing and committing loop for one partition.
type Consumer struct {
	partition int
	source    Source
	proc      *Processor
	log       *slog.Logger
	metrics   *metrics
	backoff   time.Duration
	state     atomic.Int32
}

// NewConsumer constructs a partition consumer.
func NewConsumer(partition int, source Source, proc *Processor, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		partition: partition,
		source:    source,
		proc:      proc,
		log:       log.With("partition", partition),
		metrics:   loadMetrics(),
		backoff:   time.Second,
	}
}

// State reports the consumer's current state.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.state.WithLabelValues(strconv.Itoa(c.partition)).Set(float64(s))
}

type fetched struct {
	batch []Delivery
	err   error
}

// Run consumes until ctx is cancelled. A listener goroutine fetches batches
// and hands them over on a channel; it fetches the next batch only after the
// previous one was committed, so partition order holds across redeliveries.
func (c *Consumer) Run(ctx context.Context) error {
	batches := make(chan fetched)
	committed := make(chan struct{})
	go c.listen(ctx, batches, committed)

	c.setState(StateWaiting)
	for {
		var next fetched
		select {
		case <-ctx.Done():
			return nil
		case next = <-batches:
		}
		if next.err != nil {
			c.log.Warn("fetch failed", "error", next.err, "received", len(next.batch))
		}
		if len(next.batch) > 0 {
			c.handle(ctx, next.batch)
		} else if next.err != nil && !sleep(ctx, c.backoff) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case committed <- struct{}{}:
		}
	}
}

func (c *Consumer) listen(ctx context.Context, batches chan<- fetched, committed <-chan struct{}) {
	for {
		batch, err := c.source.Next(ctx)
		select {
		case <-ctx.Done():
			return
		case batches <- fetched{batch: batch, err: err}:
		}
		select {
		case <-ctx.Done():
			return
		case <-committed:
		}
	}
}

func (c *Consumer) handle(ctx context.Context, batch []Delivery) {
	started := time.Now()
	c.setState(StateProcessing)
	// A batch in flight is finished against a context that survives shutdown
	// so its stored prefix still gets acknowledged.
	out := c.proc.Process(context.WithoutCancel(ctx), batch)

	c.setState(StateCommitting)
	if err := c.proc.Commit(out); err != nil {
		c.log.Warn("commit incomplete", "error", err)
	}
	c.metrics.observe(c.partition, out)
	c.metrics.batchDuration.WithLabelValues(strconv.Itoa(c.partition)).Observe(time.Since(started).Seconds())
	c.setState(StateWaiting)

	if out.Err != nil {
		c.log.Error("batch stopped on store failure", "size", len(batch),
			"acked", out.Count(ActionAck), "redeliver", out.Count(ActionNak), "error", out.Err)
		sleep(ctx, c.backoff)
		return
	}
	c.log.Debug("batch committed", "size", len(batch), "acked", out.Count(ActionAck), "terminated", out.Count(ActionTerm))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// fetcher is the part of jetstream.Consumer a Source needs.
type fetcher interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

// JetStreamSource pulls batches from a durable JetStream consumer.
type JetStreamSource struct {
	consumer fetcher
	size     int
	maxWait  time.Duration
}

// NewJetStreamSource wraps consumer.
func NewJetStreamSource(consumer jetstream.Consumer, size int, maxWait time.Duration) *JetStreamSource {
	return &JetStreamSource{consumer: consumer, size: size, maxWait: maxWait}
}

// Next implements Source.
func (s *JetStreamSource) Next(ctx context.Context) ([]Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch, err := s.consumer.Fetch(s.size, jetstream.FetchMaxWait(s.maxWait))
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	msgs := make([]Delivery, 0, s.size)
	for msg := range batch.Messages() {
		msgs = append(msgs, msg)
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return msgs, fmt.Errorf("fetch batch: %w", err)
	}
	return msgs, nil
}
