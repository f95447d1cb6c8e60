package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/splax/launchpad/internal/transport"
	"github.com/splax/launchpad/pkg/config"
)

// Pipeline runs one consumer per stream partition.
type Pipeline struct {
	consumers []*Consumer
	log       *slog.Logger
}

// NewPipeline groups already constructed consumers.
func NewPipeline(log *slog.Logger, consumers ...*Consumer) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{consumers: consumers, log: log}
}

// Setup ensures the log stream and one durable pull consumer per partition
// exist, then wires a Consumer to each.
func Setup(ctx context.Context, broker *transport.Broker, store Store, cfg config.IngestConfig, log *slog.Logger) (*Pipeline, error) {
	stream, err := broker.EnsureStream(ctx)
	if err != nil {
		return nil, err
	}
	tcfg := broker.Config()
	proc := NewProcessor(store, cfg.Heartbeat, log)

	consumers := make([]*Consumer, 0, tcfg.Partitions)
	for partition := 0; partition < tcfg.Partitions; partition++ {
		durable := fmt.Sprintf("%s-p%d", cfg.ConsumerPrefix, partition)
		cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
			Durable:       durable,
			Description:   "Log ingestion for one partition",
			FilterSubject: transport.PartitionFilter(tcfg.SubjectPrefix, partition),
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       cfg.AckWait,
			DeliverPolicy: jetstream.DeliverAllPolicy,
			MaxAckPending: cfg.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("ensure consumer %s: %w", durable, err)
		}
		source := NewJetStreamSource(cons, cfg.BatchSize, cfg.FetchWait)
		consumers = append(consumers, NewConsumer(partition, source, proc, log))
	}
	return NewPipeline(log, consumers...), nil
}

// Run blocks until ctx is cancelled and every consumer returned.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(p.consumers))
	for _, c := range p.consumers {
		wg.Add(1)
		go func(c *Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				errs <- fmt.Errorf("partition %d: %w", c.partition, err)
			}
		}(c)
	}
	p.log.Info("ingestion started", "partitions", len(p.consumers))
	wg.Wait()
	close(errs)
	if err, ok := <-errs; ok {
		return err
	}
	return nil
}
