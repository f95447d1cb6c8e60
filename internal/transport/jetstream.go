package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/splax/launchpad/pkg/config"
)

// Broker owns the NATS connection and JetStream context of one process.
type Broker struct {
	conn *nats.Conn
	js   jetstream.JetStream
	cfg  config.TransportConfig
}

// Connect dials NATS and prepares a JetStream context.
func Connect(cfg config.TransportConfig, name string) (*Broker, error) {
	if cfg.NATSURL == "" {
		return nil, errors.New("nats url required")
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	opts := []nats.Option{nats.Name(name), nats.MaxReconnects(-1), nats.ReconnectWait(time.Second)}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}
	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &Broker{conn: conn, js: js, cfg: cfg}, nil
}

// Config returns the transport settings the broker was built with.
func (b *Broker) Config() config.TransportConfig {
	return b.cfg
}

// EnsureStream creates or updates the log stream covering every partition.
func (b *Broker) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	stream, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        b.cfg.Stream,
		Description: "Build log lines partitioned by deployment",
		Subjects:    []string{b.cfg.SubjectPrefix + ".>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", b.cfg.Stream, err)
	}
	return stream, nil
}

// Publish appends a line to the durable stream on its deployment's partition.
func (b *Broker) Publish(ctx context.Context, line LogLine) error {
	data, err := Encode(line)
	if err != nil {
		return fmt.Errorf("encode log line: %w", err)
	}
	subject := Subject(b.cfg.SubjectPrefix, b.cfg.Partitions, line.DeploymentID)
	if _, err := b.js.Publish(ctx, subject, data, jetstream.WithMsgID(MessageID(line))); err != nil {
		return fmt.Errorf("publish log line: %w", err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (b *Broker) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Drain()
}
