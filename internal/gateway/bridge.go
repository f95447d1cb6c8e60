// Package gateway forwards live log notifications from Redis to websocket
// observers.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/splax/launchpad/internal/ws"
)

// Broadcaster fans a payload out to a channel's members.
type Broadcaster interface {
	Broadcast(channel string, payload []byte)
}

// Bridge subscribes to every log channel on Redis and rebroadcasts each
// notification on the hub channel of the same name.
type Bridge struct {
	client *redis.Client
	hub    Broadcaster
	prefix string
	log    *slog.Logger
}

// NewBridge constructs a Bridge for channels starting with prefix.
func NewBridge(client *redis.Client, hub Broadcaster, prefix string, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{client: client, hub: hub, prefix: prefix, log: log}
}

// Ping verifies Redis is reachable.
func (b *Bridge) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Run pattern-subscribes and forwards until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", b.prefix, err)
	}
	b.log.Info("notification bridge subscribed", "pattern", b.prefix+"*")
	b.Forward(ctx, pubsub.Channel())
	return nil
}

// Forward rebroadcasts messages until ctx ends or messages closes.
func (b *Bridge) Forward(ctx context.Context, messages <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if !strings.HasPrefix(msg.Channel, b.prefix) {
				continue
			}
			b.hub.Broadcast(msg.Channel, ws.EncodeMessage(msg.Channel, msg.Payload))
		}
	}
}

// Allows reports whether channel is one the bridge serves.
func (b *Bridge) Allows(channel string) bool {
	return strings.HasPrefix(channel, b.prefix) && len(channel) > len(b.prefix)
}
