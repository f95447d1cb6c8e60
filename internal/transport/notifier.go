package transport

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes best-effort live notifications on Redis pub/sub.
type Notifier struct {
	client *redis.Client
	prefix string
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewNotifier publishes on channels named prefix+deployment id.
func NewNotifier(client *redis.Client, prefix string) *Notifier {
	return &Notifier{client: client, prefix: prefix}
}

// Notify sends the raw log text to the deployment's channel.
func (n *Notifier) Notify(ctx context.Context, line LogLine) error {
	if err := n.client.Publish(ctx, Channel(n.prefix, line.DeploymentID), line.Log).Err(); err != nil {
		return fmt.Errorf("notify %s: %w", line.DeploymentID, err)
	}
	return nil
}
