package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/launchpad/internal/ws"
)

type recordingHub struct {
	mu     sync.Mutex
	frames map[string][]ws.Frame
}

func (h *recordingHub) Broadcast(channel string, payload []byte) {
	var frame ws.Frame
	_ = json.Unmarshal(payload, &frame)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.frames == nil {
		h.frames = make(map[string][]ws.Frame)
	}
	h.frames[channel] = append(h.frames[channel], frame)
}

func TestForwardRebroadcastsMatchingChannels(t *testing.T) {
	hub := &recordingHub{}
	bridge := NewBridge(nil, hub, "logs:", nil)
	messages := make(chan *redis.Message, 3)
	messages <- &redis.Message{Channel: "logs:d1", Payload: "npm install"}
	messages <- &redis.Message{Channel: "other:d1", Payload: "ignored"}
	messages <- &redis.Message{Channel: "logs:d1", Payload: "Done"}
	close(messages)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bridge.Forward(ctx, messages)

	require.Len(t, hub.frames["logs:d1"], 2)
	assert.Equal(t, "npm install", hub.frames["logs:d1"][0].Data)
	assert.Equal(t, ws.EventMessage, hub.frames["logs:d1"][1].Event)
	assert.NotContains(t, hub.frames, "other:d1")
}

func TestAllows(t *testing.T) {
	bridge := NewBridge(nil, &recordingHub{}, "logs:", nil)
	assert.True(t, bridge.Allows("logs:abc"))
	assert.False(t, bridge.Allows("logs:"))
	assert.False(t, bridge.Allows("admin"))
}
