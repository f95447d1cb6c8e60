package ws

import (
	"context"
	"errors"
	"sync/atomic"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	// Send queues payload. ErrQueueFull drops only this frame; any other
	// error removes the subscriber from every channel.
	Send([]byte) error
	Close()
}

// Hub manages channel membership and fans messages out to members. It keeps
// no history, so a subscriber only sees messages broadcast after it joined.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	dropped   atomic.Int64
	done      chan struct{}
}

// message couples payload with its channel.
type message struct {
	channel string
	payload []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	channel string
	client  Subscriber
}

// NewHub creates a Hub whose loop runs until ctx is cancelled.
func NewHub(ctx context.Context) *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		done:      make(chan struct{}),
	}
	go h.run(ctx)
	return h
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
			}
			return
		case sub := <-h.register:
			if _, ok := h.clients[sub.channel]; !ok {
				h.clients[sub.channel] = make(map[Subscriber]struct{})
			}
			h.clients[sub.channel][sub.client] = struct{}{}
		case sub := <-h.unreg:
			h.remove(sub.channel, sub.client)
		case msg := <-h.broadcast:
			for c := range h.clients[msg.channel] {
				err := c.Send(msg.payload)
				switch {
				case err == nil:
				case errors.Is(err, ErrQueueFull):
					h.dropped.Add(1)
				default:
					c.Close()
					h.remove(msg.channel, c)
				}
			}
		}
	}
}

func (h *Hub) remove(channel string, client Subscriber) {
	clients, ok := h.clients[channel]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, channel)
	}
}

// Register adds a client to a channel. Messages broadcast after Register
// returns reach the client.
func (h *Hub) Register(channel string, client Subscriber) {
	select {
	case h.register <- subscription{channel: channel, client: client}:
	case <-h.done:
	}
}

// Unregister removes a client from a channel.
func (h *Hub) Unregister(channel string, client Subscriber) {
	select {
	case h.unreg <- subscription{channel: channel, client: client}:
	case <-h.done:
	}
}

// Broadcast sends payload to every current member of channel.
func (h *Hub) Broadcast(channel string, payload []byte) {
	select {
	case h.broadcast <- message{channel: channel, payload: payload}:
	case <-h.done:
	}
}

// Dropped reports how many frames were discarded for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
