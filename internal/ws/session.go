package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Frame events.
const (
	EventSubscribe = "subscribe"
	EventMessage   = "message"
	EventError     = "error"
)

const maxFrameSize = 4096

// Frame is the JSON envelope exchanged with observers.
type Frame struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	Data    string `json:"data,omitempty"`
}

// EncodeMessage renders a message frame.
func EncodeMessage(channel, data string) []byte {
	payload, _ := json.Marshal(Frame{Event: EventMessage, Channel: channel, Data: data})
	return payload
}

// Session drives one observer connection: it reads subscribe frames, joins
// channels on the hub and confirms each join on the connection.
type Session struct {
	hub      *Hub
	conn     *websocket.Conn
	client   *Client
	log      *slog.Logger
	allow    func(channel string) bool
	channels map[string]struct{}
}

// NewSession wraps an upgraded connection. allow rejects channel names the
// gateway does not serve; nil accepts every non-empty name.
func NewSession(hub *Hub, conn *websocket.Conn, queue int, allow func(string) bool, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	if allow == nil {
		allow = func(string) bool { return true }
	}
	return &Session{
		hub:      hub,
		conn:     conn,
		client:   NewClient(conn, queue, log),
		log:      log,
		allow:    allow,
		channels: make(map[string]struct{}),
	}
}

// Serve reads frames until the connection closes, then leaves every channel.
func (s *Session) Serve() {
	defer func() {
		for channel := range s.channels {
			s.hub.Unregister(channel, s.client)
		}
		s.client.Close()
	}()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket closed", "error", err)
			}
			return
		}
		if err := s.handle(raw); err != nil {
			s.reply(Frame{Event: EventError, Data: err.Error()})
		}
	}
}

func (s *Session) handle(raw []byte) error {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return errors.New("malformed frame")
	}
	switch frame.Event {
	case EventSubscribe:
		channel := strings.TrimSpace(frame.Channel)
		if channel == "" || !s.allow(channel) {
			return errors.New("invalid channel")
		}
		if _, ok := s.channels[channel]; !ok {
			s.hub.Register(channel, s.client)
			s.channels[channel] = struct{}{}
		}
		s.reply(Frame{Event: EventMessage, Channel: channel, Data: "Joined " + channel})
		return nil
	default:
		return errors.New("unsupported event")
	}
}

func (s *Session) reply(frame Frame) {
	payload, _ := json.Marshal(frame)
	if err := s.client.Send(payload); err != nil {
		s.log.Debug("reply dropped", "event", frame.Event, "error", err)
	}
}
