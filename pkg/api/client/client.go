package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client provides typed access to the launchpad API for interactive tools.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	dialer        *websocket.Dialer
	channelPrefix string
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithChannelPrefix overrides the live log channel prefix used by Tail.
func WithChannelPrefix(prefix string) Option {
	return func(c *Client) {
		if prefix != "" {
			c.channelPrefix = prefix
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:9000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:       strings.TrimRight(trimmed, "/"),
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		channelPrefix: "logs:",
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// Project describes a registered repository.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GitURL    string    `json:"git_url"`
	Subdomain string    `json:"subdomain"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProjectInput carries project registration fields. Subdomain is
// optional; the API generates one when empty.
type CreateProjectInput struct {
	Name      string `json:"name"`
	GitURL    string `json:"git_url"`
	Subdomain string `json:"subdomain,omitempty"`
}

// CreateProject registers a project.
func (c *Client) CreateProject(ctx context.Context, input CreateProjectInput) (Project, error) {
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Project Project `json:"project"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/project", input, &resp); err != nil {
		return Project{}, err
	}
	return resp.Data.Project, nil
}

// Deployment describes one build attempt.
type Deployment struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StartDeployment queues a build of the project and returns the deployment id
// and its initial status.
func (c *Client) StartDeployment(ctx context.Context, projectID string) (string, string, error) {
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			DeploymentID string `json:"deployment_id"`
		} `json:"data"`
	}
	body := map[string]string{"project_id": projectID}
	if err := c.do(ctx, http.MethodPost, "/deploy", body, &resp); err != nil {
		return "", "", err
	}
	return resp.Data.DeploymentID, resp.Status, nil
}

// GetDeployment fetches a deployment's current status.
func (c *Client) GetDeployment(ctx context.Context, deploymentID string) (Deployment, error) {
	var resp struct {
		Deployment Deployment `json:"deployment"`
	}
	if err := c.do(ctx, http.MethodGet, "/deployments/"+url.PathEscape(deploymentID), nil, &resp); err != nil {
		return Deployment{}, err
	}
	return resp.Deployment, nil
}

// LogEvent is one stored build log line.
type LogEvent struct {
	EventID      string    `json:"event_id"`
	DeploymentID string    `json:"deployment_id"`
	Log          string    `json:"log"`
	Timestamp    time.Time `json:"timestamp"`
}

// GetLogs returns the full stored log history of a deployment.
func (c *Client) GetLogs(ctx context.Context, deploymentID string) ([]LogEvent, error) {
	var resp struct {
		Logs []LogEvent `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, "/logs/"+url.PathEscape(deploymentID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

type frame struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	Data    string `json:"data,omitempty"`
}

// Tail subscribes to a deployment's live log channel and calls fn for every
// line until ctx is cancelled or the connection drops. Lines published before
// the subscription are not replayed.
func (c *Client) Tail(ctx context.Context, deploymentID string, fn func(line string)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial log gateway: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	channel := c.channelPrefix + deploymentID
	if err := conn.WriteJSON(frame{Event: "subscribe", Channel: channel}); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	joined := false
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read log gateway: %w", err)
		}
		switch f.Event {
		case "error":
			return errors.New(f.Data)
		case "message":
			if !joined && f.Data == "Joined "+channel {
				joined = true
				continue
			}
			fn(f.Data)
		}
	}
}
