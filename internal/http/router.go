package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/service/deploy"
	"github.com/splax/launchpad/internal/service/logs"
	"github.com/splax/launchpad/internal/service/project"
	"github.com/splax/launchpad/internal/ws"
)

// Options carries the router's non-service dependencies.
type Options struct {
	// WSQueue bounds each observer's outbound frame queue.
	WSQueue int
	// AllowChannel rejects subscriptions the gateway does not serve.
	AllowChannel func(channel string) bool
	// DBHealth reports store reachability for /healthz.
	DBHealth func(context.Context) error
	// PublicScheme and ProxyDomain compose the public site URL of a project.
	PublicScheme string
	ProxyDomain  string
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	project  project.Service
	deploy   deploy.Service
	logs     logs.Service
	hub      *ws.Hub
	upgrader websocket.Upgrader
	opts     Options

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	dispatchFailures   prometheus.Counter
}

const healthCheckTimeout = 2 * time.Second

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, projectSvc project.Service, deploySvc deploy.Service, logSvc logs.Service, hub *ws.Hub, opts Options) *Router {
	if opts.WSQueue <= 0 {
		opts.WSQueue = 64
	}
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		project: projectSvc,
		deploy:  deploySvc,
		logs:    logSvc,
		hub:     hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		opts: opts,
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/project", r.audit("/project", r.handleCreateProject))
	r.mux.HandleFunc("/deploy", r.audit("/deploy", r.handleDeploy))
	r.mux.HandleFunc("/logs/", r.audit("/logs/{id}", r.handleLogs))
	r.mux.HandleFunc("/projects/", r.audit("/projects/{id}", r.handleProjectSubroutes))
	r.mux.HandleFunc("/deployments/", r.audit("/deployments/{id}", r.handleDeployment))
	r.mux.HandleFunc("/ws", r.audit("/ws", r.handleWS))
}

type projectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GitURL    string    `json:"git_url"`
	Subdomain string    `json:"subdomain"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Router) toProjectResponse(p *domain.Project) projectResponse {
	resp := projectResponse{ID: p.ID, Name: p.Name, GitURL: p.GitURL, Subdomain: p.Subdomain, CreatedAt: p.CreatedAt}
	if r.opts.ProxyDomain != "" {
		scheme := r.opts.PublicScheme
		if scheme == "" {
			scheme = "http"
		}
		resp.URL = scheme + "://" + p.Subdomain + "." + r.opts.ProxyDomain
	}
	return resp
}

type deploymentResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDeploymentResponse(d domain.Deployment) deploymentResponse {
	return deploymentResponse{ID: d.ID, ProjectID: d.ProjectID, Status: d.Status, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

type logEventResponse struct {
	EventID      string    `json:"event_id"`
	DeploymentID string    `json:"deployment_id"`
	Log          string    `json:"log"`
	Timestamp    time.Time `json:"timestamp"`
}

func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Name      string `json:"name"`
		GitURL    string `json:"git_url"`
		Subdomain string `json:"subdomain"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p, err := r.project.Create(req.Context(), project.CreateInput{
		Name:      payload.Name,
		GitURL:    payload.GitURL,
		Subdomain: payload.Subdomain,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"project": r.toProjectResponse(p)},
	})
}

func (r *Router) handleDeploy(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	deployment, err := r.deploy.Start(req.Context(), payload.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrDispatch) {
			r.recordDispatchFailure()
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": deployment.Status,
		"data":   map[string]string{"deployment_id": deployment.ID},
	})
}

func (r *Router) handleLogs(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	deploymentID := strings.TrimPrefix(req.URL.Path, "/logs/")
	if deploymentID == "" || strings.Contains(deploymentID, "/") {
		r.notFound(w)
		return
	}
	events, err := r.logs.Get(req.Context(), deploymentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	items := make([]logEventResponse, 0, len(events))
	for _, ev := range events {
		items = append(items, logEventResponse{
			EventID:      ev.EventID,
			DeploymentID: ev.DeploymentID,
			Log:          ev.Log,
			Timestamp:    ev.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": items})
}

func (r *Router) handleProjectSubroutes(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	trimmed := strings.TrimPrefix(req.URL.Path, "/projects/")
	parts := strings.Split(trimmed, "/")
	projectID := parts[0]
	if projectID == "" {
		r.notFound(w)
		return
	}
	switch {
	case len(parts) == 1:
		p, err := r.project.Get(req.Context(), projectID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"project": r.toProjectResponse(p)})
	case len(parts) == 2 && parts[1] == "deployments":
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		deployments, err := r.deploy.List(req.Context(), projectID, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		items := make([]deploymentResponse, 0, len(deployments))
		for _, d := range deployments {
			items = append(items, toDeploymentResponse(d))
		}
		writeJSON(w, http.StatusOK, map[string]any{"deployments": items})
	default:
		r.notFound(w)
	}
}

func (r *Router) handleDeployment(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	deploymentID := strings.TrimPrefix(req.URL.Path, "/deployments/")
	if deploymentID == "" || strings.Contains(deploymentID, "/") {
		r.notFound(w)
		return
	}
	deployment, err := r.deploy.Get(req.Context(), deploymentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deployment": toDeploymentResponse(*deployment)})
}

func (r *Router) handleWS(w http.ResponseWriter, req *http.Request) {
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime gateway disabled")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	ws.NewSession(r.hub, conn, r.opts.WSQueue, r.opts.AllowChannel, r.logger).Serve()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.opts.DBHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.opts.DBHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	if r.hub != nil {
		components["gateway"] = map[string]any{"status": "up", "dropped_frames": r.hub.Dropped()}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the websocket upgrader take over the connection.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		if sr.status == 0 {
			sr.status = http.StatusSwitchingProtocols
		}
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
