package proxy

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"
)

// DefaultDocument is served for requests to the site root.
const DefaultDocument = "/index.html"

// Proxy forwards each request to the content-storage location of the
// subdomain it was addressed to. It holds no per-request state and caches
// nothing.
type Proxy struct {
	base    *url.URL
	rp      *httputil.ReverseProxy
	logger  *slog.Logger
	metrics *metrics
}

// New constructs a proxy over baseURL, the location under which every
// project's content lives at /{subdomain}/. A nil transport uses
// http.DefaultTransport.
func New(baseURL string, transport http.RoundTripper, logger *slog.Logger) (*Proxy, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse proxy base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("proxy base url %q must be absolute", baseURL)
	}
	p := &Proxy{base: base, logger: logger, metrics: loadMetrics()}
	p.rp = &httputil.ReverseProxy{
		Rewrite:   p.rewrite,
		Transport: transport,
		ErrorLog:  slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return p, nil
}

// Subdomain returns the first label of host after dropping any port.
func Subdomain(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	label, _, _ := strings.Cut(host, ".")
	return label
}

// Target resolves the origin location for a subdomain.
func (p *Proxy) Target(subdomain string) *url.URL {
	target := *p.base
	target.Path = p.base.Path + "/" + subdomain
	target.RawPath = ""
	return &target
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	if pr.Out.URL.Path == "/" || pr.Out.URL.Path == "" {
		pr.Out.URL.Path = DefaultDocument
		pr.Out.URL.RawPath = ""
	}
	pr.SetURL(p.Target(Subdomain(pr.In.Host)))
}

// ServeHTTP resolves the subdomain and forwards the request.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	sub := Subdomain(req.Host)
	if sub == "" {
		http.Error(w, "unresolved host", http.StatusBadRequest)
		p.metrics.observe(http.StatusBadRequest, time.Since(start))
		return
	}
	recorder := &statusRecorder{ResponseWriter: w}
	p.rp.ServeHTTP(recorder, req)
	status := recorder.status
	if status == 0 {
		status = http.StatusOK
	}
	p.metrics.observe(status, time.Since(start))
	p.logger.Debug("proxied request",
		"subdomain", sub,
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
