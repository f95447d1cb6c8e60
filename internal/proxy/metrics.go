package proxy

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
}

var (
	metricsOnce sync.Once
	shared      *metrics
)

func loadMetrics() *metrics {
	metricsOnce.Do(func() {
		m := &metrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "launchpad",
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Count of proxied requests by response status",
			}, []string{"status"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "launchpad",
				Subsystem: "proxy",
				Name:      "request_duration_seconds",
				Help:      "Latency of proxied requests including the origin round trip",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		if err := prometheus.Register(m.requests); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					m.requests = existing
				}
			}
		}
		if err := prometheus.Register(m.latency); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
					m.latency = existing
				}
			}
		}
		shared = m
	})
	return shared
}

func (m *metrics) observe(status int, d time.Duration) {
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.latency.Observe(d.Seconds())
}
