package ingest

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var batchBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

type metrics struct {
	messages      *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	state         *prometheus.GaugeVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *metrics
)

func loadMetrics() *metrics {
	metricsOnce.Do(func() {
		m := &metrics{
			messages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "launchpad",
				Subsystem: "ingest",
				Name:      "messages_total",
				Help:      "Log messages by commit action",
			}, []string{"partition", "action"}),
			batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "launchpad",
				Subsystem: "ingest",
				Name:      "batch_duration_seconds",
				Help:      "Time spent processing and committing a batch",
				Buckets:   batchBuckets,
			}, []string{"partition"}),
			state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "launchpad",
				Subsystem: "ingest",
				Name:      "consumer_state",
				Help:      "Current consumer state (0 waiting, 1 processing, 2 committing)",
			}, []string{"partition"}),
		}
		for _, collector := range []prometheus.Collector{m.messages, m.batchDuration, m.state} {
			if err := prometheus.Register(collector); err != nil {
				if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
					switch v := are.ExistingCollector.(type) {
					case *prometheus.CounterVec:
						m.messages = v
					case *prometheus.HistogramVec:
						m.batchDuration = v
					case *prometheus.GaugeVec:
						m.state = v
					}
				}
			}
		}
		sharedMetrics = m
	})
	return sharedMetrics
}

func (m *metrics) observe(partition int, out Outcome) {
	p := strconv.Itoa(partition)
	for _, action := range []Action{ActionAck, ActionTerm, ActionNak} {
		if n := out.Count(action); n > 0 {
			m.messages.WithLabelValues(p, action.String()).Add(float64(n))
		}
	}
}
