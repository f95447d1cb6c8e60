package config

import "time"

// IngestConfig holds runtime configuration for the log ingestion pipeline.
type IngestConfig struct {
	LogLevel        string
	DatabaseURL     string
	MetricsAddr     string
	BatchSize       int
	FetchWait       time.Duration
	AckWait         time.Duration
	Heartbeat       time.Duration
	ConsumerPrefix  string
	ShutdownTimeout time.Duration
	Transport       TransportConfig
}

// LoadIngestConfig constructs an IngestConfig from environment variables.
func LoadIngestConfig() IngestConfig {
	return IngestConfig{
		LogLevel:        GetString("LOG_LEVEL", "info"),
		DatabaseURL:     GetString("DATABASE_URL", "postgres://launchpad:launchpad@db:5432/launchpad?sslmode=disable"),
		MetricsAddr:     GetString("INGEST_METRICS_ADDR", ":9102"),
		BatchSize:       GetInt("INGEST_BATCH_SIZE", 100),
		FetchWait:       GetDuration("INGEST_FETCH_WAIT", 5*time.Second),
		AckWait:         GetDuration("INGEST_ACK_WAIT", 30*time.Second),
		Heartbeat:       GetDuration("INGEST_HEARTBEAT", 10*time.Second),
		ConsumerPrefix:  GetString("INGEST_CONSUMER_PREFIX", "ingest"),
		ShutdownTimeout: GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		Transport:       LoadTransportConfig(),
	}
}
