package domain

import "time"

// Log levels carried on build log lines.
const (
	LogLevelInfo  = "info"
	LogLevelError = "error"
)

// LogEvent is one durably stored build log line.
type LogEvent struct {
	EventID      string
	DeploymentID string
	ProjectID    string
	Log          string
	Level        string
	Sequence     int64
	Timestamp    time.Time
}
