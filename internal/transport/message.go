package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidLine indicates a payload that can never be decoded into a LogLine.
var ErrInvalidLine = errors.New("transport: invalid log line")

// LogLine is the structured payload carried on the durable log stream.
type LogLine struct {
	ProjectID    string    `json:"project_id"`
	DeploymentID string    `json:"deployment_id"`
	Log          string    `json:"log"`
	Level        string    `json:"level,omitempty"`
	Status       string    `json:"status,omitempty"`
	Sequence     int64     `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
}

// Encode serialises a line for the stream.
func Encode(line LogLine) ([]byte, error) {
	return json.Marshal(line)
}

// Decode parses a stream payload. Payloads that are not JSON or carry no
// deployment id wrap ErrInvalidLine.
func Decode(data []byte) (LogLine, error) {
	var line LogLine
	if err := json.Unmarshal(data, &line); err != nil {
		return LogLine{}, fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}
	line.DeploymentID = strings.TrimSpace(line.DeploymentID)
	if line.DeploymentID == "" {
		return LogLine{}, fmt.Errorf("%w: missing deployment_id", ErrInvalidLine)
	}
	return line, nil
}
