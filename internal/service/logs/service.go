package logs

import (
	"context"
	"strings"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/repository"
)

// Service exposes durable build log history.
type Service struct {
	logs repository.LogRepository
}

// New constructs a log query service.
func New(logs repository.LogRepository) Service {
	return Service{logs: logs}
}

// Get returns every stored event for a deployment in emission order. An
// unknown deployment yields an empty slice.
func (s Service) Get(ctx context.Context, deploymentID string) ([]domain.LogEvent, error) {
	deploymentID = strings.TrimSpace(deploymentID)
	if deploymentID == "" {
		return []domain.LogEvent{}, nil
	}
	events, err := s.logs.ListLogEvents(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.LogEvent{}
	}
	return events, nil
}
