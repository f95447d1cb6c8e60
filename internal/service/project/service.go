package project

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"log/slog"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/repository"
)

// CreateInput encapsulates project creation attributes.
type CreateInput struct {
	Name      string
	GitURL    string
	Subdomain string
}

// Service orchestrates project registration.
type Service struct {
	projects repository.ProjectRepository
	logger   *slog.Logger
	generate func() string
	now      func() time.Time
}

// New returns a project service.
func New(projects repository.ProjectRepository, logger *slog.Logger) Service {
	return Service{
		projects: projects,
		logger:   logger,
		generate: func() string { return petname.Generate(3, "-") },
		now:      func() time.Time { return time.Now().UTC() },
	}
}

const subdomainAttempts = 5

var (
	subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

	errInvalidName      = fmt.Errorf("%w: project name is required", domain.ErrValidation)
	errInvalidGitURL    = fmt.Errorf("%w: git_url must be an absolute http, https, ssh or git URL", domain.ErrValidation)
	errInvalidSubdomain = fmt.Errorf("%w: subdomain must be a lowercase DNS label", domain.ErrValidation)
	errMissingProjectID = fmt.Errorf("%w: project id required", domain.ErrValidation)
	errSubdomainTaken   = fmt.Errorf("%w: subdomain already in use", repository.ErrConflict)
)

// Create validates input and registers a project under a unique subdomain.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errInvalidName
	}
	gitURL := strings.TrimSpace(input.GitURL)
	if !validGitURL(gitURL) {
		return nil, errInvalidGitURL
	}
	subdomain := strings.ToLower(strings.TrimSpace(input.Subdomain))
	if subdomain != "" {
		if !subdomainPattern.MatchString(subdomain) {
			return nil, errInvalidSubdomain
		}
		project := s.newProject(name, gitURL, subdomain)
		if err := s.projects.CreateProject(ctx, project); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, errSubdomainTaken
			}
			return nil, err
		}
		s.logger.Info("project created", "project_id", project.ID, "subdomain", project.Subdomain)
		return project, nil
	}

	for attempt := 0; attempt < subdomainAttempts; attempt++ {
		candidate := s.generate()
		if _, err := s.projects.GetProjectBySubdomain(ctx, candidate); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		project := s.newProject(name, gitURL, candidate)
		err := s.projects.CreateProject(ctx, project)
		if errors.Is(err, repository.ErrConflict) {
			// Lost a race with a concurrent registration.
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.Info("project created", "project_id", project.ID, "subdomain", project.Subdomain)
		return project, nil
	}
	return nil, fmt.Errorf("%w: could not allocate a unique subdomain after %d attempts", repository.ErrConflict, subdomainAttempts)
}

// Get returns project details by identifier.
func (s Service) Get(ctx context.Context, projectID string) (*domain.Project, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errMissingProjectID
	}
	return s.projects.GetProjectByID(ctx, projectID)
}

func (s Service) newProject(name, gitURL, subdomain string) *domain.Project {
	return &domain.Project{
		ID:        uuid.NewString(),
		Name:      name,
		GitURL:    gitURL,
		Subdomain: subdomain,
		CreatedAt: s.now(),
	}
}

func validGitURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ssh", "git":
		return true
	default:
		return false
	}
}
