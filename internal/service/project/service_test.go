package project

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/repository"
)

type stubProjectRepository struct {
	mu          sync.Mutex
	bySubdomain map[string]domain.Project
	createErr   error
}

func newStubRepo() *stubProjectRepository {
	return &stubProjectRepository{bySubdomain: make(map[string]domain.Project)}
}

func (s *stubProjectRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.bySubdomain[project.Subdomain]; ok {
		return repository.ErrConflict
	}
	s.bySubdomain[project.Subdomain] = *project
	return nil
}

func (s *stubProjectRepository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.bySubdomain {
		if p.ID == projectID {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubProjectRepository) GetProjectBySubdomain(ctx context.Context, subdomain string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.bySubdomain[subdomain]; ok {
		return &p, nil
	}
	return nil, repository.ErrNotFound
}

func newTestService(repo repository.ProjectRepository) Service {
	return New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateGeneratesSubdomain(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	project, err := svc.Create(context.Background(), CreateInput{Name: "demo", GitURL: "https://example.com/a/b"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if project.Name != "demo" || project.GitURL != "https://example.com/a/b" {
		t.Fatalf("unexpected project: %+v", project)
	}
	if !subdomainPattern.MatchString(project.Subdomain) {
		t.Fatalf("generated subdomain %q is not a DNS label", project.Subdomain)
	}
	if project.ID == "" || project.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be set: %+v", project)
	}
}

func TestCreateSubdomainsAreUnique(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	names := []string{"brave-blue-fox", "brave-blue-fox", "calm-green-owl", "calm-green-owl", "quick-red-elk"}
	var i int
	svc.generate = func() string {
		name := names[i%len(names)]
		i++
		return name
	}

	seen := make(map[string]bool)
	for n := 0; n < 3; n++ {
		project, err := svc.Create(context.Background(), CreateInput{Name: "site", GitURL: "https://example.com/a/b"})
		if err != nil {
			t.Fatalf("create project %d: %v", n, err)
		}
		if seen[project.Subdomain] {
			t.Fatalf("subdomain %q assigned twice", project.Subdomain)
		}
		seen[project.Subdomain] = true
	}
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newStubRepo()
	repo.bySubdomain["taken"] = domain.Project{ID: "p-0", Subdomain: "taken"}
	svc := newTestService(repo)
	svc.generate = func() string { return "taken" }

	_, err := svc.Create(context.Background(), CreateInput{Name: "site", GitURL: "https://example.com/a/b"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateRetriesOnInsertRace(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	calls := 0
	svc.generate = func() string {
		calls++
		if calls == 1 {
			// Appears free on lookup but is claimed before the insert.
			repo.bySubdomain["racy-name"] = domain.Project{ID: "other", Subdomain: "racy-name"}
			return "racy-name"
		}
		return "fresh-name"
	}
	svc.projects = &raceRepo{stubProjectRepository: repo}

	project, err := svc.Create(context.Background(), CreateInput{Name: "site", GitURL: "https://example.com/a/b"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if project.Subdomain != "fresh-name" {
		t.Fatalf("expected retry to pick fresh-name, got %q", project.Subdomain)
	}
}

// raceRepo reports every subdomain as free on lookup.
type raceRepo struct {
	*stubProjectRepository
}

func (r *raceRepo) GetProjectBySubdomain(ctx context.Context, subdomain string) (*domain.Project, error) {
	return nil, repository.ErrNotFound
}

func TestCreateSuppliedSubdomain(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	project, err := svc.Create(context.Background(), CreateInput{Name: "site", GitURL: "git://example.com/a.git", Subdomain: "My-Site"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if project.Subdomain != "my-site" {
		t.Fatalf("expected lowercased subdomain, got %q", project.Subdomain)
	}

	_, err = svc.Create(context.Background(), CreateInput{Name: "other", GitURL: "https://example.com/b", Subdomain: "my-site"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict for taken subdomain, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		input CreateInput
	}{
		{"empty name", CreateInput{Name: "  ", GitURL: "https://example.com/a/b"}},
		{"missing url", CreateInput{Name: "demo"}},
		{"relative url", CreateInput{Name: "demo", GitURL: "example.com/a/b"}},
		{"unsupported scheme", CreateInput{Name: "demo", GitURL: "ftp://example.com/a/b"}},
		{"no host", CreateInput{Name: "demo", GitURL: "https:///a/b"}},
		{"bad subdomain", CreateInput{Name: "demo", GitURL: "https://example.com/a/b", Subdomain: "not_a.label"}},
		{"leading hyphen", CreateInput{Name: "demo", GitURL: "https://example.com/a/b", Subdomain: "-site"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubRepo()
			svc := newTestService(repo)
			_, err := svc.Create(context.Background(), tc.input)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(repo.bySubdomain) != 0 {
				t.Fatalf("expected no project to be stored")
			}
		})
	}
}

func TestGetProject(t *testing.T) {
	repo := newStubRepo()
	repo.bySubdomain["site"] = domain.Project{ID: "p-1", Subdomain: "site"}
	svc := newTestService(repo)

	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	project, err := svc.Get(context.Background(), "p-1")
	if err != nil || project.Subdomain != "site" {
		t.Fatalf("unexpected result %+v, %v", project, err)
	}
}
