package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.ProjectRepository    = (*Repository)(nil)
	_ repository.DeploymentRepository = (*Repository)(nil)
	_ repository.LogRepository        = (*Repository)(nil)
	_ repository.Store                = (*Repository)(nil)
)

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases pooled connections.
func (r *Repository) Close() {
	r.pool.Close()
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, name, git_url, subdomain, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, project.ID, project.Name, project.GitURL, project.Subdomain, project.CreatedAt)
	return mapError(err)
}

// GetProjectByID fetches a project by identifier.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	const query = `SELECT id, name, git_url, subdomain, created_at FROM projects WHERE id = $1`
	return r.scanProject(r.pool.QueryRow(ctx, query, projectID))
}

// GetProjectBySubdomain fetches the project owning subdomain.
func (r *Repository) GetProjectBySubdomain(ctx context.Context, subdomain string) (*domain.Project, error) {
	const query = `SELECT id, name, git_url, subdomain, created_at FROM projects WHERE subdomain = $1`
	return r.scanProject(r.pool.QueryRow(ctx, query, subdomain))
}

func (r *Repository) scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Name, &p.GitURL, &p.Subdomain, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapError(err)
	}
	return &p, nil
}

// CreateDeployment inserts a deployment record.
func (r *Repository) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	const query = `INSERT INTO deployments (id, project_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query,
		deployment.ID,
		deployment.ProjectID,
		deployment.Status,
		deployment.CreatedAt,
		deployment.UpdatedAt,
	)
	return mapError(err)
}

// GetDeploymentByID fetches a deployment by identifier.
func (r *Repository) GetDeploymentByID(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	const query = `SELECT id, project_id, status, created_at, updated_at FROM deployments WHERE id = $1`
	var d domain.Deployment
	if err := r.pool.QueryRow(ctx, query, deploymentID).Scan(&d.ID, &d.ProjectID, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapError(err)
	}
	return &d, nil
}

// ListDeploymentsByProject fetches recent deployments for a project.
func (r *Repository) ListDeploymentsByProject(ctx context.Context, projectID string, limit int) ([]domain.Deployment, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, project_id, status, created_at, updated_at
		FROM deployments WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	deployments := make([]domain.Deployment, 0)
	for rows.Next() {
		var d domain.Deployment
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// UpdateDeploymentStatus moves a non-terminal deployment to status.
func (r *Repository) UpdateDeploymentStatus(ctx context.Context, deploymentID, status string) error {
	const query = `UPDATE deployments SET status = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('READY', 'FAILED')`
	cmdTag, err := r.pool.Exec(ctx, query, deploymentID, status, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetDeploymentByID(ctx, deploymentID); err != nil {
		return err
	}
	return repository.ErrTerminal
}

// InsertLogEvent persists a log line; a duplicate event id is ignored.
func (r *Repository) InsertLogEvent(ctx context.Context, event domain.LogEvent) error {
	const query = `INSERT INTO log_events (event_id, deployment_id, project_id, log, level, sequence, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		event.EventID,
		event.DeploymentID,
		event.ProjectID,
		event.Log,
		event.Level,
		event.Sequence,
		event.Timestamp,
	)
	return mapError(err)
}

// ListLogEvents returns every log event of a deployment in emission order.
func (r *Repository) ListLogEvents(ctx context.Context, deploymentID string) ([]domain.LogEvent, error) {
	const query = `SELECT event_id, deployment_id, project_id, log, level, sequence, timestamp
		FROM log_events WHERE deployment_id = $1 ORDER BY timestamp ASC, sequence ASC`
	events := make([]domain.LogEvent, 0)
	rows, err := r.pool.Query(ctx, query, deploymentID)
	if err != nil {
		// A malformed identifier cannot own any events.
		if errors.Is(mapError(err), repository.ErrNotFound) {
			return events, nil
		}
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.LogEvent
		if err := rows.Scan(&e.EventID, &e.DeploymentID, &e.ProjectID, &e.Log, &e.Level, &e.Sequence, &e.Timestamp); err != nil {
			if errors.Is(mapError(err), repository.ErrNotFound) {
				return events, nil
			}
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(mapError(err), repository.ErrNotFound) {
			return events, nil
		}
		return nil, err
	}
	return events, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrConflict
		case "23503", "22P02":
			return repository.ErrNotFound
		}
	}
	return err
}
