package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/splax/launchpad/internal/domain"
	"github.com/splax/launchpad/internal/repository"
)

// Repository implements the persistence interfaces on an embedded SQLite
// database. Use ":memory:" for an in-memory database, or a file path for
// persistent storage.
type Repository struct {
	db *sql.DB
}

var _ repository.Store = (*Repository)(nil)

// Open creates the database at path and ensures its schema exists.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps in-memory databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return repo, nil
}

func (r *Repository) initialize() error {
	const schema = `
	PRAGMA foreign_keys = ON;
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		git_url TEXT NOT NULL,
		subdomain TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deployments_project ON deployments(project_id, created_at);
	CREATE TABLE IF NOT EXISTS log_events (
		event_id TEXT PRIMARY KEY,
		deployment_id TEXT NOT NULL REFERENCES deployments(id),
		project_id TEXT NOT NULL DEFAULT '',
		log TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT 'info',
		sequence INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_log_events_deployment ON log_events(deployment_id, timestamp, sequence);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the database handle.
func (r *Repository) Close() {
	_ = r.db.Close()
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO projects (id, name, git_url, subdomain, created_at) VALUES (?, ?, ?, ?, ?)",
		project.ID, project.Name, project.GitURL, project.Subdomain, project.CreatedAt.UnixNano(),
	)
	return mapError(err)
}

// GetProjectByID fetches a project by identifier.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	return r.scanProject(r.db.QueryRowContext(ctx,
		"SELECT id, name, git_url, subdomain, created_at FROM projects WHERE id = ?", projectID))
}

// GetProjectBySubdomain fetches the project owning subdomain.
func (r *Repository) GetProjectBySubdomain(ctx context.Context, subdomain string) (*domain.Project, error) {
	return r.scanProject(r.db.QueryRowContext(ctx,
		"SELECT id, name, git_url, subdomain, created_at FROM projects WHERE subdomain = ?", subdomain))
}

func (r *Repository) scanProject(row *sql.Row) (*domain.Project, error) {
	var p domain.Project
	var createdAt int64
	if err := row.Scan(&p.ID, &p.Name, &p.GitURL, &p.Subdomain, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = fromNanos(createdAt)
	return &p, nil
}

// CreateDeployment inserts a deployment record.
func (r *Repository) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO deployments (id, project_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		deployment.ID, deployment.ProjectID, deployment.Status, deployment.CreatedAt.UnixNano(), deployment.UpdatedAt.UnixNano(),
	)
	return mapError(err)
}

// GetDeploymentByID fetches a deployment by identifier.
func (r *Repository) GetDeploymentByID(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, project_id, status, created_at, updated_at FROM deployments WHERE id = ?", deploymentID)
	d, err := scanDeployment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDeploymentsByProject fetches recent deployments for a project.
func (r *Repository) ListDeploymentsByProject(ctx context.Context, projectID string, limit int) ([]domain.Deployment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, project_id, status, created_at, updated_at FROM deployments WHERE project_id = ? ORDER BY created_at DESC LIMIT ?",
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()

	deployments := make([]domain.Deployment, 0)
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row scanner) (domain.Deployment, error) {
	var d domain.Deployment
	var createdAt, updatedAt int64
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Status, &createdAt, &updatedAt); err != nil {
		return domain.Deployment{}, err
	}
	d.CreatedAt = fromNanos(createdAt)
	d.UpdatedAt = fromNanos(updatedAt)
	return d, nil
}

// UpdateDeploymentStatus moves a non-terminal deployment to status.
func (r *Repository) UpdateDeploymentStatus(ctx context.Context, deploymentID, status string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE deployments SET status = ?, updated_at = ? WHERE id = ? AND status NOT IN ('READY', 'FAILED')",
		status, time.Now().UTC().UnixNano(), deploymentID,
	)
	if err != nil {
		return mapError(err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		return nil
	}
	if _, err := r.GetDeploymentByID(ctx, deploymentID); err != nil {
		return err
	}
	return repository.ErrTerminal
}

// InsertLogEvent persists a log line; a duplicate event id is ignored.
func (r *Repository) InsertLogEvent(ctx context.Context, event domain.LogEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO log_events (event_id, deployment_id, project_id, log, level, sequence, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.DeploymentID, event.ProjectID, event.Log, event.Level, event.Sequence, event.Timestamp.UnixNano(),
	)
	return mapError(err)
}

// ListLogEvents returns every log event of a deployment in emission order.
func (r *Repository) ListLogEvents(ctx context.Context, deploymentID string) ([]domain.LogEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, deployment_id, project_id, log, level, sequence, timestamp
		FROM log_events WHERE deployment_id = ? ORDER BY timestamp ASC, sequence ASC`,
		deploymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query log events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.LogEvent, 0)
	for rows.Next() {
		var e domain.LogEvent
		var ts int64
		if err := rows.Scan(&e.EventID, &e.DeploymentID, &e.ProjectID, &e.Log, &e.Level, &e.Sequence, &ts); err != nil {
			return nil, err
		}
		e.Timestamp = fromNanos(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

func fromNanos(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return repository.ErrConflict
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return repository.ErrNotFound
		}
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := sqliteErr.Error()
			switch {
			case strings.Contains(msg, "FOREIGN KEY"):
				return repository.ErrNotFound
			case strings.Contains(msg, "UNIQUE"):
				return repository.ErrConflict
			}
		}
	}
	return err
}
