package deployments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates no deployment matched the lookup
var ErrNotFound = errors.New("deployment not found")

// Deployment is a tenant workload managed on shared infrastructure
type Deployment struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	ReleaseName string    `json:"release_name"`
	Version     string    `json:"version"`
	WorkspaceID string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store provides read access to deployments. Implementations must be safe
// for concurrent use: the gateway resolves deployments on every request.
type Store interface {
	// GetByReleaseName returns the deployment for a release name, or
	// ErrNotFound
	GetByReleaseName(ctx context.Context, releaseName string) (*Deployment, error)

	// GetByID returns the deployment with the given id, or ErrNotFound
	GetByID(ctx context.Context, id string) (*Deployment, error)

	// List returns all deployments, ordered by release name
	List(ctx context.Context) ([]*Deployment, error)
}

// SQLStore reads deployments from PostgreSQL
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store backed by the given database
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const deploymentColumns = `id, label, release_name, version, workspace_id, created_at, updated_at`

// GetByReleaseName returns the deployment for a release name
func (s *SQLStore) GetByReleaseName(ctx context.Context, releaseName string) (*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE release_name = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, releaseName))
}

// GetByID returns the deployment with the given id
func (s *SQLStore) GetByID(ctx context.Context, id string) (*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// List returns all deployments ordered by release name
func (s *SQLStore) List(ctx context.Context) ([]*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments ORDER BY release_name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var result []*Deployment
	for rows.Next() {
		var d Deployment
		if err := rows.Scan(&d.ID, &d.Label, &d.ReleaseName, &d.Version, &d.WorkspaceID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		result = append(result, &d)
	}
	return result, rows.Err()
}

func (s *SQLStore) scanOne(row *sql.Row) (*Deployment, error) {
	var d Deployment
	err := row.Scan(&d.ID, &d.Label, &d.ReleaseName, &d.Version, &d.WorkspaceID, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan deployment: %w", err)
	}
	return &d, nil
}
