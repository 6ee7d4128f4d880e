package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSubjectNotFound indicates no subject matched the lookup
var ErrSubjectNotFound = errors.New("subject not found")

// SQLStore reads subjects and their role bindings from PostgreSQL
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store backed by the given database
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// GetSubject returns the subject with the given id and all of its role
// bindings, or ErrSubjectNotFound
func (s *SQLStore) GetSubject(ctx context.Context, subjectID string) (*Subject, error) {
	query := `SELECT id, full_name, email, service_account FROM subjects WHERE id = $1`

	var subject Subject
	err := s.db.QueryRowContext(ctx, query, subjectID).Scan(
		&subject.ID, &subject.FullName, &subject.Email, &subject.ServiceAccount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subject %s: %w", subjectID, err)
	}

	bindings, err := s.roleBindings(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	subject.RoleBindings = bindings
	return &subject, nil
}

func (s *SQLStore) roleBindings(ctx context.Context, subjectID string) ([]RoleBinding, error) {
	query := `SELECT role, scope_type, scope_id FROM role_bindings WHERE subject_id = $1 ORDER BY role, scope_type, scope_id`

	rows, err := s.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role bindings for %s: %w", subjectID, err)
	}
	defer rows.Close()

	var bindings []RoleBinding
	for rows.Next() {
		var b RoleBinding
		var scopeID sql.NullString
		if err := rows.Scan(&b.Role, &b.ScopeType, &scopeID); err != nil {
			return nil, fmt.Errorf("failed to scan role binding: %w", err)
		}
		b.ScopeID = scopeID.String
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}
