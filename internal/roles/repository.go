package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fam-platform/fam-access/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a repository bound to a pool or transaction.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

const roleColumns = `id, application_id, name, purpose, display_name, role_kind, parent_role_id, resource_scope_id`

// FindByID returns the role with the given id.
func (r *Repository) FindByID(ctx context.Context, id int64) (Role, error) {
	row := r.q.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

// FindByName returns the role with the given name within an application.
func (r *Repository) FindByName(ctx context.Context, applicationID int64, name string) (Role, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE application_id = $1 AND name = $2`,
		applicationID, name)
	return scanRole(row)
}

// ListBase returns the application's base roles (no parent), ordered by id.
func (r *Repository) ListBase(ctx context.Context, applicationID int64) ([]Role, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE application_id = $1 AND parent_role_id IS NULL ORDER BY id`,
		applicationID)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// ListChildren returns the concrete children of an abstract role, ordered by id.
func (r *Repository) ListChildren(ctx context.Context, parentRoleID int64) ([]Role, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE parent_role_id = $1 ORDER BY id`,
		parentRoleID)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

// Create inserts a role and returns the stored row.
func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO roles (application_id, name, purpose, display_name, role_kind, parent_role_id, resource_scope_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+roleColumns,
		role.ApplicationID, role.Name, role.Purpose, role.DisplayName,
		string(role.Kind), role.ParentRoleID, role.ResourceScopeID)
	return scanRole(row)
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var result []Role
	for rows.Next() {
		var role Role
		var kind string
		if err := rows.Scan(&role.ID, &role.ApplicationID, &role.Name, &role.Purpose,
			&role.DisplayName, &kind, &role.ParentRoleID, &role.ResourceScopeID); err != nil {
			return nil, err
		}
		role.Kind = RoleKind(kind)
		result = append(result, role)
	}
	return result, rows.Err()
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var kind string
	err := row.Scan(&role.ID, &role.ApplicationID, &role.Name, &role.Purpose,
		&role.DisplayName, &kind, &role.ParentRoleID, &role.ResourceScopeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	role.Kind = RoleKind(kind)
	return role, nil
}
