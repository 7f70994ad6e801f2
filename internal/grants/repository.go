package grants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fam-platform/fam-access/internal/apps"
	"github.com/fam-platform/fam-access/internal/platform/db"
	"github.com/fam-platform/fam-access/internal/roles"
	"github.com/fam-platform/fam-access/internal/scopes"
)

// Repository provides PostgreSQL backed persistence for the three grant
// tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AdminGrantsWithApps returns the user's application-admin grants joined to
// their applications, ordered by application id.
func (r *Repository) AdminGrantsWithApps(ctx context.Context, userID int64) ([]AdminGrantWithApp, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.user_id, g.application_id, g.created_at,
		       a.id, a.name, a.description, a.environment
		FROM application_admin_grants g
		JOIN applications a ON a.id = g.application_id
		WHERE g.user_id = $1
		ORDER BY a.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []AdminGrantWithApp
	for rows.Next() {
		var item AdminGrantWithApp
		var env string
		if err := rows.Scan(
			&item.Grant.ID, &item.Grant.UserID, &item.Grant.ApplicationID, &item.Grant.CreatedAt,
			&item.App.ID, &item.App.Name, &item.App.Description, &env); err != nil {
			return nil, err
		}
		item.App.Environment = apps.Environment(env)
		result = append(result, item)
	}
	return result, rows.Err()
}

// DelegatedPrivilegesWithRoles returns the user's delegated-admin privileges
// joined to their roles, applications and, for scoped children, the abstract
// parent role. Ordered by application id then role id for deterministic
// grouping.
func (r *Repository) DelegatedPrivilegesWithRoles(ctx context.Context, userID int64) ([]PrivilegeWithRole, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.user_id, p.role_id, p.created_at,
		       ro.id, ro.application_id, ro.name, ro.purpose, ro.display_name, ro.role_kind, ro.parent_role_id, ro.resource_scope_id,
		       a.id, a.name, a.description, a.environment,
		       pa.id, pa.application_id, pa.name, pa.purpose, pa.display_name, pa.role_kind
		FROM delegated_admin_privileges p
		JOIN roles ro ON ro.id = p.role_id
		JOIN applications a ON a.id = ro.application_id
		LEFT JOIN roles pa ON pa.id = ro.parent_role_id
		WHERE p.user_id = $1
		ORDER BY a.id, ro.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PrivilegeWithRole
	for rows.Next() {
		var item PrivilegeWithRole
		var roleKind, env string
		var parentID, parentAppID *int64
		var parentName, parentPurpose, parentDisplay, parentKind *string
		if err := rows.Scan(
			&item.Privilege.ID, &item.Privilege.UserID, &item.Privilege.RoleID, &item.Privilege.CreatedAt,
			&item.Role.ID, &item.Role.ApplicationID, &item.Role.Name, &item.Role.Purpose,
			&item.Role.DisplayName, &roleKind, &item.Role.ParentRoleID, &item.Role.ResourceScopeID,
			&item.App.ID, &item.App.Name, &item.App.Description, &env,
			&parentID, &parentAppID, &parentName, &parentPurpose, &parentDisplay, &parentKind); err != nil {
			return nil, err
		}
		item.Role.Kind = roles.RoleKind(roleKind)
		item.App.Environment = apps.Environment(env)
		if parentID != nil {
			item.Parent = &roles.Role{
				ID:            *parentID,
				ApplicationID: *parentAppID,
				Name:          *parentName,
				Purpose:       *parentPurpose,
				DisplayName:   *parentDisplay,
				Kind:          roles.RoleKind(*parentKind),
			}
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// CreateDelegatedPrivilege inserts a privilege row. The unique constraint on
// (user_id, role_id) raises ErrDuplicate for repeats.
func (r *Repository) CreateDelegatedPrivilege(ctx context.Context, userID, roleID int64) (DelegatedAdminPrivilege, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO delegated_admin_privileges (user_id, role_id)
		VALUES ($1, $2)
		RETURNING id, user_id, role_id, created_at`, userID, roleID)
	var p DelegatedAdminPrivilege
	if err := row.Scan(&p.ID, &p.UserID, &p.RoleID, &p.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return DelegatedAdminPrivilege{}, ErrDuplicate
		}
		return DelegatedAdminPrivilege{}, err
	}
	return p, nil
}

// FindDelegatedPrivilege returns one privilege joined to its role and
// application.
func (r *Repository) FindDelegatedPrivilege(ctx context.Context, id int64) (PrivilegeWithRole, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT p.id, p.user_id, p.role_id, p.created_at,
		       ro.id, ro.application_id, ro.name, ro.purpose, ro.display_name, ro.role_kind, ro.parent_role_id, ro.resource_scope_id,
		       a.id, a.name, a.description, a.environment
		FROM delegated_admin_privileges p
		JOIN roles ro ON ro.id = p.role_id
		JOIN applications a ON a.id = ro.application_id
		WHERE p.id = $1`, id)
	var item PrivilegeWithRole
	var roleKind, env string
	err := row.Scan(
		&item.Privilege.ID, &item.Privilege.UserID, &item.Privilege.RoleID, &item.Privilege.CreatedAt,
		&item.Role.ID, &item.Role.ApplicationID, &item.Role.Name, &item.Role.Purpose,
		&item.Role.DisplayName, &roleKind, &item.Role.ParentRoleID, &item.Role.ResourceScopeID,
		&item.App.ID, &item.App.Name, &item.App.Description, &env)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PrivilegeWithRole{}, ErrNotFound
		}
		return PrivilegeWithRole{}, err
	}
	item.Role.Kind = roles.RoleKind(roleKind)
	item.App.Environment = apps.Environment(env)
	return item, nil
}

// DeleteDelegatedPrivilege removes a privilege row.
func (r *Repository) DeleteDelegatedPrivilege(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM delegated_admin_privileges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateUserRoleAssignment inserts an end-user role assignment.
func (r *Repository) CreateUserRoleAssignment(ctx context.Context, userID, roleID int64) (UserRoleAssignment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO user_role_assignments (user_id, role_id)
		VALUES ($1, $2)
		RETURNING id, user_id, role_id, created_at`, userID, roleID)
	var a UserRoleAssignment
	if err := row.Scan(&a.ID, &a.UserID, &a.RoleID, &a.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return UserRoleAssignment{}, ErrDuplicate
		}
		return UserRoleAssignment{}, err
	}
	return a, nil
}

// FindUserRoleAssignment returns one assignment row.
func (r *Repository) FindUserRoleAssignment(ctx context.Context, id int64) (UserRoleAssignment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, role_id, created_at FROM user_role_assignments WHERE id = $1`, id)
	var a UserRoleAssignment
	if err := row.Scan(&a.ID, &a.UserID, &a.RoleID, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRoleAssignment{}, ErrNotFound
		}
		return UserRoleAssignment{}, err
	}
	return a, nil
}

// DeleteUserRoleAssignment removes an assignment row.
func (r *Repository) DeleteUserRoleAssignment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_role_assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAppAdminGrant inserts an application-admin grant.
func (r *Repository) CreateAppAdminGrant(ctx context.Context, userID, applicationID int64) (ApplicationAdminGrant, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO application_admin_grants (user_id, application_id)
		VALUES ($1, $2)
		RETURNING id, user_id, application_id, created_at`, userID, applicationID)
	var g ApplicationAdminGrant
	if err := row.Scan(&g.ID, &g.UserID, &g.ApplicationID, &g.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) {
			return ApplicationAdminGrant{}, ErrDuplicate
		}
		return ApplicationAdminGrant{}, err
	}
	return g, nil
}

// FindAppAdminGrant returns one admin grant joined to its application.
func (r *Repository) FindAppAdminGrant(ctx context.Context, id int64) (AdminGrantWithApp, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT g.id, g.user_id, g.application_id, g.created_at,
		       a.id, a.name, a.description, a.environment
		FROM application_admin_grants g
		JOIN applications a ON a.id = g.application_id
		WHERE g.id = $1`, id)
	var item AdminGrantWithApp
	var env string
	err := row.Scan(
		&item.Grant.ID, &item.Grant.UserID, &item.Grant.ApplicationID, &item.Grant.CreatedAt,
		&item.App.ID, &item.App.Name, &item.App.Description, &env)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AdminGrantWithApp{}, ErrNotFound
		}
		return AdminGrantWithApp{}, err
	}
	item.App.Environment = apps.Environment(env)
	return item, nil
}

// DeleteAppAdminGrant removes an admin grant row.
func (r *Repository) DeleteAppAdminGrant(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM application_admin_grants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// sort columns validated upstream against the fixed sort-field set
var listSortColumns = map[string]struct{}{
	"u.username":   {},
	"ro.name":      {},
	"p.created_at": {},
}

// ListAccessControlPrivileges returns one window of an application's
// delegated-admin privileges. The caller passes limit = pageSize+1 to probe
// for a next page.
func (r *Repository) ListAccessControlPrivileges(ctx context.Context, applicationID int64, limit, offset int, orderColumn, orderDir string) ([]AccessControlPrivilege, error) {
	if _, ok := listSortColumns[orderColumn]; !ok {
		return nil, fmt.Errorf("grants: unsupported sort column %q", orderColumn)
	}
	if orderDir != "ASC" && orderDir != "DESC" {
		return nil, fmt.Errorf("grants: unsupported sort direction %q", orderDir)
	}
	query := fmt.Sprintf(`
		SELECT p.id, u.username, u.display_name, ro.id, ro.name, ro.application_id, ro.resource_scope_id, p.created_at
		FROM delegated_admin_privileges p
		JOIN users u ON u.id = p.user_id
		JOIN roles ro ON ro.id = p.role_id
		WHERE ro.application_id = $1
		ORDER BY %s %s, p.id ASC
		LIMIT $2 OFFSET $3`, orderColumn, orderDir)
	rows, err := r.pool.Query(ctx, query, applicationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []AccessControlPrivilege
	for rows.Next() {
		var item AccessControlPrivilege
		var scopeID *string
		if err := rows.Scan(&item.ID, &item.Username, &item.UserDisplayName,
			&item.RoleID, &item.RoleName, &item.ApplicationID, &scopeID, &item.CreatedAt); err != nil {
			return nil, err
		}
		if scopeID != nil {
			item.ResourceScope = &scopes.ScopeRef{ID: *scopeID}
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
