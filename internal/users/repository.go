package users

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fam-platform/fam-access/internal/platform/db"
)

// ErrNotFound indicates that the requested user does not exist.
var ErrNotFound = errors.New("users: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, identity_type, username, display_name, created_at`

// FindByID returns the user with the given id.
func (r *Repository) FindByID(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByIdentity returns the user matching the natural key. Username
// comparison is case-insensitive.
func (r *Repository) FindByIdentity(ctx context.Context, identity Identity) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE identity_type = $1 AND LOWER(username) = LOWER($2)`,
		string(identity.Type), identity.Name)
	return scanUser(row)
}

// FindOrCreate returns the user for the identity, creating the row on first
// reference. The unique index on (identity_type, lower(username)) resolves
// concurrent creations; the losing insert re-reads the winner's row.
func (r *Repository) FindOrCreate(ctx context.Context, identity Identity, displayName string) (User, error) {
	user, err := r.FindByIdentity(ctx, identity)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	if displayName == "" {
		displayName = identity.Name
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (identity_type, username, display_name) VALUES ($1, $2, $3) RETURNING `+userColumns,
		string(identity.Type), strings.TrimSpace(identity.Name), displayName)
	user, err = scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return r.FindByIdentity(ctx, identity)
		}
		return User{}, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var identityType string
	err := row.Scan(&u.ID, &identityType, &u.Username, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Type = IdentityType(identityType)
	return u, nil
}
