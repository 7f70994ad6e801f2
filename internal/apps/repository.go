package apps

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested application does not exist.
var ErrNotFound = errors.New("apps: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appColumns = `id, name, description, environment`

// FindByID returns the application with the given id.
func (r *Repository) FindByID(ctx context.Context, id int64) (Application, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appColumns+` FROM applications WHERE id = $1`, id)
	return scanApplication(row)
}

// FindByName returns the application with the given stored name.
func (r *Repository) FindByName(ctx context.Context, name string) (Application, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appColumns+` FROM applications WHERE name = $1`, name)
	return scanApplication(row)
}

// List returns all applications ordered by id.
func (r *Repository) List(ctx context.Context) ([]Application, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appColumns+` FROM applications ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Application
	for rows.Next() {
		var a Application
		var env string
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &env); err != nil {
			return nil, err
		}
		a.Environment = Environment(env)
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	var env string
	err := row.Scan(&a.ID, &a.Name, &a.Description, &env)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, err
	}
	a.Environment = Environment(env)
	return a, nil
}
