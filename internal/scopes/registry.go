package scopes

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fam-platform/fam-access/internal/platform/db"
)

// ErrNotFound indicates that the requested scope entry does not exist.
var ErrNotFound = errors.New("scopes: not found")

// Registry persists resource-scope entries and keeps a shared read-mostly
// cache of their last-known display names. Stale names are served rather
// than re-fetched on every read.
type Registry struct {
	pool   *pgxpool.Pool
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRegistry constructs the registry. The redis client may be nil, in which
// case only the persisted names are used.
func NewRegistry(pool *pgxpool.Pool, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Registry{pool: pool, cache: cache, ttl: ttl, logger: logger}
}

// Find returns the scope entry for the identifier.
func (r *Registry) Find(ctx context.Context, id string) (ResourceScope, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, display_name, status FROM resource_scopes WHERE id = $1`, id)
	return scanScope(row)
}

// FindOrCreate returns the entry for the identifier, creating it on first
// reference. The display name stays empty until a directory lookup fills it.
// Concurrent creations are resolved by the primary key: the losing insert
// re-reads the winner's row.
func (r *Registry) FindOrCreate(ctx context.Context, id string) (ResourceScope, error) {
	if err := ValidateResourceID(id); err != nil {
		return ResourceScope{}, err
	}
	scope, err := r.Find(ctx, id)
	if err == nil {
		return scope, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return ResourceScope{}, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO resource_scopes (id) VALUES ($1) RETURNING id, display_name, status`, id)
	scope, err = scanScope(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return r.Find(ctx, id)
		}
		return ResourceScope{}, err
	}
	return scope, nil
}

// CachedName returns the last-known display name for the identifier, first
// from the shared cache, then from the persisted entry.
func (r *Registry) CachedName(ctx context.Context, id string) (string, bool) {
	if r.cache != nil {
		name, err := r.cache.Get(ctx, cacheKey(id)).Result()
		if err == nil && name != "" {
			return name, true
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.Warn("scope name cache read", slog.String("id", id), slog.Any("error", err))
		}
	}
	scope, err := r.Find(ctx, id)
	if err != nil || scope.DisplayName == nil || *scope.DisplayName == "" {
		return "", false
	}
	return *scope.DisplayName, true
}

// StoreNames persists directory results and refreshes the shared cache.
// Cache failures are logged and ignored; the persisted copy is authoritative.
func (r *Registry) StoreNames(ctx context.Context, entries []DirectoryEntry) error {
	for _, entry := range entries {
		if entry.ID == "" {
			continue
		}
		_, err := r.pool.Exec(ctx,
			`UPDATE resource_scopes SET display_name = $2, status = NULLIF($3, '') WHERE id = $1`,
			entry.ID, entry.DisplayName, entry.Status)
		if err != nil {
			return err
		}
		if r.cache != nil && entry.DisplayName != "" {
			if err := r.cache.Set(ctx, cacheKey(entry.ID), entry.DisplayName, r.ttl).Err(); err != nil {
				r.logger.Warn("scope name cache write", slog.String("id", entry.ID), slog.Any("error", err))
			}
		}
	}
	return nil
}

func cacheKey(id string) string {
	return "scope:name:" + id
}

func scanScope(row pgx.Row) (ResourceScope, error) {
	var s ResourceScope
	err := row.Scan(&s.ID, &s.DisplayName, &s.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResourceScope{}, ErrNotFound
		}
		return ResourceScope{}, err
	}
	return s, nil
}
