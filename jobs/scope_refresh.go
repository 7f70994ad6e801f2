package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fam-platform/fam-access/internal/scopes"
)

const scopeRefreshBatch = 200

// ScopeNameRefreshJob re-resolves the display names of every registered
// resource scope against the client directory. Runs nightly so renamed
// clients converge without waiting for cache expiry.
type ScopeNameRefreshJob struct {
	pool      *pgxpool.Pool
	directory scopes.DirectorySearcher
	registry  *scopes.Registry
	logger    *slog.Logger
}

// NewScopeNameRefreshJob builds the refresh job.
func NewScopeNameRefreshJob(pool *pgxpool.Pool, directory scopes.DirectorySearcher, registry *scopes.Registry, logger *slog.Logger) *ScopeNameRefreshJob {
	return &ScopeNameRefreshJob{pool: pool, directory: directory, registry: registry, logger: logger}
}

// Handle processes TaskTypeScopeNameRefresh tasks.
func (j *ScopeNameRefreshJob) Handle(ctx context.Context, _ *asynq.Task) error {
	rows, err := j.pool.Query(ctx, `SELECT id FROM resource_scopes ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	refreshed := 0
	for start := 0; start < len(ids); start += scopeRefreshBatch {
		end := start + scopeRefreshBatch
		if end > len(ids) {
			end = len(ids)
		}
		entries, err := j.directory.Search(ctx, ids[start:end])
		if err != nil {
			j.logger.Warn("directory search failed", slog.Any("error", err))
			continue
		}
		if err := j.registry.StoreNames(ctx, entries); err != nil {
			j.logger.Warn("store scope names failed", slog.Any("error", err))
			continue
		}
		refreshed += len(entries)
	}
	j.logger.Info("scope names refreshed",
		slog.Int("known", len(ids)),
		slog.Int("refreshed", refreshed))
	return nil
}
