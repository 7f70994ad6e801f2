package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultAuditRetentionDays = 365

// AuditPruneJob deletes audit records older than the retention window.
type AuditPruneJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditPruneJob builds the prune job.
func NewAuditPruneJob(pool *pgxpool.Pool, logger *slog.Logger) *AuditPruneJob {
	return &AuditPruneJob{pool: pool, logger: logger}
}

// Handle processes TaskTypeAuditPrune tasks.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditPrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = defaultAuditRetentionDays
	}
	tag, err := j.pool.Exec(ctx,
		`DELETE FROM privilege_audit_records WHERE occurred_at < now() - make_interval(days => $1)`,
		payload.RetentionDays)
	if err != nil {
		return err
	}
	j.logger.Info("audit records pruned",
		slog.Int("retentionDays", payload.RetentionDays),
		slog.Int64("deleted", tag.RowsAffected()))
	return nil
}
