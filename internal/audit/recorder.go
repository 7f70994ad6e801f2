package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder writes audit entries. Inserts only; records are never updated or
// deleted. The recorder runs against the pool directly so audit writes stay
// outside the mutation transaction they describe.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists one audit entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: recorder not initialised")
	}
	if entry.Operation == "" || entry.Outcome == "" {
		return errors.New("audit: entry requires operation and outcome")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	scopeJSON, err := json.Marshal(entry.Scope)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO privilege_audit_records
		 (id, performer_type, performer_name, performer_display_name,
		  target_type, target_name, target_display_name,
		  application_id, operation, scope_details, outcome, error_detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID,
		entry.Performer.Type, entry.Performer.Name, entry.Performer.DisplayName,
		entry.Target.Type, entry.Target.Name, entry.Target.DisplayName,
		entry.ApplicationID, string(entry.Operation), scopeJSON,
		string(entry.Outcome), entry.ErrorDetail, entry.At)
	return err
}
