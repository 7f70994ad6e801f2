package guard

import (
	"context"
	"log/slog"

	"github.com/fam-platform/fam-access/internal/audit"
	"github.com/fam-platform/fam-access/internal/users"
)

// Requirement describes the authority a mutating operation demands.
// GlobalOnly restricts the operation to the global admin. Otherwise an
// application admin on ApplicationID qualifies, and when RoleID is set a
// delegated admin whose scope covers that role qualifies as well.
// ResourceID narrows the delegated match to one resource scope, letting a
// holder of a single concrete-child privilege act within that scope.
type Requirement struct {
	ApplicationID int64
	RoleID        int64
	ResourceID    string
	GlobalOnly    bool
}

// AuthorityChecker resolves whether the performer satisfies a requirement.
// A failed check returns ErrPermissionRequired (or a wrapped AuthzError).
type AuthorityChecker interface {
	Authorize(ctx context.Context, performer users.Identity, req Requirement) error
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// DecisionObserver counts guarded-operation outcomes.
type DecisionObserver interface {
	ObserveDecision(operation, outcome string)
}

// GuardedRequest carries everything the chain needs to authorize and audit
// one mutating operation.
type GuardedRequest struct {
	Performer        users.Identity
	PerformerDisplay string
	Target           users.Identity
	TargetDisplay    string
	ApplicationID    *int64
	Operation        audit.Operation
	Scope            audit.ScopeDetails
	Require          Requirement
}

// Chain runs the resource-authorization, self-grant and execution stages of
// the guard sequence. Token verification and the groups check happen earlier
// in the HTTP middleware.
type Chain struct {
	checker  AuthorityChecker
	recorder Recorder
	logger   *slog.Logger
	observer DecisionObserver
}

// NewChain constructs a guard chain. The observer may be nil.
func NewChain(checker AuthorityChecker, recorder Recorder, logger *slog.Logger, observer DecisionObserver) *Chain {
	return &Chain{checker: checker, recorder: recorder, logger: logger, observer: observer}
}

// Run executes the remaining chain stages in order, short-circuiting on the
// first failure: RESOURCE_AUTHORIZED, SELF_GRANT_CHECKED, then exec. Exactly
// one audit entry is recorded per call, whatever the outcome. The audit
// write is detached from the request's cancellation and from the mutation
// transaction, so a failed or aborted mutation still leaves its record.
func (c *Chain) Run(ctx context.Context, req GuardedRequest, exec func(context.Context) error) error {
	outcome := audit.OutcomeFail
	var opErr error

	defer func() {
		if c.observer != nil {
			c.observer.ObserveDecision(string(req.Operation), string(outcome))
		}
		entry := audit.Entry{
			Performer:     audit.Snapshot(req.Performer, req.PerformerDisplay),
			Target:        audit.Snapshot(req.Target, req.TargetDisplay),
			ApplicationID: req.ApplicationID,
			Operation:     req.Operation,
			Scope:         req.Scope,
			Outcome:       outcome,
		}
		if opErr != nil {
			entry.ErrorDetail = opErr.Error()
		}
		if err := c.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
			c.logger.Error("audit record failed",
				slog.String("operation", string(req.Operation)),
				slog.Any("error", err))
		}
	}()

	if err := c.checker.Authorize(ctx, req.Performer, req.Require); err != nil {
		opErr = err
		return err
	}

	// Natural-key comparison: the target may not have a stored row yet.
	if !req.Target.IsZero() && req.Performer.Equal(req.Target) {
		opErr = ErrSelfGrantProhibited
		return ErrSelfGrantProhibited
	}

	if err := exec(ctx); err != nil {
		opErr = err
		return err
	}
	outcome = audit.OutcomeSuccess
	return nil
}
