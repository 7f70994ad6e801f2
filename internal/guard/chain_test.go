package guard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fam-platform/fam-access/internal/audit"
	"github.com/fam-platform/fam-access/internal/users"
)

type stubChecker struct {
	err   error
	calls int
}

func (c *stubChecker) Authorize(ctx context.Context, performer users.Identity, req Requirement) error {
	c.calls++
	return c.err
}

type captureRecorder struct {
	entries []audit.Entry
	err     error
}

func (r *captureRecorder) Record(ctx context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return r.err
}

type captureObserver struct {
	operations []string
	outcomes   []string
}

func (o *captureObserver) ObserveDecision(operation, outcome string) {
	o.operations = append(o.operations, operation)
	o.outcomes = append(o.outcomes, outcome)
}

func chainFixture(checkerErr error) (*Chain, *stubChecker, *captureRecorder, *captureObserver) {
	checker := &stubChecker{err: checkerErr}
	recorder := &captureRecorder{}
	observer := &captureObserver{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewChain(checker, recorder, logger, observer), checker, recorder, observer
}

func grantRequest() GuardedRequest {
	appID := int64(7)
	return GuardedRequest{
		Performer:     users.Identity{Type: users.IdentityUser, Name: "admin@example.com"},
		Target:        users.Identity{Type: users.IdentityUser, Name: "driver@example.com"},
		ApplicationID: &appID,
		Operation:     audit.OpDelegatedAdminGrant,
		Scope:         audit.ScopeDetails{After: "FLEET_MANAGER: 12345678"},
		Require:       Requirement{ApplicationID: 7, RoleID: 3},
	}
}

func TestChainRunSuccess(t *testing.T) {
	chain, checker, recorder, observer := chainFixture(nil)
	executed := false

	err := chain.Run(context.Background(), grantRequest(), func(ctx context.Context) error {
		executed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, 1, checker.calls)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, audit.OutcomeSuccess, entry.Outcome)
	assert.Equal(t, "admin@example.com", entry.Performer.Name)
	assert.Equal(t, "driver@example.com", entry.Target.Name)
	assert.Empty(t, entry.ErrorDetail)

	assert.Equal(t, []string{string(audit.OpDelegatedAdminGrant)}, observer.operations)
	assert.Equal(t, []string{string(audit.OutcomeSuccess)}, observer.outcomes)
}

func TestChainRunAuthorizationFailure(t *testing.T) {
	chain, _, recorder, _ := chainFixture(ErrPermissionRequired)
	executed := false

	err := chain.Run(context.Background(), grantRequest(), func(ctx context.Context) error {
		executed = true
		return nil
	})
	require.ErrorIs(t, err, ErrPermissionRequired)
	assert.False(t, executed)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.OutcomeFail, recorder.entries[0].Outcome)
	assert.Contains(t, recorder.entries[0].ErrorDetail, CodePermissionRequired)
}

func TestChainRunBlocksSelfGrant(t *testing.T) {
	chain, _, recorder, _ := chainFixture(nil)
	req := grantRequest()
	// Same principal under a different letter case.
	req.Target = users.Identity{Type: users.IdentityUser, Name: "Admin@Example.com"}
	executed := false

	err := chain.Run(context.Background(), req, func(ctx context.Context) error {
		executed = true
		return nil
	})
	require.ErrorIs(t, err, ErrSelfGrantProhibited)
	assert.False(t, executed)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.OutcomeFail, recorder.entries[0].Outcome)
}

func TestChainRunExecFailureAuditedOnce(t *testing.T) {
	chain, _, recorder, observer := chainFixture(nil)
	execErr := errors.New("insert failed")

	err := chain.Run(context.Background(), grantRequest(), func(ctx context.Context) error {
		return execErr
	})
	require.ErrorIs(t, err, execErr)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.OutcomeFail, recorder.entries[0].Outcome)
	assert.Equal(t, "insert failed", recorder.entries[0].ErrorDetail)
	assert.Len(t, observer.outcomes, 1)
}

func TestChainRunSurvivesRecorderFailure(t *testing.T) {
	chain, _, recorder, _ := chainFixture(nil)
	recorder.err = errors.New("audit store down")

	err := chain.Run(context.Background(), grantRequest(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	require.Len(t, recorder.entries, 1)
}

func TestChainRunAuditsCancelledContext(t *testing.T) {
	chain, _, recorder, _ := chainFixture(nil)
	ctx, cancel := context.WithCancel(context.Background())

	err := chain.Run(ctx, grantRequest(), func(execCtx context.Context) error {
		cancel()
		return execCtx.Err()
	})
	require.Error(t, err)

	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.OutcomeFail, recorder.entries[0].Outcome)
}
