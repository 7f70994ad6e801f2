// Package audit keeps an append-only record of every privilege change
// attempt, successful or not.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/fam-platform/fam-access/internal/users"
)

// Outcome of a recorded attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFail    Outcome = "FAIL"
)

// Operation identifies the kind of privilege change.
type Operation string

const (
	OpDelegatedAdminGrant  Operation = "DELEGATED_ADMIN_GRANT"
	OpDelegatedAdminRevoke Operation = "DELEGATED_ADMIN_REVOKE"
	OpRoleAssignmentGrant  Operation = "ROLE_ASSIGNMENT_GRANT"
	OpRoleAssignmentRevoke Operation = "ROLE_ASSIGNMENT_REVOKE"
	OpAppAdminGrant        Operation = "APP_ADMIN_GRANT"
	OpAppAdminRevoke       Operation = "APP_ADMIN_REVOKE"
)

// IdentitySnapshot captures a principal by value at write time, so later
// identity edits do not retroactively alter history.
type IdentitySnapshot struct {
	Type        string
	Name        string
	DisplayName string
}

// Snapshot builds an identity snapshot from a natural key. It works for
// targets that were never resolved to a stored user: audit completeness
// takes priority over audit richness.
func Snapshot(identity users.Identity, displayName string) IdentitySnapshot {
	if displayName == "" {
		displayName = identity.Name
	}
	return IdentitySnapshot{
		Type:        string(identity.Type),
		Name:        identity.Name,
		DisplayName: displayName,
	}
}

// ScopeDetails describes the privilege scope before and after the change.
type ScopeDetails struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// Entry is one immutable audit record.
type Entry struct {
	ID            uuid.UUID
	Performer     IdentitySnapshot
	Target        IdentitySnapshot
	ApplicationID *int64
	Operation     Operation
	Scope         ScopeDetails
	Outcome       Outcome
	ErrorDetail   string
	At            time.Time
}
