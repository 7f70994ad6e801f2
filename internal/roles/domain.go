// Package roles stores the two-level role hierarchy: abstract roles and
// their per-resource concrete children.
package roles

import (
	"errors"
	"fmt"
)

// RoleKind distinguishes assignable roles from templates.
type RoleKind string

const (
	// KindAbstract marks a role template. Abstract roles are never assigned
	// directly; they are materialized per resource scope first.
	KindAbstract RoleKind = "ABSTRACT"
	// KindConcrete marks a role assignable to end users.
	KindConcrete RoleKind = "CONCRETE"
)

// Sentinel errors.
var (
	ErrNotFound          = errors.New("roles: not found")
	ErrInvalidParentRole = errors.New("roles: parent role must be abstract")
)

// Role is one row of the flat role store. Parent references are plain ids
// into the same store, never embedded role values.
//
// Invariants: an ABSTRACT role carries neither parent nor scope; at most one
// CONCRETE child exists per (parent, resource) pair; names are unique per
// application.
type Role struct {
	ID              int64
	ApplicationID   int64
	Name            string
	Purpose         string
	DisplayName     string
	Kind            RoleKind
	ParentRoleID    *int64
	ResourceScopeID *string
}

// IsAbstract reports whether the role is a template.
func (r Role) IsAbstract() bool { return r.Kind == KindAbstract }

// ChildRoleName derives the deterministic name of a scoped child role.
// Repeated resolutions for the same (parent, resource) pair hit the same row.
func ChildRoleName(parentName, resourceID string) string {
	return fmt.Sprintf("%s_%s", parentName, resourceID)
}

// ChildRolePurpose derives the purpose text of a scoped child role.
func ChildRolePurpose(parentPurpose, resourceID string) string {
	return fmt.Sprintf("%s for %s", parentPurpose, resourceID)
}
