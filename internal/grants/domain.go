// Package grants holds the privilege store: end-user role assignments,
// application-admin grants and delegated-admin privileges, plus the
// aggregated access-grant view computed from them.
package grants

import (
	"errors"
	"time"

	"github.com/fam-platform/fam-access/internal/apps"
	"github.com/fam-platform/fam-access/internal/roles"
	"github.com/fam-platform/fam-access/internal/scopes"
	"github.com/fam-platform/fam-access/internal/shared"
)

// Sentinel errors.
var (
	ErrNotFound     = errors.New("grants: not found")
	ErrDuplicate    = errors.New("grants: already granted")
	ErrInvalidInput = errors.New("grants: invalid input")
)

// UserRoleAssignment is a direct end-user grant, unique per (user, role).
type UserRoleAssignment struct {
	ID        int64
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}

// ApplicationAdminGrant gives authority over one application's roles and
// delegations, unique per (user, application). A grant on the bootstrap
// application elevates the holder to global admin.
type ApplicationAdminGrant struct {
	ID            int64
	UserID        int64
	ApplicationID int64
	CreatedAt     time.Time
}

// DelegatedAdminPrivilege lets its holder grant and revoke role assignments,
// unique per (user, role). On an abstract role the authority covers every
// resource-scoped child, created or not; on a concrete role it covers that
// single scope.
type DelegatedAdminPrivilege struct {
	ID        int64
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}

// AdminGrantWithApp joins an admin grant to its application row.
type AdminGrantWithApp struct {
	Grant ApplicationAdminGrant
	App   apps.Application
}

// PrivilegeWithRole joins a delegated privilege to its role, the role's
// application and, for scoped children, the abstract parent.
type PrivilegeWithRole struct {
	Privilege DelegatedAdminPrivilege
	Role      roles.Role
	App       apps.Application
	Parent    *roles.Role
}

// Authority classes appearing in the access-grant summary, in their fixed
// output order.
type Authority string

const (
	AuthorityGlobalAdmin    Authority = "GLOBAL_ADMIN"
	AuthorityAppAdmin       Authority = "APP_ADMIN"
	AuthorityDelegatedAdmin Authority = "DELEGATED_ADMIN"
)

// RoleGrant is one logical role entry in a summary section. A collapsed
// abstract role carries the resource scopes of all its granted children.
type RoleGrant struct {
	RoleID         int64             `json:"roleId"`
	Name           string            `json:"name"`
	DisplayName    string            `json:"displayName,omitempty"`
	ResourceScopes []scopes.ScopeRef `json:"resourceScopes,omitempty"`
}

// ApplicationGrants groups a section's roles under one application. The
// application name is returned with its environment suffix stripped.
type ApplicationGrants struct {
	ApplicationID   int64       `json:"applicationId"`
	ApplicationName string      `json:"applicationName"`
	Roles           []RoleGrant `json:"roles,omitempty"`
}

// Section is one authority class of the summary.
type Section struct {
	Authority    Authority           `json:"authority"`
	Applications []ApplicationGrants `json:"applications"`
}

// Summary is the merged access-grant view for one user.
type Summary struct {
	UserID   int64     `json:"userId"`
	Sections []Section `json:"sections"`
}

// ResourceScopeRefs exposes every scope reference for display-name enrichment.
func (s *Summary) ResourceScopeRefs() []*scopes.ScopeRef {
	var refs []*scopes.ScopeRef
	for i := range s.Sections {
		for j := range s.Sections[i].Applications {
			scoped := s.Sections[i].Applications[j].Roles
			for k := range scoped {
				for l := range scoped[k].ResourceScopes {
					refs = append(refs, &scoped[k].ResourceScopes[l])
				}
			}
		}
	}
	return refs
}

// AccessControlPrivilege is one row of the paged privilege listing.
type AccessControlPrivilege struct {
	ID              int64            `json:"id"`
	Username        string           `json:"username"`
	UserDisplayName string           `json:"userDisplayName,omitempty"`
	RoleID          int64            `json:"roleId"`
	RoleName        string           `json:"roleName"`
	ApplicationID   int64            `json:"applicationId"`
	ResourceScope   *scopes.ScopeRef `json:"resourceScope,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// PrivilegePage is a window of the privilege listing.
type PrivilegePage struct {
	Items  []AccessControlPrivilege `json:"items"`
	Paging shared.PagingInfo        `json:"paging"`
}

// ResourceScopeRefs exposes the page's scope references for enrichment.
func (p *PrivilegePage) ResourceScopeRefs() []*scopes.ScopeRef {
	var refs []*scopes.ScopeRef
	for i := range p.Items {
		if p.Items[i].ResourceScope != nil {
			refs = append(refs, p.Items[i].ResourceScope)
		}
	}
	return refs
}

// Per-entry outcomes of a batch delegated-admin creation.
type CreateStatus string

const (
	StatusCreated        CreateStatus = "CREATED"
	StatusAlreadyGranted CreateStatus = "ALREADY_GRANTED"
	StatusFailed         CreateStatus = "FAILED"
)

// CreateResult reports the outcome for one requested resource scope.
type CreateResult struct {
	ResourceID  string       `json:"resourceId,omitempty"`
	Status      CreateStatus `json:"status"`
	PrivilegeID int64        `json:"privilegeId,omitempty"`
	Detail      string       `json:"detail,omitempty"`
}
