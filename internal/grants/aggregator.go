package grants

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fam-platform/fam-access/internal/apps"
	"github.com/fam-platform/fam-access/internal/roles"
	"github.com/fam-platform/fam-access/internal/scopes"
)

// AggregatorRepository defines the grant reads the aggregator needs.
type AggregatorRepository interface {
	AdminGrantsWithApps(ctx context.Context, userID int64) ([]AdminGrantWithApp, error)
	DelegatedPrivilegesWithRoles(ctx context.Context, userID int64) ([]PrivilegeWithRole, error)
}

// ApplicationLister lists every application in the system.
type ApplicationLister interface {
	List(ctx context.Context) ([]apps.Application, error)
}

// BaseRoleLister lists an application's base roles (no parent).
type BaseRoleLister interface {
	ListBase(ctx context.Context, applicationID int64) ([]roles.Role, error)
}

// Aggregator computes the merged access-grant view for a principal.
type Aggregator struct {
	repo         AggregatorRepository
	applications ApplicationLister
	baseRoles    BaseRoleLister
	bootstrapApp string
}

// NewAggregator builds an aggregator. bootstrapApp is the suffix-stripped
// name of the platform's own application.
func NewAggregator(repo AggregatorRepository, applications ApplicationLister, baseRoles BaseRoleLister, bootstrapApp string) *Aggregator {
	return &Aggregator{
		repo:         repo,
		applications: applications,
		baseRoles:    baseRoles,
		bootstrapApp: bootstrapApp,
	}
}

// IsBootstrap reports whether the application is the platform's own.
func (a *Aggregator) IsBootstrap(app apps.Application) bool {
	return strings.EqualFold(app.DisplayName(), a.bootstrapApp)
}

// ComputeAccessGrants runs the three resolution passes and concatenates
// their sections in fixed order: GLOBAL_ADMIN, APP_ADMIN, DELEGATED_ADMIN.
// For a fixed database state the output is deterministic: applications and
// roles are ordered by id, collapsed scope lists are sorted.
func (a *Aggregator) ComputeAccessGrants(ctx context.Context, userID int64) (*Summary, error) {
	var adminGrants []AdminGrantWithApp
	var privileges []PrivilegeWithRole

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		adminGrants, err = a.repo.AdminGrantsWithApps(egCtx, userID)
		return err
	})
	eg.Go(func() error {
		var err error
		privileges, err = a.repo.DelegatedPrivilegesWithRoles(egCtx, userID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{UserID: userID}

	global, err := a.globalAdminPass(ctx, adminGrants)
	if err != nil {
		return nil, err
	}
	if global != nil {
		summary.Sections = append(summary.Sections, *global)
	}

	appAdmin, err := a.appAdminPass(ctx, adminGrants)
	if err != nil {
		return nil, err
	}
	if appAdmin != nil {
		summary.Sections = append(summary.Sections, *appAdmin)
	}

	if delegated := delegatedAdminPass(privileges); delegated != nil {
		summary.Sections = append(summary.Sections, *delegated)
	}

	return summary, nil
}

// globalAdminPass emits a section listing every application when the user
// holds an admin grant on the bootstrap application.
func (a *Aggregator) globalAdminPass(ctx context.Context, adminGrants []AdminGrantWithApp) (*Section, error) {
	holds := false
	for _, g := range adminGrants {
		if a.IsBootstrap(g.App) {
			holds = true
			break
		}
	}
	if !holds {
		return nil, nil
	}
	all, err := a.applications.List(ctx)
	if err != nil {
		return nil, err
	}
	section := &Section{Authority: AuthorityGlobalAdmin}
	for _, app := range all {
		section.Applications = append(section.Applications, ApplicationGrants{
			ApplicationID:   app.ID,
			ApplicationName: app.DisplayName(),
		})
	}
	return section, nil
}

// appAdminPass emits one application group per non-bootstrap admin grant,
// each carrying the application's base roles.
func (a *Aggregator) appAdminPass(ctx context.Context, adminGrants []AdminGrantWithApp) (*Section, error) {
	section := &Section{Authority: AuthorityAppAdmin}
	for _, g := range adminGrants {
		if a.IsBootstrap(g.App) {
			continue
		}
		base, err := a.baseRoles.ListBase(ctx, g.App.ID)
		if err != nil {
			return nil, err
		}
		group := ApplicationGrants{
			ApplicationID:   g.App.ID,
			ApplicationName: g.App.DisplayName(),
		}
		for _, role := range base {
			group.Roles = append(group.Roles, RoleGrant{
				RoleID:      role.ID,
				Name:        role.Name,
				DisplayName: role.DisplayName,
			})
		}
		section.Applications = append(section.Applications, group)
	}
	if len(section.Applications) == 0 {
		return nil, nil
	}
	return section, nil
}

// delegatedAdminPass groups privileges by application, then by parent role.
// Roles without a parent pass through unchanged; scoped children of the same
// abstract parent collapse into a single entry carrying the deduplicated
// resource identifiers.
func delegatedAdminPass(privileges []PrivilegeWithRole) *Section {
	if len(privileges) == 0 {
		return nil
	}

	type appGroup struct {
		app     apps.Application
		direct  map[int64]RoleGrant        // role id -> pass-through entry
		byScope map[int64]map[string]bool  // parent role id -> scope id set
		parents map[int64]*roles.Role      // parent role id -> parent row
	}
	groups := make(map[int64]*appGroup)
	var appOrder []int64

	for _, p := range privileges {
		group, ok := groups[p.App.ID]
		if !ok {
			group = &appGroup{
				app:     p.App,
				direct:  make(map[int64]RoleGrant),
				byScope: make(map[int64]map[string]bool),
				parents: make(map[int64]*roles.Role),
			}
			groups[p.App.ID] = group
			appOrder = append(appOrder, p.App.ID)
		}
		if p.Role.ParentRoleID == nil || p.Parent == nil {
			group.direct[p.Role.ID] = RoleGrant{
				RoleID:      p.Role.ID,
				Name:        p.Role.Name,
				DisplayName: p.Role.DisplayName,
			}
			continue
		}
		parentID := *p.Role.ParentRoleID
		if group.byScope[parentID] == nil {
			group.byScope[parentID] = make(map[string]bool)
			group.parents[parentID] = p.Parent
		}
		if p.Role.ResourceScopeID != nil {
			group.byScope[parentID][*p.Role.ResourceScopeID] = true
		}
	}

	sort.Slice(appOrder, func(i, j int) bool { return appOrder[i] < appOrder[j] })

	section := &Section{Authority: AuthorityDelegatedAdmin}
	for _, appID := range appOrder {
		group := groups[appID]
		entries := make(map[int64]RoleGrant, len(group.direct)+len(group.byScope))
		for id, entry := range group.direct {
			entries[id] = entry
		}
		for parentID, scopeSet := range group.byScope {
			parent := group.parents[parentID]
			ids := make([]string, 0, len(scopeSet))
			for id := range scopeSet {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			refs := make([]scopes.ScopeRef, len(ids))
			for i, id := range ids {
				refs[i] = scopes.ScopeRef{ID: id}
			}
			entry := RoleGrant{
				RoleID:         parent.ID,
				Name:           parent.Name,
				DisplayName:    parent.DisplayName,
				ResourceScopes: refs,
			}
			// A privilege held on the abstract parent itself already covers
			// every child; merge the child scopes onto that entry.
			if existing, ok := entries[parentID]; ok {
				existing.ResourceScopes = refs
				entries[parentID] = existing
				continue
			}
			entries[parentID] = entry
		}

		roleIDs := make([]int64, 0, len(entries))
		for id := range entries {
			roleIDs = append(roleIDs, id)
		}
		sort.Slice(roleIDs, func(i, j int) bool { return roleIDs[i] < roleIDs[j] })

		appEntry := ApplicationGrants{
			ApplicationID:   group.app.ID,
			ApplicationName: group.app.DisplayName(),
		}
		for _, id := range roleIDs {
			appEntry.Roles = append(appEntry.Roles, entries[id])
		}
		section.Applications = append(section.Applications, appEntry)
	}
	return section
}
