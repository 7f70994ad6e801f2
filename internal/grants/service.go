package grants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fam-platform/fam-access/internal/apps"
	"github.com/fam-platform/fam-access/internal/audit"
	"github.com/fam-platform/fam-access/internal/guard"
	"github.com/fam-platform/fam-access/internal/roles"
	"github.com/fam-platform/fam-access/internal/scopes"
	"github.com/fam-platform/fam-access/internal/shared"
	"github.com/fam-platform/fam-access/internal/users"
)

// RepositoryPort defines data access methods for the privilege store.
type RepositoryPort interface {
	AggregatorRepository
	CreateDelegatedPrivilege(ctx context.Context, userID, roleID int64) (DelegatedAdminPrivilege, error)
	FindDelegatedPrivilege(ctx context.Context, id int64) (PrivilegeWithRole, error)
	DeleteDelegatedPrivilege(ctx context.Context, id int64) error
	CreateUserRoleAssignment(ctx context.Context, userID, roleID int64) (UserRoleAssignment, error)
	FindUserRoleAssignment(ctx context.Context, id int64) (UserRoleAssignment, error)
	DeleteUserRoleAssignment(ctx context.Context, id int64) error
	CreateAppAdminGrant(ctx context.Context, userID, applicationID int64) (ApplicationAdminGrant, error)
	FindAppAdminGrant(ctx context.Context, id int64) (AdminGrantWithApp, error)
	DeleteAppAdminGrant(ctx context.Context, id int64) error
	ListAccessControlPrivileges(ctx context.Context, applicationID int64, limit, offset int, orderColumn, orderDir string) ([]AccessControlPrivilege, error)
}

// UsersPort resolves and materializes principals.
type UsersPort interface {
	FindByID(ctx context.Context, id int64) (users.User, error)
	FindByIdentity(ctx context.Context, identity users.Identity) (users.User, error)
	FindOrCreate(ctx context.Context, identity users.Identity, displayName string) (users.User, error)
}

// RolesPort reads role rows.
type RolesPort interface {
	FindByID(ctx context.Context, id int64) (roles.Role, error)
}

// AppsPort reads application rows.
type AppsPort interface {
	FindByID(ctx context.Context, id int64) (apps.Application, error)
}

// RoleResolver materializes scoped child roles.
type RoleResolver interface {
	FindOrCreateScopedChildRole(ctx context.Context, parent roles.Role, resourceID string) (roles.Role, error)
}

// Notifier sends the fire-and-forget notification after a successful grant.
type Notifier interface {
	PrivilegeGranted(ctx context.Context, target users.Identity, roleName string, resourceIDs []string)
}

// Service orchestrates guarded privilege mutations and the paged listing.
type Service struct {
	repo         RepositoryPort
	users        UsersPort
	roles        RolesPort
	apps         AppsPort
	resolver     RoleResolver
	notifier     Notifier
	chain        *guard.Chain
	bootstrapApp string
	logger       *slog.Logger
}

// NewService builds Service instance. The service itself acts as the guard
// chain's authority checker.
func NewService(repo RepositoryPort, usersRepo UsersPort, rolesRepo RolesPort, appsRepo AppsPort,
	resolver RoleResolver, notifier Notifier, recorder guard.Recorder, observer guard.DecisionObserver,
	bootstrapApp string, logger *slog.Logger) *Service {
	s := &Service{
		repo:         repo,
		users:        usersRepo,
		roles:        rolesRepo,
		apps:         appsRepo,
		resolver:     resolver,
		notifier:     notifier,
		bootstrapApp: bootstrapApp,
		logger:       logger,
	}
	s.chain = guard.NewChain(s, recorder, logger, observer)
	return s
}

// Authorize resolves the performer's authority class against a requirement.
// Order of escalation: global admin, application admin, delegated scope.
func (s *Service) Authorize(ctx context.Context, performer users.Identity, req guard.Requirement) error {
	performerUser, err := s.users.FindByIdentity(ctx, performer)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return guard.ErrPermissionRequired
		}
		return err
	}

	adminGrants, err := s.repo.AdminGrantsWithApps(ctx, performerUser.ID)
	if err != nil {
		return err
	}
	appAdmin := false
	for _, g := range adminGrants {
		if strings.EqualFold(g.App.DisplayName(), s.bootstrapApp) {
			return nil // global admin
		}
		if g.App.ID == req.ApplicationID {
			appAdmin = true
		}
	}
	if req.GlobalOnly {
		return guard.ErrPermissionRequired
	}
	if appAdmin {
		return nil
	}
	if req.RoleID == 0 {
		return guard.ErrPermissionRequired
	}

	role, err := s.roles.FindByID(ctx, req.RoleID)
	if err != nil {
		if errors.Is(err, roles.ErrNotFound) {
			return guard.ErrPermissionRequired
		}
		return err
	}
	privileges, err := s.repo.DelegatedPrivilegesWithRoles(ctx, performerUser.ID)
	if err != nil {
		return err
	}
	for _, p := range privileges {
		if p.Role.ID == role.ID {
			return nil
		}
		if role.ParentRoleID != nil && p.Role.ID == *role.ParentRoleID {
			return nil
		}
		// Privilege on a concrete child covers exactly its own scope.
		if role.IsAbstract() && p.Role.ParentRoleID != nil && *p.Role.ParentRoleID == role.ID &&
			req.ResourceID != "" && p.Role.ResourceScopeID != nil && *p.Role.ResourceScopeID == req.ResourceID {
			return nil
		}
	}
	return guard.ErrPermissionRequired
}

// CreateDelegatedAdminInput describes a batch delegated-admin creation.
type CreateDelegatedAdminInput struct {
	TargetType        users.IdentityType
	TargetName        string
	TargetDisplayName string
	RoleID            int64
	ResourceIDs       []string
}

// CreateDelegatedAdminPrivileges grants delegated-admin status, one entry
// per requested resource scope. Entries succeed and fail independently;
// a duplicate maps to ALREADY_GRANTED rather than an error. Requires
// application-admin (or global) authority over the role's application.
func (s *Service) CreateDelegatedAdminPrivileges(ctx context.Context, performer guard.Principal, input CreateDelegatedAdminInput) ([]CreateResult, error) {
	role, err := s.roles.FindByID(ctx, input.RoleID)
	if err != nil {
		return nil, err
	}
	if !role.IsAbstract() && len(input.ResourceIDs) > 0 {
		return nil, fmt.Errorf("%w: resource scopes require an abstract role", ErrInvalidInput)
	}
	for _, id := range input.ResourceIDs {
		if err := scopes.ValidateResourceID(id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	app, err := s.apps.FindByID(ctx, role.ApplicationID)
	if err != nil {
		return nil, err
	}

	target := users.Identity{Type: targetType(input.TargetType), Name: input.TargetName}
	appID := app.ID
	var results []CreateResult
	var created []string

	err = s.chain.Run(ctx, guard.GuardedRequest{
		Performer:     performer.Identity,
		Target:        target,
		TargetDisplay: input.TargetDisplayName,
		ApplicationID: &appID,
		Operation:     audit.OpDelegatedAdminGrant,
		Scope: audit.ScopeDetails{
			After: scopeSummary(role.Name, input.ResourceIDs),
		},
		Require: guard.Requirement{ApplicationID: app.ID},
	}, func(ctx context.Context) error {
		targetUser, err := s.users.FindOrCreate(ctx, target, input.TargetDisplayName)
		if err != nil {
			return err
		}
		if len(input.ResourceIDs) == 0 {
			results = append(results, s.createOnePrivilege(ctx, targetUser.ID, role.ID, ""))
		} else {
			for _, resourceID := range input.ResourceIDs {
				child, err := s.resolver.FindOrCreateScopedChildRole(ctx, role, resourceID)
				if err != nil {
					results = append(results, CreateResult{
						ResourceID: resourceID,
						Status:     StatusFailed,
						Detail:     err.Error(),
					})
					continue
				}
				results = append(results, s.createOnePrivilege(ctx, targetUser.ID, child.ID, resourceID))
			}
		}
		failed := 0
		for _, res := range results {
			switch res.Status {
			case StatusCreated:
				created = append(created, res.ResourceID)
			case StatusFailed:
				failed++
			}
		}
		if failed == len(results) {
			return fmt.Errorf("grants: all %d entries failed", failed)
		}
		return nil
	})
	if err != nil {
		return results, err
	}

	if len(created) > 0 && s.notifier != nil {
		s.notifier.PrivilegeGranted(context.WithoutCancel(ctx), target, role.Name, created)
	}
	return results, nil
}

func (s *Service) createOnePrivilege(ctx context.Context, userID, roleID int64, resourceID string) CreateResult {
	privilege, err := s.repo.CreateDelegatedPrivilege(ctx, userID, roleID)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return CreateResult{ResourceID: resourceID, Status: StatusAlreadyGranted}
		}
		return CreateResult{ResourceID: resourceID, Status: StatusFailed, Detail: err.Error()}
	}
	return CreateResult{ResourceID: resourceID, Status: StatusCreated, PrivilegeID: privilege.ID}
}

// RevokeDelegatedAdminPrivilege removes one delegated-admin privilege.
func (s *Service) RevokeDelegatedAdminPrivilege(ctx context.Context, performer guard.Principal, id int64) error {
	item, err := s.repo.FindDelegatedPrivilege(ctx, id)
	if err != nil {
		return err
	}
	targetUser, targetDisplay := s.lookupTarget(ctx, item.Privilege.UserID)
	appID := item.App.ID

	var before string
	if item.Role.ResourceScopeID != nil {
		before = scopeSummary(item.Role.Name, []string{*item.Role.ResourceScopeID})
	} else {
		before = scopeSummary(item.Role.Name, nil)
	}

	return s.chain.Run(ctx, guard.GuardedRequest{
		Performer:     performer.Identity,
		Target:        targetUser,
		TargetDisplay: targetDisplay,
		ApplicationID: &appID,
		Operation:     audit.OpDelegatedAdminRevoke,
		Scope:         audit.ScopeDetails{Before: before},
		Require:       guard.Requirement{ApplicationID: item.App.ID},
	}, func(ctx context.Context) error {
		return s.repo.DeleteDelegatedPrivilege(ctx, id)
	})
}

// RoleAssignmentInput describes an end-user role grant.
type RoleAssignmentInput struct {
	TargetType        users.IdentityType
	TargetName        string
	TargetDisplayName string
	RoleID            int64
	ResourceID        string
}

// GrantUserRole assigns a role to an end user. An abstract role requires a
// resource scope and materializes the concrete child on demand.
func (s *Service) GrantUserRole(ctx context.Context, performer guard.Principal, input RoleAssignmentInput) (UserRoleAssignment, error) {
	role, err := s.roles.FindByID(ctx, input.RoleID)
	if err != nil {
		return UserRoleAssignment{}, err
	}
	if role.IsAbstract() && input.ResourceID == "" {
		return UserRoleAssignment{}, fmt.Errorf("%w: abstract role requires a resource scope", ErrInvalidInput)
	}
	if input.ResourceID != "" {
		if err := scopes.ValidateResourceID(input.ResourceID); err != nil {
			return UserRoleAssignment{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	app, err := s.apps.FindByID(ctx, role.ApplicationID)
	if err != nil {
		return UserRoleAssignment{}, err
	}

	target := users.Identity{Type: targetType(input.TargetType), Name: input.TargetName}
	appID := app.ID
	var assignment UserRoleAssignment

	err = s.chain.Run(ctx, guard.GuardedRequest{
		Performer:     performer.Identity,
		Target:        target,
		TargetDisplay: input.TargetDisplayName,
		ApplicationID: &appID,
		Operation:     audit.OpRoleAssignmentGrant,
		Scope: audit.ScopeDetails{
			After: scopeSummary(role.Name, nonEmpty(input.ResourceID)),
		},
		Require: guard.Requirement{
			ApplicationID: app.ID,
			RoleID:        role.ID,
			ResourceID:    input.ResourceID,
		},
	}, func(ctx context.Context) error {
		targetUser, err := s.users.FindOrCreate(ctx, target, input.TargetDisplayName)
		if err != nil {
			return err
		}
		effective := role
		if role.IsAbstract() {
			effective, err = s.resolver.FindOrCreateScopedChildRole(ctx, role, input.ResourceID)
			if err != nil {
				return err
			}
		}
		assignment, err = s.repo.CreateUserRoleAssignment(ctx, targetUser.ID, effective.ID)
		return err
	})
	if err != nil {
		return UserRoleAssignment{}, err
	}
	if s.notifier != nil {
		s.notifier.PrivilegeGranted(context.WithoutCancel(ctx), target, role.Name, nonEmpty(input.ResourceID))
	}
	return assignment, nil
}

// RevokeUserRoleAssignment removes an end-user role assignment.
func (s *Service) RevokeUserRoleAssignment(ctx context.Context, performer guard.Principal, id int64) error {
	assignment, err := s.repo.FindUserRoleAssignment(ctx, id)
	if err != nil {
		return err
	}
	role, err := s.roles.FindByID(ctx, assignment.RoleID)
	if err != nil {
		return err
	}
	app, err := s.apps.FindByID(ctx, role.ApplicationID)
	if err != nil {
		return err
	}
	targetUser, targetDisplay := s.lookupTarget(ctx, assignment.UserID)
	appID := app.ID
	resourceID := ""
	if role.ResourceScopeID != nil {
		resourceID = *role.ResourceScopeID
	}

	return s.chain.Run(ctx, guard.GuardedRequest{
		Performer:     performer.Identity,
		Target:        targetUser,
		TargetDisplay: targetDisplay,
		ApplicationID: &appID,
		Operation:     audit.OpRoleAssignmentRevoke,
		Scope:         audit.ScopeDetails{Before: scopeSummary(role.Name, nonEmpty(resourceID))},
		Require: guard.Requirement{
			ApplicationID: app.ID,
			RoleID:        role.ID,
			ResourceID:    resourceID,
		},
	}, func(ctx context.Context) error {
		return s.repo.DeleteUserRoleAssignment(ctx, id)
	})
}

// AppAdminInput describes an application-admin grant.
type AppAdminInput struct {
	TargetType        users.IdentityType
	TargetName        string
	TargetDisplayName string
	ApplicationID     int64
}

// GrantApplicationAdmin creates an application-admin grant. Global admin only.
func (s *Service) GrantApplicationAdmin(ctx context.Context, performer guard.Principal, input AppAdminInput) (ApplicationAdminGrant, error) {
	app, err := s.apps.FindByID(ctx, input.ApplicationID)
	if err != nil {
		return ApplicationAdminGrant{}, err
	}
	target := users.Identity{Type: targetType(input.TargetType), Name: input.TargetName}
	appID := app.ID
	var grant ApplicationAdminGrant

	err = s.chain.Run(ctx, guard.GuardedRequest{
		Performer:     performer.Identity,
		Target:        target,
		TargetDisplay: input.TargetDisplayName,
		ApplicationID: &appID,
		Operation:     audit.OpAppAdminGrant,
		Scope:         audit.ScopeDetails{After: "application admin of " + app.DisplayName()},
		Require:       guard.Requirement{ApplicationID: app.ID, GlobalOnly: true},
	}, func(ctx context.Context) error {
		targetUser, err := s.users.FindOrCreate(ctx, target, input.TargetDisplayName)
		if err != nil {
			return err
		}
		grant, err = s.repo.CreateAppAdminGrant(ctx, targetUser.ID, app.ID)
		return err
	})
	if err != nil {
		return ApplicationAdminGrant{}, err
	}
	return grant, nil
}

// RevokeApplicationAdmin removes an application-admin grant. Global admin only.
func (s *Service) RevokeApplicationAdmin(ctx context.Context, performer guard.Principal, id int64) error {
	item, err := s.repo.FindAppAdminGrant(ctx, id)
	if err != nil {
		return err
	}
	targetUser, targetDisplay := s.lookupTarget(ctx, item.Grant.UserID)
	appID := item.App.ID

	return s.chain.Run(ctx, guard.GuardedRequest{
		Performer:     performer.Identity,
		Target:        targetUser,
		TargetDisplay: targetDisplay,
		ApplicationID: &appID,
		Operation:     audit.OpAppAdminRevoke,
		Scope:         audit.ScopeDetails{Before: "application admin of " + item.App.DisplayName()},
		Require:       guard.Requirement{ApplicationID: item.App.ID, GlobalOnly: true},
	}, func(ctx context.Context) error {
		return s.repo.DeleteAppAdminGrant(ctx, id)
	})
}

// privilege listing sort fields, fixed set
var privilegeSortFields = map[string]string{
	"USERNAME":   "u.username",
	"ROLE_NAME":  "ro.name",
	"CREATED_AT": "p.created_at",
}

// ListAccessControlPrivileges returns one page of an application's
// delegated-admin privileges. Guarded read: authorization is enforced, no
// audit record is written.
func (s *Service) ListAccessControlPrivileges(ctx context.Context, performer guard.Principal, applicationID int64, page shared.PageRequest) (*PrivilegePage, error) {
	if err := s.Authorize(ctx, performer.Identity, guard.Requirement{ApplicationID: applicationID}); err != nil {
		return nil, err
	}
	normalized, column, err := page.Normalize(privilegeSortFields, "CREATED_AT")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	rows, err := s.repo.ListAccessControlPrivileges(ctx, applicationID,
		normalized.Size+1, normalized.Offset(), column, normalized.Order)
	if err != nil {
		return nil, err
	}
	hasNext := len(rows) > normalized.Size
	if hasNext {
		rows = rows[:normalized.Size]
	}
	return &PrivilegePage{
		Items:  rows,
		Paging: shared.NewPagingInfo(normalized.Page, normalized.Size, hasNext),
	}, nil
}

// lookupTarget resolves the target user for auditing. An unresolvable
// target degrades to an empty snapshot source; the caller still records.
func (s *Service) lookupTarget(ctx context.Context, userID int64) (users.Identity, string) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("audit target unresolved", slog.Int64("userId", userID), slog.Any("error", err))
		return users.Identity{Type: users.IdentityUser, Name: fmt.Sprintf("user#%d", userID)}, ""
	}
	return user.Identity(), user.DisplayName
}

func targetType(t users.IdentityType) users.IdentityType {
	if t == "" {
		return users.IdentityUser
	}
	return t
}

func scopeSummary(roleName string, resourceIDs []string) string {
	if len(resourceIDs) == 0 {
		return "role " + roleName
	}
	return "role " + roleName + " scopes " + strings.Join(resourceIDs, ",")
}

func nonEmpty(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}
