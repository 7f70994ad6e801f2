package roles

import (
	"context"
	"errors"

	"github.com/fam-platform/fam-access/internal/platform/db"
	"github.com/fam-platform/fam-access/internal/scopes"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	FindByID(ctx context.Context, id int64) (Role, error)
	FindByName(ctx context.Context, applicationID int64, name string) (Role, error)
	ListBase(ctx context.Context, applicationID int64) ([]Role, error)
	ListChildren(ctx context.Context, parentRoleID int64) ([]Role, error)
	Create(ctx context.Context, role Role) (Role, error)
}

// ScopeRegistry ensures resource-scope entries exist before a child role
// references them.
type ScopeRegistry interface {
	FindOrCreate(ctx context.Context, id string) (scopes.ResourceScope, error)
}

// Service resolves the role hierarchy.
type Service struct {
	repo     RepositoryPort
	registry ScopeRegistry
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, registry ScopeRegistry) *Service {
	return &Service{repo: repo, registry: registry}
}

// FindOrCreateScopedChildRole materializes the concrete child of an abstract
// role for one resource scope. The derived name makes the operation
// idempotent: repeated calls return the same row. Two concurrent calls for
// the same (parent, resource) pair are resolved by the storage uniqueness
// constraint; the losing insert re-reads and returns the winner's row.
func (s *Service) FindOrCreateScopedChildRole(ctx context.Context, parent Role, resourceID string) (Role, error) {
	if !parent.IsAbstract() {
		return Role{}, ErrInvalidParentRole
	}
	if err := scopes.ValidateResourceID(resourceID); err != nil {
		return Role{}, err
	}

	name := ChildRoleName(parent.Name, resourceID)
	existing, err := s.repo.FindByName(ctx, parent.ApplicationID, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Role{}, err
	}

	if _, err := s.registry.FindOrCreate(ctx, resourceID); err != nil {
		return Role{}, err
	}

	parentID := parent.ID
	scopeID := resourceID
	created, err := s.repo.Create(ctx, Role{
		ApplicationID:   parent.ApplicationID,
		Name:            name,
		Purpose:         ChildRolePurpose(parent.Purpose, resourceID),
		DisplayName:     parent.DisplayName,
		Kind:            KindConcrete,
		ParentRoleID:    &parentID,
		ResourceScopeID: &scopeID,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return s.repo.FindByName(ctx, parent.ApplicationID, name)
		}
		return Role{}, err
	}
	return created, nil
}
