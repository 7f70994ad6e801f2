package roles

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fam-platform/fam-access/internal/scopes"
)

type mockRoleRepo struct {
	roles       map[int64]Role
	byName      map[string]Role
	nextID      int64
	createCalls int

	createError error
	// findByNameMisses forces that many not-found results before the real
	// lookup, simulating a row inserted by a concurrent resolver.
	findByNameMisses int
}

func newMockRoleRepo() *mockRoleRepo {
	return &mockRoleRepo{
		roles:  make(map[int64]Role),
		byName: make(map[string]Role),
		nextID: 1,
	}
}

func nameKey(applicationID int64, name string) string {
	return fmt.Sprintf("%d:%s", applicationID, name)
}

func (m *mockRoleRepo) FindByID(ctx context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (m *mockRoleRepo) FindByName(ctx context.Context, applicationID int64, name string) (Role, error) {
	if m.findByNameMisses > 0 {
		m.findByNameMisses--
		return Role{}, ErrNotFound
	}
	role, ok := m.byName[nameKey(applicationID, name)]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (m *mockRoleRepo) ListBase(ctx context.Context, applicationID int64) ([]Role, error) {
	var out []Role
	for _, role := range m.roles {
		if role.ApplicationID == applicationID && role.ParentRoleID == nil {
			out = append(out, role)
		}
	}
	return out, nil
}

func (m *mockRoleRepo) ListChildren(ctx context.Context, parentRoleID int64) ([]Role, error) {
	var out []Role
	for _, role := range m.roles {
		if role.ParentRoleID != nil && *role.ParentRoleID == parentRoleID {
			out = append(out, role)
		}
	}
	return out, nil
}

func (m *mockRoleRepo) Create(ctx context.Context, role Role) (Role, error) {
	m.createCalls++
	if m.createError != nil {
		return Role{}, m.createError
	}
	if _, exists := m.byName[nameKey(role.ApplicationID, role.Name)]; exists {
		return Role{}, &pgconn.PgError{Code: "23505"}
	}
	role.ID = m.nextID
	m.nextID++
	m.roles[role.ID] = role
	m.byName[nameKey(role.ApplicationID, role.Name)] = role
	return role, nil
}

func (m *mockRoleRepo) add(role Role) Role {
	role.ID = m.nextID
	m.nextID++
	m.roles[role.ID] = role
	m.byName[nameKey(role.ApplicationID, role.Name)] = role
	return role
}

type mockScopeRegistry struct {
	created map[string]int
}

func newMockScopeRegistry() *mockScopeRegistry {
	return &mockScopeRegistry{created: make(map[string]int)}
}

func (m *mockScopeRegistry) FindOrCreate(ctx context.Context, id string) (scopes.ResourceScope, error) {
	m.created[id]++
	return scopes.ResourceScope{ID: id}, nil
}

func abstractParent(repo *mockRoleRepo) Role {
	return repo.add(Role{
		ApplicationID: 7,
		Name:          "FLEET_MANAGER",
		Purpose:       "Manage assigned fleets",
		DisplayName:   "Fleet Manager",
		Kind:          KindAbstract,
	})
}

func TestFindOrCreateScopedChildRole(t *testing.T) {
	repo := newMockRoleRepo()
	registry := newMockScopeRegistry()
	service := NewService(repo, registry)
	parent := abstractParent(repo)

	child, err := service.FindOrCreateScopedChildRole(context.Background(), parent, "12345678")
	require.NoError(t, err)
	assert.Equal(t, "FLEET_MANAGER_12345678", child.Name)
	assert.Equal(t, "Manage assigned fleets for 12345678", child.Purpose)
	assert.Equal(t, KindConcrete, child.Kind)
	require.NotNil(t, child.ParentRoleID)
	assert.Equal(t, parent.ID, *child.ParentRoleID)
	require.NotNil(t, child.ResourceScopeID)
	assert.Equal(t, "12345678", *child.ResourceScopeID)
	assert.Equal(t, 1, registry.created["12345678"])
}

func TestFindOrCreateScopedChildRoleIdempotent(t *testing.T) {
	repo := newMockRoleRepo()
	registry := newMockScopeRegistry()
	service := NewService(repo, registry)
	parent := abstractParent(repo)

	first, err := service.FindOrCreateScopedChildRole(context.Background(), parent, "12345678")
	require.NoError(t, err)
	second, err := service.FindOrCreateScopedChildRole(context.Background(), parent, "12345678")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.createCalls)
	assert.Equal(t, 1, registry.created["12345678"])
}

func TestFindOrCreateScopedChildRoleRejectsConcreteParent(t *testing.T) {
	repo := newMockRoleRepo()
	service := NewService(repo, newMockScopeRegistry())
	concrete := repo.add(Role{ApplicationID: 7, Name: "VIEWER", Kind: KindConcrete})

	_, err := service.FindOrCreateScopedChildRole(context.Background(), concrete, "12345678")
	assert.ErrorIs(t, err, ErrInvalidParentRole)
}

func TestFindOrCreateScopedChildRoleRejectsBadResourceID(t *testing.T) {
	repo := newMockRoleRepo()
	service := NewService(repo, newMockScopeRegistry())
	parent := abstractParent(repo)

	for _, id := range []string{"", "1234", "123456789", "abcd5678"} {
		_, err := service.FindOrCreateScopedChildRole(context.Background(), parent, id)
		assert.ErrorIs(t, err, scopes.ErrInvalidResourceID, "id %q", id)
	}
	assert.Equal(t, 0, repo.createCalls)
}

func TestFindOrCreateScopedChildRoleLosesInsertRace(t *testing.T) {
	repo := newMockRoleRepo()
	registry := newMockScopeRegistry()
	service := NewService(repo, registry)
	parent := abstractParent(repo)

	// A concurrent resolver wins the insert between FindByName and Create:
	// the repo reports the unique violation and the winner's row is there
	// to re-read.
	repo.createError = &pgconn.PgError{Code: "23505"}
	repo.findByNameMisses = 1
	winnerID := parent.ID
	scopeID := "12345678"
	winner := repo.add(Role{
		ApplicationID:   parent.ApplicationID,
		Name:            ChildRoleName(parent.Name, scopeID),
		Kind:            KindConcrete,
		ParentRoleID:    &winnerID,
		ResourceScopeID: &scopeID,
	})

	child, err := service.FindOrCreateScopedChildRole(context.Background(), parent, scopeID)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, child.ID)
}
