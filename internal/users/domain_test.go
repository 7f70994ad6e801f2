package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityEqual(t *testing.T) {
	a := Identity{Type: IdentityUser, Name: "jane.doe@example.com"}
	assert.True(t, a.Equal(Identity{Type: IdentityUser, Name: "Jane.Doe@Example.com"}))
	assert.False(t, a.Equal(Identity{Type: IdentityGroup, Name: "jane.doe@example.com"}))
	assert.False(t, a.Equal(Identity{Type: IdentityUser, Name: "john.doe@example.com"}))
}

func TestIdentityIsZero(t *testing.T) {
	assert.True(t, Identity{}.IsZero())
	assert.False(t, Identity{Type: IdentityUser}.IsZero())
	assert.False(t, Identity{Name: "ops"}.IsZero())
}
