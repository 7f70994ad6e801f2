package users

import (
	"strings"
	"time"
)

// IdentityType distinguishes the kinds of principal the platform manages.
type IdentityType string

const (
	IdentityUser  IdentityType = "USER"
	IdentityGroup IdentityType = "GROUP"
)

// Identity is the natural key of a principal. Guards compare identities by
// type and name, never by surrogate id: the target of a grant may not have a
// stored row yet at guard time.
type Identity struct {
	Type IdentityType `json:"type"`
	Name string       `json:"name"`
}

// Equal reports whether two identities name the same principal.
func (i Identity) Equal(other Identity) bool {
	return i.Type == other.Type && strings.EqualFold(i.Name, other.Name)
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool {
	return i.Type == "" && i.Name == ""
}

// User represents a principal known to the platform.
type User struct {
	ID          int64
	Type        IdentityType
	Username    string
	DisplayName string
	CreatedAt   time.Time
}

// Identity returns the user's natural key.
func (u User) Identity() Identity {
	return Identity{Type: u.Type, Name: u.Username}
}
