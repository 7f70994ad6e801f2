// Package scopes manages resource-scope entries: external client numbers
// cached with their last-known display names.
package scopes

import (
	"errors"
	"regexp"
)

// ErrInvalidResourceID indicates an identifier outside the fixed format.
var ErrInvalidResourceID = errors.New("scopes: resource id must be 8 digits")

var resourceIDPattern = regexp.MustCompile(`^[0-9]{8}$`)

// ValidateResourceID checks the fixed 8-digit identifier format.
func ValidateResourceID(id string) error {
	if !resourceIDPattern.MatchString(id) {
		return ErrInvalidResourceID
	}
	return nil
}

// ResourceScope is a registry entry. DisplayName stays nil until the first
// external lookup succeeds and may go stale between refreshes.
type ResourceScope struct {
	ID          string
	DisplayName *string
	Status      *string
}

// ScopeRef is a resource-scope reference embedded in a response. Enrichment
// backfills Name in place; refs without a directory match keep their
// previous value.
type ScopeRef struct {
	ID   string  `json:"id"`
	Name *string `json:"name,omitempty"`
}

// ScopeRefCarrier is the capability a response type implements to take part
// in display-name enrichment.
type ScopeRefCarrier interface {
	ResourceScopeRefs() []*ScopeRef
}
