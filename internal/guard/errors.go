// Package guard implements the ordered authorization checks wrapping every
// mutating operation.
package guard

import "net/http"

// Stable machine-readable authorization failure codes.
const (
	CodeGroupsRequired      = "GROUPS_REQUIRED"
	CodePermissionRequired  = "PERMISSION_REQUIRED"
	CodeSelfGrantProhibited = "SELF_GRANT_PROHIBITED"
)

// AuthzError is a terminal guard-chain rejection.
type AuthzError struct {
	Code   string
	Reason string
}

func (e *AuthzError) Error() string {
	if e.Reason != "" {
		return "guard: " + e.Code + ": " + e.Reason
	}
	return "guard: " + e.Code
}

// Problem maps guard rejections onto a 403 response.
func (e *AuthzError) Problem() (int, string, string) {
	return http.StatusForbidden, "Forbidden", e.Code
}

// Terminal rejections raised by the chain stages.
var (
	ErrGroupsRequired      = &AuthzError{Code: CodeGroupsRequired, Reason: "token carries no authorization groups"}
	ErrPermissionRequired  = &AuthzError{Code: CodePermissionRequired, Reason: "caller lacks authority for this operation"}
	ErrSelfGrantProhibited = &AuthzError{Code: CodeSelfGrantProhibited, Reason: "performer and target are the same principal"}
)
