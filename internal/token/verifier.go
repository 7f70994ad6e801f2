// Package token verifies inbound bearer tokens and exposes their claims.
package token

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Code identifies why token verification failed.
type Code string

const (
	CodeTokenDecode      Code = "TOKEN_DECODE"
	CodeInvalidAlgorithm Code = "INVALID_ALGORITHM"
	CodeMissingKeyID     Code = "MISSING_KEY_ID"
	CodeNoMatchingKey    Code = "NO_MATCHING_KEY"
	CodeExpired          Code = "EXPIRED"
	CodeInvalidClaims    Code = "INVALID_CLAIMS"
	CodeInvalidClient    Code = "INVALID_CLIENT"
)

// VerifyError wraps a verification failure with its stable code.
type VerifyError struct {
	Code  Code
	cause error
}

// NewVerifyError builds a VerifyError from a code and its cause.
func NewVerifyError(code Code, cause error) *VerifyError {
	return &VerifyError{Code: code, cause: cause}
}

func (e *VerifyError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("token: %s: %v", e.Code, e.cause)
	}
	return fmt.Sprintf("token: %s", e.Code)
}

func (e *VerifyError) Unwrap() error { return e.cause }

// Problem maps verification failures onto a 401 response.
func (e *VerifyError) Problem() (int, string, string) {
	return http.StatusUnauthorized, "Unauthorized", string(e.Code)
}

// Claims carries the verified token contents the guards act on.
type Claims struct {
	Subject  string
	Groups   []string
	ClientID string
	Expiry   time.Time
}

// Verifier validates an opaque bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Claims, error)
}
