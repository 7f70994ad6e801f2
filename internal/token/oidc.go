package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier validates bearer tokens against an OIDC issuer. The remote
// key set caches the issuer's JWKS and refetches it when presented an
// unknown key id, so key rotation needs no process restart.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a verifier bound to the
// expected audience.
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("token: discover issuer: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

type rawClaims struct {
	Groups   []string `json:"groups"`
	ClientID string   `json:"client_id"`
	AZP      string   `json:"azp"`
}

// Verify validates the token and extracts the claim set.
func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (Claims, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return Claims{}, mapVerifyError(err)
	}
	var payload rawClaims
	if err := idToken.Claims(&payload); err != nil {
		return Claims{}, &VerifyError{Code: CodeInvalidClaims, cause: err}
	}
	clientID := payload.ClientID
	if clientID == "" {
		clientID = payload.AZP
	}
	if idToken.Subject == "" {
		return Claims{}, &VerifyError{Code: CodeInvalidClaims, cause: errors.New("subject claim missing")}
	}
	return Claims{
		Subject:  idToken.Subject,
		Groups:   payload.Groups,
		ClientID: clientID,
		Expiry:   idToken.Expiry,
	}, nil
}

// mapVerifyError assigns a stable code to a go-oidc verification failure.
// Expiry has a typed error; the remaining cases are distinguishable only by
// message.
func mapVerifyError(err error) error {
	var expired *oidc.TokenExpiredError
	if errors.As(err, &expired) {
		return &VerifyError{Code: CodeExpired, cause: err}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "malformed"):
		return &VerifyError{Code: CodeTokenDecode, cause: err}
	case strings.Contains(msg, "unsupported algorithm"):
		return &VerifyError{Code: CodeInvalidAlgorithm, cause: err}
	case strings.Contains(msg, "kid"):
		return &VerifyError{Code: CodeMissingKeyID, cause: err}
	case strings.Contains(msg, "verify signature") || strings.Contains(msg, "no keys"):
		return &VerifyError{Code: CodeNoMatchingKey, cause: err}
	case strings.Contains(msg, "audience") || strings.Contains(msg, "client"):
		return &VerifyError{Code: CodeInvalidClient, cause: err}
	default:
		return &VerifyError{Code: CodeInvalidClaims, cause: err}
	}
}
