package token

import (
	"errors"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapVerifyErrorExpired(t *testing.T) {
	err := mapVerifyError(&oidc.TokenExpiredError{Expiry: time.Now().Add(-time.Hour)})
	var verifyErr *VerifyError
	require.ErrorAs(t, err, &verifyErr)
	assert.Equal(t, CodeExpired, verifyErr.Code)
}

func TestMapVerifyErrorCodes(t *testing.T) {
	cases := []struct {
		message string
		want    Code
	}{
		{"oidc: malformed jwt: square/go-jose: compact JWS format must have three parts", CodeTokenDecode},
		{"oidc: id token signed with unsupported algorithm, expected [\"RS256\"]", CodeInvalidAlgorithm},
		{"failed to verify id token signature: no matching kid", CodeMissingKeyID},
		{"failed to verify signature: fetching keys oidc: get keys failed", CodeNoMatchingKey},
		{"oidc: expected audience \"fam-access\" got [\"other\"]", CodeInvalidClient},
		{"oidc: something else entirely", CodeInvalidClaims},
	}
	for _, tc := range cases {
		err := mapVerifyError(errors.New(tc.message))
		var verifyErr *VerifyError
		require.ErrorAs(t, err, &verifyErr, "message %q", tc.message)
		assert.Equal(t, tc.want, verifyErr.Code, "message %q", tc.message)
	}
}

func TestVerifyErrorProblem(t *testing.T) {
	status, title, code := NewVerifyError(CodeNoMatchingKey, nil).Problem()
	assert.Equal(t, 401, status)
	assert.Equal(t, "Unauthorized", title)
	assert.Equal(t, string(CodeNoMatchingKey), code)
}
