package guard

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fam-platform/fam-access/internal/platform/httpx"
	"github.com/fam-platform/fam-access/internal/token"
	"github.com/fam-platform/fam-access/internal/users"
)

// Principal is the authenticated caller placed in the request context.
type Principal struct {
	Identity users.Identity
	Groups   []string
	ClientID string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// Authenticator runs the first two chain stages: token verification and the
// group-claim presence check. Failures here stop the request before any
// audit record is opened.
type Authenticator struct {
	Verifier token.Verifier
	Logger   *slog.Logger
}

// Middleware authenticates the bearer token and stores the principal. A
// missing or invalid token yields a 401 problem carrying the verifier's
// code; a token without authorization groups yields a terminal 403.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		claims, err := a.Verifier.Verify(r.Context(), raw)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Warn("token rejected", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		if len(claims.Groups) == 0 {
			httpx.RespondError(w, ErrGroupsRequired)
			return
		}
		principal := Principal{
			Identity: users.Identity{Type: users.IdentityUser, Name: claims.Subject},
			Groups:   claims.Groups,
			ClientID: claims.ClientID,
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
