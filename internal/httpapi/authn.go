package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gatehouse.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/register",
	"/healthz",
	"/readyz",
	"/metrics",
	"/openapi.yaml",
	"/v1/info",
	"/",
}

// withAuth rejects requests without a valid bearer token and attaches the
// token's identity to the context. Claims inside a validated token are
// trusted as-is; downstream code reads them without re-validating.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.codec.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		id, _ := claims.SubjectID()
		identity := auth.Identity{
			ID:          id,
			Name:        claims.Name,
			Email:       claims.Email,
			Role:        claims.Role,
			RoleID:      claims.RoleID,
			Active:      claims.Active,
			Permissions: auth.PermissionsForRole(claims.Role),
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requirePermission(r *http.Request, perm string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return errors.New("authentication required")
	}
	if !identity.HasPermission(perm) {
		return errors.New("permission denied")
	}
	return nil
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
