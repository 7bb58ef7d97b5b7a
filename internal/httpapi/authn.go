package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"moldash.org/internal/audit"
	"moldash.org/internal/auth"
	"moldash.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/v1/auth/logout",
}

// withAuth authenticates every non-public request once and stores the
// verified claims on the context. Scope checks happen per handler.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.sessions == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), "unauthorized")
			return
		}

		claims, err := a.sessions.Authenticate(r.Context(), token)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireScope checks the authenticated caller against one scope. Returns
// the claims and false after writing the response when the check fails.
func (a *API) requireScope(w http.ResponseWriter, r *http.Request, scope string) (auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token", "unauthorized")
		return auth.Claims{}, false
	}
	if !auth.AuthorizeScopes(claims.Scopes, claims.Roles, scope) {
		obs.CountPermissionDenied()
		audit.Event(r.Context(), a.log, "permission_denied",
			zap.String("scope", scope),
			zap.String("organization_id", claims.OrganizationID))
		writeDomainError(w, auth.ErrPermissionDenied)
		return auth.Claims{}, false
	}
	return claims, true
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
