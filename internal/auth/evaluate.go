package auth

// Authorize is the pure permission check: the scopes declared by all held
// roles are unioned and the requested scope must be covered by that union.
// It knows nothing about organization boundaries; tenant isolation is
// enforced separately so the two concerns stay independently testable.
func Authorize(roles []Role, requested string) bool {
	if !KnownScope(requested) {
		return false
	}
	for _, role := range roles {
		if role.Name == RoleRoot {
			return true
		}
		for _, held := range role.Scopes {
			if scopeCovers(held, requested) {
				return true
			}
		}
	}
	return false
}

// AuthorizeScopes checks a requested scope against an already-resolved scope
// union, as carried in access token claims.
func AuthorizeScopes(held []string, roleNames []string, requested string) bool {
	if !KnownScope(requested) {
		return false
	}
	for _, name := range roleNames {
		if name == RoleRoot {
			return true
		}
	}
	for _, h := range held {
		if scopeCovers(h, requested) {
			return true
		}
	}
	return false
}
