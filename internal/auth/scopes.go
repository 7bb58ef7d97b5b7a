package auth

import "strings"

// Permission scopes form a closed, dot-separated hierarchy. A role may hold
// a concrete scope or a wildcard like "job.*" covering every scope beneath
// that segment. Requests for scopes outside this registry always deny.
const (
	ScopeJobCreate = "job.create"
	ScopeJobRead   = "job.read"
	ScopeJobUpdate = "job.update"
	ScopeJobCancel = "job.cancel"

	ScopeMoleculeUpload = "molecule.upload"
	ScopeMoleculeRead   = "molecule.read"

	ScopeOrgRead   = "org.read"
	ScopeOrgUpdate = "org.update"

	ScopeUserManage = "user.manage"
	ScopeRoleManage = "role.manage"

	ScopeTokenRevoke = "token.revoke"
	ScopeAuditRead   = "audit.read"
)

// RoleRoot is the single global role; it satisfies every scope, including
// cross-organization ones. No other role does.
const RoleRoot = "root"

var registeredScopes = map[string]struct{}{
	ScopeJobCreate:      {},
	ScopeJobRead:        {},
	ScopeJobUpdate:      {},
	ScopeJobCancel:      {},
	ScopeMoleculeUpload: {},
	ScopeMoleculeRead:   {},
	ScopeOrgRead:        {},
	ScopeOrgUpdate:      {},
	ScopeUserManage:     {},
	ScopeRoleManage:     {},
	ScopeTokenRevoke:    {},
	ScopeAuditRead:      {},
}

// KnownScope reports whether the scope belongs to the closed registry.
func KnownScope(scope string) bool {
	_, ok := registeredScopes[scope]
	return ok
}

// scopeCovers reports whether a held scope grants the requested one, either
// exactly or through a trailing wildcard segment.
func scopeCovers(held, requested string) bool {
	if held == requested {
		return true
	}
	if prefix, ok := strings.CutSuffix(held, ".*"); ok {
		return strings.HasPrefix(requested, prefix+".")
	}
	return false
}
