package tenant

import (
	"errors"

	"moldash.org/internal/auth"
)

// ErrCrossTenantViolation marks a request that designates an organization
// other than the caller's. It is a contract defect in the calling layer,
// never a routine user-facing condition, and always fails closed.
var ErrCrossTenantViolation = errors.New("tenant: cross-tenant violation")

// Scope is the bound execution context produced by Bind. The persistence
// layer is contractually required to apply OrganizationID as a hard
// predicate on every query and mutation it runs under this scope. Root is
// true only for the organization-independent root actor.
type Scope struct {
	Subject        string
	OrganizationID string
	Root           bool
}

// Spanning marks a scope that legitimately covers all organizations. Only
// root scopes bound to a declared org-spanning operation are spanning.
func (s Scope) Spanning() bool {
	return s.Root && s.OrganizationID == ""
}

// AppliesTo is the single chokepoint data stores use to reject rows outside
// the bound organization before executing anything.
func (s Scope) AppliesTo(organizationID string) bool {
	if s.Spanning() {
		return true
	}
	return s.OrganizationID != "" && s.OrganizationID == organizationID
}

// Bind derives the execution scope from verified token claims and the
// organization the request explicitly designates (empty when it designates
// none). Non-root callers are pinned to their token's organization and any
// differing designation is rejected at call time, not by filtering results.
// The root actor substitutes the designated organization; designate-none is
// refused unless the operation is declared root-only and organization
// spanning.
func Bind(claims auth.Claims, explicitOrg string, orgSpanning bool) (Scope, error) {
	root := false
	for _, role := range claims.Roles {
		if role == auth.RoleRoot {
			root = true
			break
		}
	}

	if root {
		if explicitOrg == "" {
			if !orgSpanning {
				return Scope{}, ErrCrossTenantViolation
			}
			return Scope{Subject: claims.Subject, Root: true}, nil
		}
		return Scope{Subject: claims.Subject, OrganizationID: explicitOrg, Root: true}, nil
	}

	if claims.OrganizationID == "" {
		return Scope{}, ErrCrossTenantViolation
	}
	if explicitOrg != "" && explicitOrg != claims.OrganizationID {
		return Scope{}, ErrCrossTenantViolation
	}
	return Scope{Subject: claims.Subject, OrganizationID: claims.OrganizationID}, nil
}
