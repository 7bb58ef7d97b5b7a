package auth

import "testing"

func TestAuthorize(t *testing.T) {
	scientist := Role{Name: "scientist", Scopes: []string{ScopeJobCreate, ScopeJobRead, ScopeMoleculeRead}}
	operator := Role{Name: "operator", Scopes: []string{"job.*"}}
	viewer := Role{Name: "viewer", Scopes: []string{ScopeJobRead}}
	root := Role{Name: RoleRoot}

	tests := []struct {
		name      string
		roles     []Role
		requested string
		want      bool
	}{
		{"exact scope", []Role{scientist}, ScopeJobCreate, true},
		{"missing scope", []Role{scientist}, ScopeOrgUpdate, false},
		{"wildcard covers child", []Role{operator}, ScopeJobCancel, true},
		{"wildcard stays in segment", []Role{operator}, ScopeMoleculeRead, false},
		{"union across roles", []Role{viewer, scientist}, ScopeJobCreate, true},
		{"root satisfies everything", []Role{root}, ScopeOrgUpdate, true},
		{"no roles", nil, ScopeJobRead, false},
		{"unknown scope always denies", []Role{root}, "job.telemetry", false},
		{"empty scope denies", []Role{scientist}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.roles, tt.requested); got != tt.want {
				t.Errorf("Authorize(%v, %q) = %v, want %v", tt.roles, tt.requested, got, tt.want)
			}
		})
	}
}

// Granting an additional role can only widen access, never narrow it.
func TestAuthorizeMonotonic(t *testing.T) {
	base := []Role{{Name: "viewer", Scopes: []string{ScopeJobRead}}}
	extra := Role{Name: "uploader", Scopes: []string{ScopeMoleculeUpload}}

	for _, scope := range []string{ScopeJobRead, ScopeJobCreate, ScopeMoleculeUpload, ScopeOrgRead} {
		before := Authorize(base, scope)
		after := Authorize(append(append([]Role(nil), base...), extra), scope)
		if before && !after {
			t.Errorf("adding a role revoked %q", scope)
		}
	}
}

func TestAuthorizeScopes(t *testing.T) {
	tests := []struct {
		name      string
		held      []string
		roles     []string
		requested string
		want      bool
	}{
		{"held exact", []string{ScopeJobRead}, []string{"viewer"}, ScopeJobRead, true},
		{"held wildcard", []string{"molecule.*"}, []string{"uploader"}, ScopeMoleculeUpload, true},
		{"not held", []string{ScopeJobRead}, []string{"viewer"}, ScopeJobCreate, false},
		{"root role name wins", nil, []string{RoleRoot}, ScopeTokenRevoke, true},
		{"unknown scope", []string{"job.*"}, []string{RoleRoot}, "job.unknowable", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuthorizeScopes(tt.held, tt.roles, tt.requested); got != tt.want {
				t.Errorf("AuthorizeScopes(%v, %v, %q) = %v, want %v",
					tt.held, tt.roles, tt.requested, got, tt.want)
			}
		})
	}
}
