package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type serviceFixture struct {
	store   *MemoryStore
	codec   *Codec
	service *Service
	now     time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{store: NewMemoryStore(), now: time.Now().UTC()}
	clock := func() time.Time { return f.now }

	f.codec = NewCodec(testKeyring(t), "moldash", "moldash-api").WithClock(clock)
	issuer := NewIssuer(f.codec, 15*time.Minute, 24*time.Hour).WithClock(clock)
	ledger := NewLedger(f.store, issuer, nil).WithClock(clock)
	f.service = NewService(f.store, f.codec, issuer, ledger, nil, WithClock(clock))

	ctx := context.Background()
	seedOrg := func(id, name, status string) {
		if err := f.store.Organizations().Create(ctx, &Organization{ID: id, Name: name, Status: status}); err != nil {
			t.Fatalf("seed org %s: %v", id, err)
		}
	}
	seedOrg("org-acme", "acme", OrgStatusActive)
	seedOrg("org-beta", "beta", OrgStatusActive)
	seedOrg("org-frozen", "frozen", OrgStatusSuspended)

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	seedUser := func(id, org, email, status string) {
		if err := f.store.Users().Create(ctx, &User{
			ID: id, OrganizationID: org, Email: email, PasswordHash: hash, Status: status,
		}); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
	seedUser("alice", "org-acme", "alice@acme.test", UserStatusActive)
	seedUser("bob", "org-beta", "bob@beta.test", UserStatusActive)
	seedUser("mallory", "org-acme", "mallory@acme.test", UserStatusDisabled)
	seedUser("carol", "org-frozen", "carol@frozen.test", UserStatusActive)

	if err := f.store.Roles().Create(ctx, &Role{ID: "role-sci", OrganizationID: "org-acme", Name: "scientist", Scopes: []string{"job.*", ScopeMoleculeRead}}); err != nil {
		t.Fatalf("seed role: %v", err)
	}
	if err := f.store.Roles().Assign(ctx, "alice", "role-sci"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	return f
}

func TestServiceLogin(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	pair, user, err := f.service.Login(ctx, "org-acme", "Alice@ACME.test", "correct horse", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != "alice" {
		t.Errorf("user = %q", user.ID)
	}

	claims, err := f.codec.Decode(pair.AccessToken)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.OrganizationID != "org-acme" {
		t.Errorf("org claim = %q", claims.OrganizationID)
	}
	if !AuthorizeScopes(claims.Scopes, claims.Roles, ScopeJobCreate) {
		t.Error("login claims cannot create jobs")
	}
}

func TestServiceLoginFailures(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		org      string
		email    string
		password string
		want     error
	}{
		{"wrong password", "org-acme", "alice@acme.test", "wrong", ErrInvalidCredentials},
		{"unknown email", "org-acme", "nobody@acme.test", "correct horse", ErrInvalidCredentials},
		{"wrong organization", "org-beta", "alice@acme.test", "correct horse", ErrInvalidCredentials},
		{"disabled user", "org-acme", "mallory@acme.test", "correct horse", ErrInvalidCredentials},
		{"suspended org", "org-frozen", "carol@frozen.test", "correct horse", ErrOrganizationSuspended},
		{"empty password", "org-acme", "alice@acme.test", "", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.service.Login(ctx, tt.org, tt.email, tt.password, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("Login err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestServiceRefreshAndLogout(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	pair, _, err := f.service.Login(ctx, "org-acme", "alice@acme.test", "correct horse", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, user, err := f.service.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if user.ID != "alice" {
		t.Errorf("refreshed user = %q", user.ID)
	}

	if err := f.service.Logout(ctx, next.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := f.service.Refresh(ctx, next.RefreshToken); !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("refresh after logout err = %v, want ErrReuseDetected", err)
	}
}

func TestServiceAuthorizeRequest(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	pair, _, err := f.service.Login(ctx, "org-acme", "alice@acme.test", "correct horse", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := f.service.AuthorizeRequest(ctx, pair.AccessToken, ScopeJobCancel); err != nil {
		t.Fatalf("AuthorizeRequest(job.cancel): %v", err)
	}
	if _, err := f.service.AuthorizeRequest(ctx, pair.AccessToken, ScopeOrgUpdate); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("AuthorizeRequest(org.update) err = %v, want ErrPermissionDenied", err)
	}

	var denied bool
	for _, ev := range f.store.AuditEvents() {
		if ev.Event == AuditPermissionDenied {
			denied = true
		}
	}
	if !denied {
		t.Error("denial not audited")
	}

	// Authorization never rotates: the pair keeps working afterwards.
	if _, _, err := f.service.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh after authorize: %v", err)
	}
}

func TestServiceAuthenticateExpired(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	pair, _, err := f.service.Login(ctx, "org-acme", "alice@acme.test", "correct horse", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	f.now = f.now.Add(16 * time.Minute)
	if _, err := f.service.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrExpired) {
		t.Fatalf("Authenticate err = %v, want ErrExpired", err)
	}
	// The refresh token is still inside its window.
	if _, _, err := f.service.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh with live window: %v", err)
	}
}

func TestServiceRevokeAllForSubject(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a, _, err := f.service.Login(ctx, "org-acme", "alice@acme.test", "correct horse", "tab-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	b, _, err := f.service.Login(ctx, "org-acme", "alice@acme.test", "correct horse", "tab-2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	n, err := f.service.RevokeAllForSubject(ctx, "alice")
	if err != nil {
		t.Fatalf("RevokeAllForSubject: %v", err)
	}
	if n != 2 {
		t.Fatalf("revoked = %d, want 2", n)
	}
	for _, pair := range []TokenPair{a, b} {
		if _, _, err := f.service.Refresh(ctx, pair.RefreshToken); err == nil {
			t.Error("refresh succeeded after revoke-all")
		}
	}
}

// Claims minted in one organization never authorize work in another, no
// matter how many roles the caller holds there.
func TestServiceCrossOrganizationClaims(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	pairA, _, err := f.service.Login(ctx, "org-acme", "alice@acme.test", "correct horse", "")
	if err != nil {
		t.Fatalf("Login alice: %v", err)
	}
	pairB, _, err := f.service.Login(ctx, "org-beta", "bob@beta.test", "correct horse", "")
	if err != nil {
		t.Fatalf("Login bob: %v", err)
	}

	claimsA, err := f.codec.Decode(pairA.AccessToken)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	claimsB, err := f.codec.Decode(pairB.AccessToken)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claimsA.OrganizationID == claimsB.OrganizationID {
		t.Fatal("distinct organizations share a claim value")
	}
	if claimsA.OrganizationID != "org-acme" || claimsB.OrganizationID != "org-beta" {
		t.Errorf("org claims = %q, %q", claimsA.OrganizationID, claimsB.OrganizationID)
	}
}
