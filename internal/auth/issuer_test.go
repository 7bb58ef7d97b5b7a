package auth

import (
	"testing"
	"time"
)

func testIssuer(t *testing.T) (*Issuer, *Codec) {
	t.Helper()
	codec := NewCodec(testKeyring(t), "moldash", "moldash-api")
	return NewIssuer(codec, 15*time.Minute, 30*24*time.Hour), codec
}

func TestIssuerIssue(t *testing.T) {
	issuer, codec := testIssuer(t)
	roles := []Role{
		{Name: "scientist", Scopes: []string{ScopeJobRead, ScopeJobCreate}},
		{Name: "uploader", Scopes: []string{ScopeMoleculeUpload, ScopeJobRead}},
	}

	pair, rec, err := issuer.Issue("user-1", "org-acme", roles, "", "", "agent/1.0")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := codec.Decode(pair.AccessToken)
	if err != nil {
		t.Fatalf("Decode access token: %v", err)
	}
	if claims.Subject != "user-1" || claims.OrganizationID != "org-acme" {
		t.Errorf("claims subject/org = %q/%q", claims.Subject, claims.OrganizationID)
	}
	wantScopes := []string{ScopeJobCreate, ScopeJobRead, ScopeMoleculeUpload}
	if len(claims.Scopes) != len(wantScopes) {
		t.Fatalf("scopes = %v, want %v", claims.Scopes, wantScopes)
	}
	for i, s := range wantScopes {
		if claims.Scopes[i] != s {
			t.Errorf("scopes[%d] = %q, want %q", i, claims.Scopes[i], s)
		}
	}
	if claims.ID == "" {
		t.Error("jti not set")
	}

	if rec.Status != RefreshStatusActive || rec.FamilyID == "" || rec.ParentID != "" {
		t.Errorf("new family record = %+v", rec)
	}
	if rec.Fingerprint != "agent/1.0" {
		t.Errorf("fingerprint = %q", rec.Fingerprint)
	}

	id, secret, err := SplitRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("SplitRefreshToken: %v", err)
	}
	if id != rec.ID {
		t.Errorf("refresh id = %q, want %q", id, rec.ID)
	}
	if !VerifyRefreshSecret(rec.SecretHash, secret) {
		t.Error("stored hash does not verify the issued secret")
	}
	if VerifyRefreshSecret(rec.SecretHash, secret+"x") {
		t.Error("wrong secret verified")
	}
}

func TestIssuerContinuesFamily(t *testing.T) {
	issuer, _ := testIssuer(t)
	_, parent, err := issuer.Issue("user-1", "org-acme", nil, "", "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, child, err := issuer.Issue("user-1", "org-acme", nil, parent.FamilyID, parent.ID, "")
	if err != nil {
		t.Fatalf("Issue child: %v", err)
	}
	if child.FamilyID != parent.FamilyID {
		t.Errorf("family = %q, want %q", child.FamilyID, parent.FamilyID)
	}
	if child.ParentID != parent.ID {
		t.Errorf("parent = %q, want %q", child.ParentID, parent.ID)
	}
}

func TestIssuerRequiresSubject(t *testing.T) {
	issuer, _ := testIssuer(t)
	if _, _, err := issuer.Issue("  ", "org-acme", nil, "", "", ""); err == nil {
		t.Fatal("Issue with blank subject should fail")
	}
}

func TestSplitRefreshToken(t *testing.T) {
	for _, raw := range []string{"", "no-dot", ".secret", "id."} {
		if _, _, err := SplitRefreshToken(raw); err == nil {
			t.Errorf("SplitRefreshToken(%q) should fail", raw)
		}
	}
	id, secret, err := SplitRefreshToken("rec-1.s3cret")
	if err != nil || id != "rec-1" || secret != "s3cret" {
		t.Fatalf("SplitRefreshToken = %q, %q, %v", id, secret, err)
	}
}
