package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CredentialVerifier is the external collaborator that checks a login
// secret. The builtin implementation reads the user store and bcrypt
// hashes; deployments with an external identity provider swap it out.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, organizationID, email, secret string) (*User, error)
}

// Service orchestrates login, refresh, logout and per-request
// authorization. It is the only component the HTTP boundary talks to.
type Service struct {
	store    Store
	codec    *Codec
	issuer   *Issuer
	ledger   *Ledger
	verifier CredentialVerifier
	log      *zap.Logger
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithVerifier replaces the builtin credential verifier.
func WithVerifier(v CredentialVerifier) ServiceOption {
	return func(s *Service) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the session service over the shared store.
func NewService(store Store, codec *Codec, issuer *Issuer, ledger *Ledger, log *zap.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Service{
		store:    store,
		codec:    codec,
		issuer:   issuer,
		ledger:   ledger,
		log:      log,
		now:      time.Now,
	}
	svc.verifier = &storeVerifier{users: store.Users()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Ledger exposes the refresh ledger for admin surfaces (revoke-all).
func (s *Service) Ledger() *Ledger { return s.ledger }

// Login authenticates credentials inside one organization and starts a new
// refresh token family. Fails ErrInvalidCredentials or
// ErrOrganizationSuspended.
func (s *Service) Login(ctx context.Context, organizationID, email, password, fingerprint string) (TokenPair, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	user, err := s.verifier.VerifyCredentials(ctx, organizationID, email, password)
	if err != nil {
		s.appendAudit(ctx, "", organizationID, AuditLogin, "invalid_credentials", "")
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if user.Status != UserStatusActive {
		s.appendAudit(ctx, user.ID, organizationID, AuditLogin, "invalid_credentials", "user disabled")
		return TokenPair{}, nil, ErrInvalidCredentials
	}

	// The root actor carries no organization; everyone else logs into the
	// organization they belong to, and it must not be suspended.
	if user.OrganizationID != "" {
		org, err := s.store.Organizations().Find(ctx, user.OrganizationID)
		if err != nil {
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		if org.Status != OrgStatusActive {
			s.appendAudit(ctx, user.ID, user.OrganizationID, AuditLogin, "organization_suspended", "")
			return TokenPair{}, nil, ErrOrganizationSuspended
		}
	}

	roles, err := s.store.Roles().RolesForUser(ctx, user.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}

	pair, rec, err := s.issuer.Issue(user.ID, user.OrganizationID, roles, "", "", fingerprint)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := s.store.RefreshTokens().Create(ctx, rec); err != nil {
		return TokenPair{}, nil, err
	}

	s.appendAudit(ctx, user.ID, user.OrganizationID, AuditLogin, "ok", "")
	return pair, user, nil
}

// Refresh rotates the presented refresh token. On ErrReuseDetected,
// ErrUnknownToken or ErrExpired the session is gone and the caller must
// re-login.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	return s.ledger.Rotate(ctx, refreshToken)
}

// Logout revokes the token's family. Always succeeds; revoking an
// already-revoked token is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.ledger.Revoke(ctx, refreshToken)
}

// Authenticate verifies an access token without checking any scope.
// Transport middleware uses it to establish the caller's claims once per
// request; scope checks happen per operation.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Claims, error) {
	return s.codec.Decode(accessToken)
}

// AuthorizeRequest verifies an access token and checks the requested scope.
// It never rotates tokens: an expired access token surfaces ErrExpired and
// the caller decides to refresh. Returns the verified claims on success.
func (s *Service) AuthorizeRequest(ctx context.Context, accessToken, scope string) (Claims, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return Claims{}, err
	}
	if !AuthorizeScopes(claims.Scopes, claims.Roles, scope) {
		s.appendAudit(ctx, claims.Subject, claims.OrganizationID, AuditPermissionDenied, scope, "")
		return Claims{}, ErrPermissionDenied
	}
	return claims, nil
}

// RevokeAllForSubject terminates every live session of one subject.
func (s *Service) RevokeAllForSubject(ctx context.Context, subject string) (int64, error) {
	return s.ledger.RevokeAllForSubject(ctx, subject)
}

func (s *Service) appendAudit(ctx context.Context, subject, organizationID, event, outcome, detail string) {
	entry := &AuditEvent{
		Subject:        subject,
		OrganizationID: organizationID,
		Event:          event,
		Outcome:        outcome,
		Detail:         detail,
		OccurredAt:     s.now().UTC(),
	}
	if err := s.store.Audit().Append(ctx, entry); err != nil {
		s.log.Error("audit append failed", zap.String("event", event), zap.Error(err))
	}
}

// storeVerifier checks credentials against the user store.
type storeVerifier struct {
	users UserStore
}

func (v *storeVerifier) VerifyCredentials(ctx context.Context, organizationID, email, secret string) (*User, error) {
	user, err := v.users.FindByEmail(ctx, organizationID, email)
	if err != nil {
		// Burn comparable time so unknown emails are not distinguishable by
		// latency.
		_ = VerifyPassword("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0XYZ3cVle4/cjbfBFbwQYV61Gxi", secret)
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, secret); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
