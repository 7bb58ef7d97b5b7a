package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Ledger is the persisted registry of refresh token lineage. It is the only
// component that mutates RefreshTokenStore. Rotation is family based:
// presenting a token that has already been superseded is treated as theft
// and terminates the whole family.
//
// Concurrency policy: the active→rotated transition is a conditional update
// scoped to the presented record, so exactly one of two concurrent callers
// wins. The loser is NOT treated as a benign duplicate: it always receives
// ErrReuseDetected and the family is revoked. Legitimate clients that can
// race themselves (two browser tabs) must serialize refreshes.
type Ledger struct {
	tokens RefreshTokenStore
	users  UserStore
	roles  RoleStore
	audit  AuditStore
	issuer *Issuer
	log    *zap.Logger
	now    func() time.Time
}

// NewLedger wires the ledger over the shared store.
func NewLedger(store Store, issuer *Issuer, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		tokens: store.RefreshTokens(),
		users:  store.Users(),
		roles:  store.Roles(),
		audit:  store.Audit(),
		issuer: issuer,
		log:    log,
		now:    time.Now,
	}
}

// WithClock overrides the ledger time source. Test hook.
func (l *Ledger) WithClock(fn func() time.Time) *Ledger {
	if fn != nil {
		l.now = fn
	}
	return l
}

// Rotate exchanges an active refresh token for a new access/refresh pair.
// Failure taxonomy: ErrUnknownToken when the identifier resolves to nothing,
// ErrExpired when the record outlived its lifetime, ErrReuseDetected when a
// superseded token is presented (the family is revoked before returning).
func (l *Ledger) Rotate(ctx context.Context, presented string) (TokenPair, *User, error) {
	id, secret, err := SplitRefreshToken(presented)
	if err != nil {
		return TokenPair{}, nil, ErrUnknownToken
	}

	rec, err := l.tokens.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrUnknownToken
		}
		return TokenPair{}, nil, err
	}

	if !VerifyRefreshSecret(rec.SecretHash, secret) {
		// A guessed or tampered secret against a real identifier is as
		// suspicious as replaying a rotated token.
		l.revokeFamily(ctx, rec, "secret_mismatch")
		return TokenPair{}, nil, ErrUnknownToken
	}

	if rec.Terminal() {
		l.reuseDetected(ctx, rec)
		return TokenPair{}, nil, ErrReuseDetected
	}

	now := l.now().UTC()
	if !now.Before(rec.ExpiresAt) {
		// Lazily expired. Treated as revoked from here on so a later replay
		// trips reuse detection, but reported to this caller as expiry.
		l.revokeFamily(ctx, rec, "expired")
		return TokenPair{}, nil, ErrExpired
	}

	user, err := l.users.Find(ctx, rec.Subject)
	if err != nil || user.Status != UserStatusActive {
		l.revokeFamily(ctx, rec, "subject_unavailable")
		return TokenPair{}, nil, ErrUnknownToken
	}
	roles, err := l.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}

	pair, child, err := l.issuer.Issue(rec.Subject, rec.OrganizationID, roles, rec.FamilyID, rec.ID, rec.Fingerprint)
	if err != nil {
		return TokenPair{}, nil, err
	}

	if err := l.tokens.Rotate(ctx, rec.ID, child); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the compare-and-swap: someone else rotated this record
			// between our read and write. Strict policy applies.
			l.reuseDetected(ctx, rec)
			return TokenPair{}, nil, ErrReuseDetected
		}
		return TokenPair{}, nil, err
	}

	l.appendAudit(ctx, rec, AuditRefresh, "rotated", "")
	return pair, user, nil
}

// Revoke terminates the presented token and, conservatively, its entire
// family. Idempotent: unknown or already-terminal tokens are not an error.
func (l *Ledger) Revoke(ctx context.Context, presented string) error {
	id, _, err := SplitRefreshToken(presented)
	if err != nil {
		return nil
	}
	rec, err := l.tokens.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	n, err := l.tokens.RevokeFamily(ctx, rec.FamilyID, l.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		l.appendAudit(ctx, rec, AuditRevocation, "logout", "")
	}
	return nil
}

// RevokeAllForSubject terminates every non-terminal record for a subject.
// Admin/security action.
func (l *Ledger) RevokeAllForSubject(ctx context.Context, subject string) (int64, error) {
	n, err := l.tokens.RevokeAllForSubject(ctx, subject, l.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.appendAudit(ctx, &RefreshTokenRecord{Subject: subject}, AuditRevocation, "revoke_all", "")
	}
	return n, nil
}

// PurgeTerminalBefore deletes rotated/revoked/expired records whose expiry
// precedes the cutoff. Active records are never deleted.
func (l *Ledger) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return l.tokens.PurgeTerminalBefore(ctx, cutoff)
}

func (l *Ledger) reuseDetected(ctx context.Context, rec *RefreshTokenRecord) {
	if _, err := l.tokens.RevokeFamily(ctx, rec.FamilyID, l.now().UTC()); err != nil {
		l.log.Error("revoke family after reuse failed",
			zap.String("family_id", rec.FamilyID), zap.Error(err))
	}
	l.log.Warn("refresh token reuse detected, family revoked",
		zap.String("subject", rec.Subject),
		zap.String("organization_id", rec.OrganizationID),
		zap.String("family_id", rec.FamilyID),
		zap.String("token_id", rec.ID),
	)
	l.appendAudit(ctx, rec, AuditReuseDetected, "family_revoked", "superseded token presented")
}

func (l *Ledger) revokeFamily(ctx context.Context, rec *RefreshTokenRecord, reason string) {
	if _, err := l.tokens.RevokeFamily(ctx, rec.FamilyID, l.now().UTC()); err != nil {
		l.log.Error("revoke family failed",
			zap.String("family_id", rec.FamilyID), zap.Error(err))
		return
	}
	l.appendAudit(ctx, rec, AuditRevocation, reason, "")
}

func (l *Ledger) appendAudit(ctx context.Context, rec *RefreshTokenRecord, event, outcome, detail string) {
	entry := &AuditEvent{
		Subject:        rec.Subject,
		OrganizationID: rec.OrganizationID,
		Event:          event,
		Outcome:        outcome,
		Detail:         detail,
		OccurredAt:     l.now().UTC(),
	}
	if err := l.audit.Append(ctx, entry); err != nil {
		l.log.Error("audit append failed", zap.String("event", event), zap.Error(err))
	}
}
