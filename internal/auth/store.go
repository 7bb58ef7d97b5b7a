package auth

import (
	"context"
	"time"
)

// Store aggregates the persistence surfaces the auth subsystem needs. The
// refresh ledger is the only writer of RefreshTokenStore.
type Store interface {
	Organizations() OrganizationStore
	Users() UserStore
	Roles() RoleStore
	RefreshTokens() RefreshTokenStore
	Audit() AuditStore
}

// OrganizationStore manages tenancy roots.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
}

// UserStore manages accounts. FindByEmail scopes the lookup to one
// organization; an empty organizationID addresses the org-independent root
// actor.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, organizationID, email string) (*User, error)
}

// RoleStore manages roles, their scope sets, and assignments.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Assign(ctx context.Context, userID, roleID string) error
	RolesForUser(ctx context.Context, userID string) ([]Role, error)
}

// RefreshTokenStore persists refresh token lineage. Rotate must be atomic:
// the active→rotated transition and the child insert either both happen or
// neither does, and a concurrent Rotate on the same id loses with
// ErrConflict.
type RefreshTokenStore interface {
	Create(ctx context.Context, rec *RefreshTokenRecord) error
	Find(ctx context.Context, id string) (*RefreshTokenRecord, error)
	Rotate(ctx context.Context, id string, child *RefreshTokenRecord) error
	RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error)
	RevokeAllForSubject(ctx context.Context, subject string, at time.Time) (int64, error)
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditStore appends immutable security events.
type AuditStore interface {
	Append(ctx context.Context, event *AuditEvent) error
}
