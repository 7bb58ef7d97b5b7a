package auth

import "time"

const (
	OrgStatusActive    = "active"
	OrgStatusSuspended = "suspended"

	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Refresh token record lifecycle. A record never returns to active once it
// has left that state.
const (
	RefreshStatusActive  = "active"
	RefreshStatusRotated = "rotated"
	RefreshStatusRevoked = "revoked"
)

// Organization is the tenancy root; every scoped entity references one.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a human or service account. OrganizationID is empty only for the
// root actor, which is organization independent.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Role groups permission scopes. Roles are organization scoped except the
// builtin root role, which is global.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Name           string    `json:"name"`
	Scopes         []string  `json:"scopes"`
	CreatedAt      time.Time `json:"created_at"`
}

// RefreshTokenRecord is the persisted side of an opaque refresh token. The
// client only ever holds "<id>.<secret>"; the secret is stored hashed.
type RefreshTokenRecord struct {
	ID             string     `json:"id"`
	Subject        string     `json:"subject"`
	OrganizationID string     `json:"organization_id,omitempty"`
	FamilyID       string     `json:"family_id"`
	ParentID       string     `json:"parent_id,omitempty"`
	SecretHash     string     `json:"-"`
	Fingerprint    string     `json:"fingerprint,omitempty"`
	IssuedAt       time.Time  `json:"issued_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	Status         string     `json:"status"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

// Terminal reports whether the record can no longer rotate.
func (r RefreshTokenRecord) Terminal() bool {
	return r.Status != RefreshStatusActive
}

// TokenPair is what login and refresh hand back to the boundary layer.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuditEvent is an append-only record of a security-relevant transition.
type AuditEvent struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Event          string    `json:"event"`
	Outcome        string    `json:"outcome"`
	Detail         string    `json:"detail,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Audit event types.
const (
	AuditLogin            = "login"
	AuditRefresh          = "refresh"
	AuditReuseDetected    = "rotation_reuse_detected"
	AuditRevocation       = "revocation"
	AuditPermissionDenied = "permission_denied"
)
