package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"moldash.org/internal/ids"
)

const (
	// DefaultAccessTTL keeps the bearer window short; a stolen access token
	// dies on its own within minutes.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL bounds how long a session can survive without a
	// fresh login.
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Issuer mints access/refresh pairs from a verified identity and
// organization context. The ledger, not the client, holds the structured
// refresh record; the client only sees the opaque "<id>.<secret>" string.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer constructs an Issuer; non-positive TTLs fall back to defaults.
func NewIssuer(codec *Codec, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Issuer{codec: codec, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// WithClock overrides the issuer time source. Test hook.
func (i *Issuer) WithClock(fn func() time.Time) *Issuer {
	if fn != nil {
		i.now = fn
	}
	return i
}

// Issue builds the access token claims and a fresh refresh record. An empty
// familyID starts a new family (login); rotation passes the existing family
// and the parent record id. The access token's organization claim always
// equals the refresh record's organization.
func (i *Issuer) Issue(subject, organizationID string, roles []Role, familyID, parentID, fingerprint string) (TokenPair, *RefreshTokenRecord, error) {
	if strings.TrimSpace(subject) == "" {
		return TokenPair{}, nil, errors.New("auth: subject is required")
	}
	now := i.now().UTC()
	accessExp := now.Add(i.accessTTL)

	claims := Claims{
		OrganizationID: organizationID,
		Roles:          roleNames(roles),
		Scopes:         scopeUnion(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
			ID:        ids.NewJTI(),
		},
	}
	accessToken, err := i.codec.Encode(claims)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("sign access token: %w", err)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return TokenPair{}, nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	sum := sha256.Sum256([]byte(secret))

	if familyID == "" {
		familyID = ids.NewFamily()
	}
	rec := &RefreshTokenRecord{
		ID:             ids.New(),
		Subject:        subject,
		OrganizationID: organizationID,
		FamilyID:       familyID,
		ParentID:       parentID,
		SecretHash:     hex.EncodeToString(sum[:]),
		Fingerprint:    fingerprint,
		IssuedAt:       now,
		ExpiresAt:      now.Add(i.refreshTTL),
		Status:         RefreshStatusActive,
	}

	pair := TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     rec.ID + "." + secret,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}
	return pair, rec, nil
}

func roleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names
}

func scopeUnion(roles []Role) []string {
	set := make(map[string]struct{})
	for _, r := range roles {
		for _, s := range r.Scopes {
			set[s] = struct{}{}
		}
	}
	union := make([]string, 0, len(set))
	for s := range set {
		union = append(union, s)
	}
	sort.Strings(union)
	return union
}

// SplitRefreshToken separates the opaque client string into record id and
// secret.
func SplitRefreshToken(raw string) (id, secret string, err error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(raw), ".")
	if !ok || id == "" || secret == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return id, secret, nil
}

// VerifyRefreshSecret compares the stored hash with the presented secret in
// constant time.
func VerifyRefreshSecret(storedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	return subtleCompare(storedHash, hex.EncodeToString(sum[:]))
}

func subtleCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
