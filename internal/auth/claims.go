package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTypeAccess = "access"

// Claims is the signed payload of an access token. Scopes carries the
// resolved permission union so request authorization needs no store round
// trip.
type Claims struct {
	OrganizationID string   `json:"org,omitempty"`
	Roles          []string `json:"roles"`
	Scopes         []string `json:"scopes,omitempty"`
	TokenType      string   `json:"token_type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens. Pure cryptographic transform; the
// keyring it holds is the only shared state.
type Codec struct {
	keyring  *Keyring
	issuer   string
	audience string
	now      func() time.Time
}

// NewCodec constructs a Codec bound to a keyring and issuer/audience pair.
func NewCodec(keyring *Keyring, issuer, audience string) *Codec {
	return &Codec{keyring: keyring, issuer: issuer, audience: audience, now: time.Now}
}

// WithClock overrides the codec time source. Test hook.
func (c *Codec) WithClock(fn func() time.Time) *Codec {
	if fn != nil {
		c.now = fn
	}
	return c
}

// Encode signs the claims with the current key, embedding its kid so decode
// can pick the right verification key after a rotation.
func (c *Codec) Encode(claims Claims) (string, error) {
	key := c.keyring.Current()
	claims.TokenType = tokenTypeAccess
	claims.Issuer = c.issuer
	claims.Audience = jwt.ClaimStrings{c.audience}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = key.Kid
	return token.SignedString(key.Secret)
}

// Decode verifies the signature against the active key set and validates the
// registered claims. Failures map onto the taxonomy: ErrMalformedToken for
// structural problems, ErrExpired once expires_at has elapsed,
// ErrInvalidSignature otherwise.
func (c *Codec) Decode(tokenString string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)
	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		secret, ok := c.keyring.Verification(kid)
		if !ok {
			return nil, ErrInvalidSignature
		}
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer),
			errors.Is(err, jwt.ErrTokenInvalidAudience),
			errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return Claims{}, ErrMalformedToken
		default:
			return Claims{}, ErrInvalidSignature
		}
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, ErrMalformedToken
	}
	if claims.Subject == "" {
		return Claims{}, ErrMalformedToken
	}
	return claims, nil
}
