package auth

import (
	"errors"
	"sync"
)

// SigningKey is one HS256 key in the active set.
type SigningKey struct {
	Kid    string
	Secret []byte
}

// Keyring holds the process-wide signing key set. Encode always uses the
// current key; decode accepts any key still in the active set, so tokens
// signed before a rotation keep verifying until they expire. Reload swaps
// the whole set without a restart.
type Keyring struct {
	mu      sync.RWMutex
	current SigningKey
	active  map[string][]byte
}

// NewKeyring builds a keyring from ordered (kid, secret) pairs; the first
// pair becomes the current signing key.
func NewKeyring(pairs [][2]string) (*Keyring, error) {
	k := &Keyring{}
	if err := k.Reload(pairs); err != nil {
		return nil, err
	}
	return k, nil
}

// Reload replaces the active key set. Safe to call while decodes are in
// flight.
func (k *Keyring) Reload(pairs [][2]string) error {
	if len(pairs) == 0 {
		return errors.New("auth: keyring requires at least one key")
	}
	active := make(map[string][]byte, len(pairs))
	for _, p := range pairs {
		if p[0] == "" || p[1] == "" {
			return errors.New("auth: keyring entries require kid and secret")
		}
		active[p[0]] = []byte(p[1])
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.current = SigningKey{Kid: pairs[0][0], Secret: []byte(pairs[0][1])}
	k.active = active
	return nil
}

// Current returns the signing key used for encode.
func (k *Keyring) Current() SigningKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// Verification returns the secret for a kid if it is still active.
func (k *Keyring) Verification(kid string) ([]byte, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	secret, ok := k.active[kid]
	return secret, ok
}
