package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded Store used by tests and DSN-less dev runs.
// Rotate holds the write lock across the check and the child insert, which
// gives the same winner-takes-all semantics as the SQL conditional update.
type MemoryStore struct {
	mu        sync.RWMutex
	orgs      map[string]*Organization
	users     map[string]*User
	roles     map[string]*Role
	userRoles map[string][]string
	tokens    map[string]*RefreshTokenRecord
	audits    []AuditEvent
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:      make(map[string]*Organization),
		users:     make(map[string]*User),
		roles:     make(map[string]*Role),
		userRoles: make(map[string][]string),
		tokens:    make(map[string]*RefreshTokenRecord),
	}
}

func (s *MemoryStore) Organizations() OrganizationStore { return (*memoryOrgs)(s) }
func (s *MemoryStore) Users() UserStore                 { return (*memoryUsers)(s) }
func (s *MemoryStore) Roles() RoleStore                 { return (*memoryRoles)(s) }
func (s *MemoryStore) RefreshTokens() RefreshTokenStore { return (*memoryTokens)(s) }
func (s *MemoryStore) Audit() AuditStore                { return (*memoryAudit)(s) }

// AuditEvents returns a copy of the appended events. Test helper.
func (s *MemoryStore) AuditEvents() []AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEvent, len(s.audits))
	copy(out, s.audits)
	return out
}

type memoryOrgs MemoryStore

func (s *memoryOrgs) Create(_ context.Context, org *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[org.ID]; ok {
		return ErrConflict
	}
	cp := *org
	s.orgs[org.ID] = &cp
	return nil
}

func (s *memoryOrgs) Find(_ context.Context, id string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

type memoryUsers MemoryStore

func (s *memoryUsers) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrConflict
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memoryUsers) Find(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryUsers) FindByEmail(_ context.Context, organizationID, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) && u.OrganizationID == organizationID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

type memoryRoles MemoryStore

func (s *memoryRoles) Create(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; ok {
		return ErrConflict
	}
	cp := *role
	cp.Scopes = append([]string(nil), role.Scopes...)
	s.roles[role.ID] = &cp
	return nil
}

func (s *memoryRoles) Assign(_ context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return ErrNotFound
	}
	for _, id := range s.userRoles[userID] {
		if id == roleID {
			return nil
		}
	}
	s.userRoles[userID] = append(s.userRoles[userID], roleID)
	return nil
}

func (s *memoryRoles) RolesForUser(_ context.Context, userID string) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Role
	for _, roleID := range s.userRoles[userID] {
		if role, ok := s.roles[roleID]; ok {
			cp := *role
			cp.Scopes = append([]string(nil), role.Scopes...)
			out = append(out, cp)
		}
	}
	return out, nil
}

type memoryTokens MemoryStore

func (s *memoryTokens) Create(_ context.Context, rec *RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[rec.ID]; ok {
		return ErrConflict
	}
	cp := *rec
	s.tokens[rec.ID] = &cp
	return nil
}

func (s *memoryTokens) Find(_ context.Context, id string) (*RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memoryTokens) Rotate(_ context.Context, id string, child *RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != RefreshStatusActive {
		return ErrConflict
	}
	rec.Status = RefreshStatusRotated
	cp := *child
	s.tokens[child.ID] = &cp
	return nil
}

func (s *memoryTokens) RevokeFamily(_ context.Context, familyID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.tokens {
		if rec.FamilyID == familyID && rec.Status != RefreshStatusRevoked {
			rec.Status = RefreshStatusRevoked
			t := at
			rec.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

func (s *memoryTokens) RevokeAllForSubject(_ context.Context, subject string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.tokens {
		if rec.Subject == subject && rec.Status != RefreshStatusRevoked {
			rec.Status = RefreshStatusRevoked
			t := at
			rec.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

func (s *memoryTokens) PurgeTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.tokens {
		if rec.Status != RefreshStatusActive && rec.ExpiresAt.Before(cutoff) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

type memoryAudit MemoryStore

func (s *memoryAudit) Append(_ context.Context, event *AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *event)
	return nil
}
