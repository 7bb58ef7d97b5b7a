package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"moldash.org/internal/auth"
	"moldash.org/internal/jobs"
)

// Store wraps the shared connection pool and hands out the typed
// sub-stores. It is the only place SQL for the auth core lives.
type Store struct {
	db *sql.DB
}

var _ auth.Store = (*Store)(nil)

// Open connects the pool with tuned defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle. Used by tests with sqlmock.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping backs the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Organizations() auth.OrganizationStore { return &orgStore{db: s.db} }
func (s *Store) Users() auth.UserStore                 { return &userStore{db: s.db} }
func (s *Store) Roles() auth.RoleStore                 { return &roleStore{db: s.db} }
func (s *Store) RefreshTokens() auth.RefreshTokenStore { return &refreshStore{db: s.db} }
func (s *Store) Audit() auth.AuditStore                { return &auditStore{db: s.db} }

// Jobs returns the tenant-scoped docking job store.
func (s *Store) Jobs() jobs.Store { return &jobStore{db: s.db} }
