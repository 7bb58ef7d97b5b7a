package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"moldash.org/internal/ids"
	"moldash.org/internal/tenant"
)

var (
	ErrNotFound      = errors.New("jobs: not found")
	ErrInvalidInput  = errors.New("jobs: invalid input")
	ErrNotCancelable = errors.New("jobs: job is not cancelable")
)

// Docking engines the platform can schedule.
const (
	EngineGnina = "gnina"
	EngineVina  = "vina"
	EngineSmina = "smina"
)

// Job execution statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

var validEngines = map[string]struct{}{
	EngineGnina: {},
	EngineVina:  {},
	EngineSmina: {},
}

// Job is a docking job submission. Scheduling and engine execution live
// elsewhere; this record only exists so organization-scoped reads and
// writes have something real to protect.
type Job struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Engine         string    `json:"engine"`
	Status         string    `json:"status"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Store persists jobs. Every method takes the caller's bound tenant scope
// and must apply it as a hard predicate before touching any row.
type Store interface {
	Create(ctx context.Context, scope tenant.Scope, job *Job) error
	Find(ctx context.Context, scope tenant.Scope, id string) (*Job, error)
	List(ctx context.Context, scope tenant.Scope) ([]Job, error)
	SetStatus(ctx context.Context, scope tenant.Scope, id, status string) (*Job, error)
}

// Service validates submissions and delegates to the scoped store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs the job service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Submit creates a pending job inside the bound organization. A spanning
// scope cannot submit: a job always belongs to exactly one organization.
func (s *Service) Submit(ctx context.Context, scope tenant.Scope, name, engine string) (*Job, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	engine = strings.TrimSpace(strings.ToLower(engine))
	if _, ok := validEngines[engine]; !ok {
		return nil, ErrInvalidInput
	}
	if scope.OrganizationID == "" {
		return nil, tenant.ErrCrossTenantViolation
	}
	now := s.now().UTC()
	job := &Job{
		ID:             ids.New(),
		OrganizationID: scope.OrganizationID,
		Name:           name,
		Engine:         engine,
		Status:         StatusPending,
		CreatedBy:      scope.Subject,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, scope, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns one job visible inside the bound scope.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, id string) (*Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	return s.store.Find(ctx, scope, id)
}

// List returns the jobs visible inside the bound scope.
func (s *Service) List(ctx context.Context, scope tenant.Scope) ([]Job, error) {
	return s.store.List(ctx, scope)
}

// Cancel moves a pending or running job to canceled.
func (s *Service) Cancel(ctx context.Context, scope tenant.Scope, id string) (*Job, error) {
	job, err := s.store.Find(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusPending && job.Status != StatusRunning {
		return nil, ErrNotCancelable
	}
	return s.store.SetStatus(ctx, scope, id, StatusCanceled)
}
