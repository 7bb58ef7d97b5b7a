package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"moldash.org/internal/jobs"
	"moldash.org/internal/tenant"
)

func jobRows(t time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "organization_id", "name", "engine", "status", "created_by", "created_at", "updated_at"}).
		AddRow("job-1", "org-acme", "run", "vina", jobs.StatusPending, "alice", t, t)
}

func TestJobFindAppliesOrgPredicate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	scope := tenant.Scope{Subject: "alice", OrganizationID: "org-acme"}

	mock.ExpectQuery("from docking_jobs where id=(.+) and organization_id=").
		WithArgs("job-1", "org-acme").
		WillReturnRows(jobRows(now))

	job, err := store.Jobs().Find(context.Background(), scope, "job-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if job.OrganizationID != "org-acme" {
		t.Errorf("org = %q", job.OrganizationID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestJobFindSpanningOmitsPredicate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	scope := tenant.Scope{Subject: "root-1", Root: true}

	mock.ExpectQuery("from docking_jobs where id=\\$1$").
		WithArgs("job-1").
		WillReturnRows(jobRows(now))

	if _, err := store.Jobs().Find(context.Background(), scope, "job-1"); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestJobCreateRejectsForeignOrg(t *testing.T) {
	store, _ := newMockStore(t)
	scope := tenant.Scope{Subject: "alice", OrganizationID: "org-acme"}

	err := store.Jobs().Create(context.Background(), scope, &jobs.Job{ID: "job-x", OrganizationID: "org-beta"})
	if !errors.Is(err, tenant.ErrCrossTenantViolation) {
		t.Fatalf("Create err = %v, want ErrCrossTenantViolation", err)
	}
}

func TestJobSetStatusScoped(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	scope := tenant.Scope{Subject: "alice", OrganizationID: "org-acme"}

	mock.ExpectQuery("update docking_jobs set status=(.+) and organization_id=").
		WithArgs(jobs.StatusCanceled, sqlmock.AnyArg(), "job-1", "org-acme").
		WillReturnRows(jobRows(now))

	if _, err := store.Jobs().SetStatus(context.Background(), scope, "job-1", jobs.StatusCanceled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	mock.ExpectQuery("update docking_jobs set status=").
		WithArgs(jobs.StatusCanceled, sqlmock.AnyArg(), "missing", "org-acme").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Jobs().SetStatus(context.Background(), scope, "missing", jobs.StatusCanceled)
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("SetStatus err = %v, want ErrNotFound", err)
	}
}
