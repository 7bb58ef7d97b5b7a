package jobs

import (
	"context"
	"errors"
	"testing"

	"moldash.org/internal/tenant"
)

var (
	acme = tenant.Scope{Subject: "alice", OrganizationID: "org-acme"}
	beta = tenant.Scope{Subject: "bob", OrganizationID: "org-beta"}
	root = tenant.Scope{Subject: "root-1", Root: true}
)

func newTestService() *Service {
	return NewService(NewMemoryStore())
}

func TestSubmit(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	job, err := svc.Submit(ctx, acme, "lysozyme screen", "GNINA")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Engine != EngineGnina {
		t.Errorf("engine = %q, want gnina", job.Engine)
	}
	if job.Status != StatusPending {
		t.Errorf("status = %q, want pending", job.Status)
	}
	if job.OrganizationID != "org-acme" || job.CreatedBy != "alice" {
		t.Errorf("attribution = %q/%q", job.OrganizationID, job.CreatedBy)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Submit(ctx, acme, "", "vina"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty name err = %v", err)
	}
	if _, err := svc.Submit(ctx, acme, "run", "autodock4"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown engine err = %v", err)
	}
	// A spanning scope owns no organization and cannot submit.
	if _, err := svc.Submit(ctx, root, "run", "vina"); !errors.Is(err, tenant.ErrCrossTenantViolation) {
		t.Errorf("spanning submit err = %v", err)
	}
}

func TestOrganizationIsolation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	mine, err := svc.Submit(ctx, acme, "acme run", "vina")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	theirs, err := svc.Submit(ctx, beta, "beta run", "smina")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Foreign rows are indistinguishable from absent rows.
	if _, err := svc.Get(ctx, acme, theirs.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-org Get err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Cancel(ctx, beta, mine.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-org Cancel err = %v, want ErrNotFound", err)
	}

	list, err := svc.List(ctx, acme)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Errorf("acme list = %v", list)
	}

	// The spanning root scope sees everything.
	all, err := svc.List(ctx, root)
	if err != nil {
		t.Fatalf("List spanning: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("spanning list size = %d, want 2", len(all))
	}

	// A root scope pinned to one organization behaves like a member there.
	pinned := tenant.Scope{Subject: "root-1", OrganizationID: "org-beta", Root: true}
	if _, err := svc.Get(ctx, pinned, mine.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("pinned root cross-org Get err = %v", err)
	}
	if _, err := svc.Get(ctx, pinned, theirs.ID); err != nil {
		t.Errorf("pinned root same-org Get: %v", err)
	}
}

func TestCancel(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	job, err := svc.Submit(ctx, acme, "run", "vina")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	canceled, err := svc.Cancel(ctx, acme, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != StatusCanceled {
		t.Errorf("status = %q, want canceled", canceled.Status)
	}

	if _, err := svc.Cancel(ctx, acme, job.ID); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("second cancel err = %v, want ErrNotCancelable", err)
	}
}

func TestCancelRunning(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	job, err := svc.Submit(ctx, acme, "run", "vina")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := store.SetStatus(ctx, acme, job.ID, StatusRunning); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := svc.Cancel(ctx, acme, job.ID); err != nil {
		t.Fatalf("Cancel running: %v", err)
	}

	done, err := svc.Submit(ctx, acme, "done", "vina")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := store.SetStatus(ctx, acme, done.ID, StatusCompleted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := svc.Cancel(ctx, acme, done.ID); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("cancel completed err = %v, want ErrNotCancelable", err)
	}
}
