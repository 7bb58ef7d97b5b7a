package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"moldash.org/internal/jobs"
	"moldash.org/internal/tenant"
)

// jobStore applies the bound tenant scope as a SQL predicate on every
// statement. A spanning (root, all-organizations) scope is the only case
// where the predicate is omitted.
type jobStore struct{ db *sql.DB }

var _ jobs.Store = (*jobStore)(nil)

const jobColumns = `id, organization_id, name, engine, status, created_by, created_at, updated_at`

func (s *jobStore) Create(ctx context.Context, scope tenant.Scope, job *jobs.Job) error {
	if !scope.AppliesTo(job.OrganizationID) {
		return tenant.ErrCrossTenantViolation
	}
	_, err := s.db.ExecContext(ctx, `
		insert into docking_jobs(id, organization_id, name, engine, status, created_by, created_at, updated_at)
		values($1,$2,$3,$4,$5,$6,$7,$8)`,
		job.ID, job.OrganizationID, job.Name, job.Engine, job.Status, job.CreatedBy, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *jobStore) Find(ctx context.Context, scope tenant.Scope, id string) (*jobs.Job, error) {
	var row *sql.Row
	if scope.Spanning() {
		row = s.db.QueryRowContext(ctx,
			`select `+jobColumns+` from docking_jobs where id=$1`, id)
	} else {
		row = s.db.QueryRowContext(ctx,
			`select `+jobColumns+` from docking_jobs where id=$1 and organization_id=$2`,
			id, scope.OrganizationID)
	}
	var job jobs.Job
	err := row.Scan(&job.ID, &job.OrganizationID, &job.Name, &job.Engine, &job.Status,
		&job.CreatedBy, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *jobStore) List(ctx context.Context, scope tenant.Scope) ([]jobs.Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if scope.Spanning() {
		rows, err = s.db.QueryContext(ctx,
			`select `+jobColumns+` from docking_jobs order by created_at desc`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`select `+jobColumns+` from docking_jobs where organization_id=$1 order by created_at desc`,
			scope.OrganizationID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []jobs.Job
	for rows.Next() {
		var job jobs.Job
		if err := rows.Scan(&job.ID, &job.OrganizationID, &job.Name, &job.Engine, &job.Status,
			&job.CreatedBy, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

func (s *jobStore) SetStatus(ctx context.Context, scope tenant.Scope, id, status string) (*jobs.Job, error) {
	var row *sql.Row
	now := time.Now().UTC()
	if scope.Spanning() {
		row = s.db.QueryRowContext(ctx, `
			update docking_jobs set status=$1, updated_at=$2 where id=$3
			returning `+jobColumns, status, now, id)
	} else {
		row = s.db.QueryRowContext(ctx, `
			update docking_jobs set status=$1, updated_at=$2 where id=$3 and organization_id=$4
			returning `+jobColumns, status, now, id, scope.OrganizationID)
	}
	var job jobs.Job
	err := row.Scan(&job.ID, &job.OrganizationID, &job.Name, &job.Engine, &job.Status,
		&job.CreatedBy, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}
