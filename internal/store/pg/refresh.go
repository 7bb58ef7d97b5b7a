package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"moldash.org/internal/auth"
)

type refreshStore struct{ db *sql.DB }

const refreshColumns = `id, subject, coalesce(organization_id, ''), family_id, coalesce(parent_id, ''),
	secret_hash, coalesce(fingerprint, ''), issued_at, expires_at, status, revoked_at`

func (s *refreshStore) Create(ctx context.Context, rec *auth.RefreshTokenRecord) error {
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens(id, subject, organization_id, family_id, parent_id,
			secret_hash, fingerprint, issued_at, expires_at, status)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.Subject, nullable(rec.OrganizationID), rec.FamilyID, nullable(rec.ParentID),
		rec.SecretHash, nullable(rec.Fingerprint), rec.IssuedAt, rec.ExpiresAt, rec.Status,
	)
	return err
}

func (s *refreshStore) Find(ctx context.Context, id string) (*auth.RefreshTokenRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+refreshColumns+` from refresh_tokens where id=$1`, id)
	var rec auth.RefreshTokenRecord
	err := row.Scan(&rec.ID, &rec.Subject, &rec.OrganizationID, &rec.FamilyID, &rec.ParentID,
		&rec.SecretHash, &rec.Fingerprint, &rec.IssuedAt, &rec.ExpiresAt, &rec.Status, &rec.RevokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Rotate performs the active→rotated transition and inserts the child in
// one transaction. The conditional update is the compare-and-swap: of two
// concurrent callers exactly one sees a row change, the other gets
// ErrConflict.
func (s *refreshStore) Rotate(ctx context.Context, id string, child *auth.RefreshTokenRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update refresh_tokens set status=$1 where id=$2 and status=$3`,
		auth.RefreshStatusRotated, id, auth.RefreshStatusActive,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `
		insert into refresh_tokens(id, subject, organization_id, family_id, parent_id,
			secret_hash, fingerprint, issued_at, expires_at, status)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		child.ID, child.Subject, nullable(child.OrganizationID), child.FamilyID, nullable(child.ParentID),
		child.SecretHash, nullable(child.Fingerprint), child.IssuedAt, child.ExpiresAt, child.Status,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *refreshStore) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set status=$1, revoked_at=$2 where family_id=$3 and status <> $1`,
		auth.RefreshStatusRevoked, at, familyID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *refreshStore) RevokeAllForSubject(ctx context.Context, subject string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set status=$1, revoked_at=$2 where subject=$3 and status <> $1`,
		auth.RefreshStatusRevoked, at, subject,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *refreshStore) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where status <> $1 and expires_at < $2`,
		auth.RefreshStatusActive, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
