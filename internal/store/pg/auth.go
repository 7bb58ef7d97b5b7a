package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"moldash.org/internal/auth"
	"moldash.org/internal/ids"
)

// Organization store ------------------------------------------------------

type orgStore struct{ db *sql.DB }

func (s *orgStore) Create(ctx context.Context, org *auth.Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	if org.Status == "" {
		org.Status = auth.OrgStatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`insert into organizations(id, name, status) values($1,$2,$3)`,
		org.ID, org.Name, org.Status,
	)
	return err
}

func (s *orgStore) Find(ctx context.Context, id string) (*auth.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, status, created_at, updated_at from organizations where id=$1`, id)
	var org auth.Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Status, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.Status == "" {
		u.Status = auth.UserStatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, organization_id, email, password_hash, status) values($1,$2,$3,$4,$5)`,
		u.ID, nullable(u.OrganizationID), strings.ToLower(u.Email), u.PasswordHash, u.Status,
	)
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, coalesce(organization_id, ''), email, password_hash, status, created_at, updated_at
		from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, organizationID, email string) (*auth.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var row *sql.Row
	if organizationID == "" {
		row = s.db.QueryRowContext(ctx, `
			select id, coalesce(organization_id, ''), email, password_hash, status, created_at, updated_at
			from users where organization_id is null and email=$1`, email)
	} else {
		row = s.db.QueryRowContext(ctx, `
			select id, coalesce(organization_id, ''), email, password_hash, status, created_at, updated_at
			from users where organization_id=$1 and email=$2`, organizationID, email)
	}
	return scanUser(row)
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

func (s *roleStore) Create(ctx context.Context, role *auth.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`insert into roles(id, organization_id, name) values($1,$2,$3)`,
		role.ID, nullable(role.OrganizationID), role.Name,
	); err != nil {
		return err
	}
	for _, scope := range role.Scopes {
		if _, err := tx.ExecContext(ctx,
			`insert into role_scopes(role_id, scope) values($1,$2) on conflict do nothing`,
			role.ID, scope,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *roleStore) Assign(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		userID, roleID,
	)
	return err
}

func (s *roleStore) RolesForUser(ctx context.Context, userID string) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, coalesce(r.organization_id, ''), r.name, r.created_at, coalesce(rs.scope, '')
		from roles r
		join user_roles ur on ur.role_id = r.id
		left join role_scopes rs on rs.role_id = r.id
		where ur.user_id = $1
		order by r.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result  []auth.Role
		current *auth.Role
	)
	for rows.Next() {
		var (
			role  auth.Role
			scope string
		)
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.CreatedAt, &scope); err != nil {
			return nil, err
		}
		if current == nil || current.ID != role.ID {
			result = append(result, role)
			current = &result[len(result)-1]
		}
		if scope != "" {
			current.Scopes = append(current.Scopes, scope)
		}
	}
	return result, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
