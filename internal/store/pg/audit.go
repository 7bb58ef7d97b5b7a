package pg

import (
	"context"
	"database/sql"

	"moldash.org/internal/auth"
	"moldash.org/internal/ids"
)

type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, event *auth.AuditEvent) error {
	if event.ID == "" {
		event.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_events(id, subject, organization_id, event, outcome, detail, occurred_at)
		values($1,$2,$3,$4,$5,$6,$7)`,
		event.ID, nullable(event.Subject), nullable(event.OrganizationID),
		event.Event, event.Outcome, nullable(event.Detail), event.OccurredAt,
	)
	return err
}
