package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists events into audit_events.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	return s.AppendWithID(ctx, uuid.New(), event)
}

// AppendWithID inserts event under id. A second insert with the same id is
// ignored, which makes redelivered records harmless.
func (s *PostgresStore) AppendWithID(ctx context.Context, id uuid.UUID, event Event) error {
	const query = `
		INSERT INTO audit_events (
			id, occurred_at, action, credential_id, owner_mobile,
			device_id, actor, decision, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		id,
		event.Timestamp,
		string(event.Action),
		event.CredentialID,
		event.OwnerMobile,
		event.DeviceID,
		event.Actor,
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByCredential returns a credential's history, oldest first.
func (s *PostgresStore) ListByCredential(ctx context.Context, credentialID string) ([]Event, error) {
	return s.list(ctx, `WHERE credential_id = $1`, credentialID)
}

// ListByDevice returns a device's history, oldest first.
func (s *PostgresStore) ListByDevice(ctx context.Context, deviceID string) ([]Event, error) {
	return s.list(ctx, `WHERE device_id = $1`, deviceID)
}

func (s *PostgresStore) list(ctx context.Context, where string, arg any) ([]Event, error) {
	query := `
		SELECT occurred_at, action, credential_id, owner_mobile,
		       device_id, actor, decision, reason, request_id
		FROM audit_events ` + where + `
		ORDER BY occurred_at, id`
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e      Event
			action string
		)
		if err := rows.Scan(&e.Timestamp, &action, &e.CredentialID, &e.OwnerMobile,
			&e.DeviceID, &e.Actor, &e.Decision, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
