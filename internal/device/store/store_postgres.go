package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qrpass/internal/device/models"
	"qrpass/internal/sentinel"
)

// PostgresStore persists devices in the devices table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const deviceColumns = `device_id, status, model, manufacturer, platform, os_version,
	registered_at, last_active_at, approved_at, rejected_reason`

func (s *PostgresStore) Get(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`
	d, err := scanDevice(s.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) Put(ctx context.Context, d *models.Device) error {
	if d == nil {
		return fmt.Errorf("device is required")
	}
	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (device_id) DO UPDATE SET
			status = EXCLUDED.status,
			model = EXCLUDED.model,
			manufacturer = EXCLUDED.manufacturer,
			platform = EXCLUDED.platform,
			os_version = EXCLUDED.os_version,
			last_active_at = EXCLUDED.last_active_at,
			approved_at = EXCLUDED.approved_at,
			rejected_reason = EXCLUDED.rejected_reason
	`
	var approvedAt sql.NullTime
	if d.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *d.ApprovedAt, Valid: true}
	}
	var rejectedReason sql.NullString
	if d.RejectedReason != "" {
		rejectedReason = sql.NullString{String: d.RejectedReason, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		d.DeviceID,
		string(d.Status),
		d.Model,
		d.Manufacturer,
		d.Platform,
		d.OSVersion,
		d.RegisteredAt,
		d.LastActiveAt,
		approvedAt,
		rejectedReason,
	)
	if err != nil {
		return fmt.Errorf("put device: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE status = $1 ORDER BY registered_at ASC`
	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return out, nil
}

// TouchLastActive only moves last_active_at forward.
func (s *PostgresStore) TouchLastActive(ctx context.Context, deviceID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET last_active_at = GREATEST(last_active_at, $2) WHERE device_id = $1`,
		deviceID, at,
	)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch device rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var d models.Device
	var status string
	var approvedAt sql.NullTime
	var rejectedReason sql.NullString
	if err := row.Scan(
		&d.DeviceID,
		&status,
		&d.Model,
		&d.Manufacturer,
		&d.Platform,
		&d.OSVersion,
		&d.RegisteredAt,
		&d.LastActiveAt,
		&approvedAt,
		&rejectedReason,
	); err != nil {
		return nil, err
	}
	d.Status = models.Status(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		d.ApprovedAt = &t
	}
	d.RejectedReason = rejectedReason.String
	return &d, nil
}
