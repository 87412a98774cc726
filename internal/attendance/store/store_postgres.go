package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"qrpass/internal/attendance/models"
	"qrpass/internal/sentinel"
)

const uniqueViolation = "23505"

// PostgresLedger stores punches in attendance_punches. The table has no
// uniqueness on (owner, credential, day); duplicates from concurrent scans
// are left for the reconciler.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const punchColumns = `id, owner_mobile, owner_name, scan_time, credential_id,
	scanning_device_id, location, scanner_info`

func (l *PostgresLedger) Append(ctx context.Context, p *models.Punch) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("punch id is required")
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO attendance_punches (`+punchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID,
		p.OwnerMobile,
		p.OwnerName,
		p.ScanTime,
		p.CredentialID,
		p.ScanningDeviceID,
		nullString(p.Location),
		p.ScannerInfo,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("append punch: %w", err)
	}
	return nil
}

func (l *PostgresLedger) FindByOwnerAndCredentialSince(ctx context.Context, mobile, credentialID string, since time.Time) ([]*models.Punch, error) {
	return l.list(ctx, `SELECT `+punchColumns+` FROM attendance_punches
		WHERE owner_mobile = $1 AND credential_id = $2 AND scan_time >= $3
		ORDER BY scan_time DESC`, mobile, credentialID, since)
}

func (l *PostgresLedger) FindByOwnerForDay(ctx context.Context, mobile string, day time.Time) ([]*models.Punch, error) {
	start, end := models.DayBounds(day)
	return l.list(ctx, `SELECT `+punchColumns+` FROM attendance_punches
		WHERE owner_mobile = $1 AND scan_time >= $2 AND scan_time < $3
		ORDER BY scan_time DESC`, mobile, start, end)
}

func (l *PostgresLedger) FindAllForDay(ctx context.Context, day time.Time) ([]*models.Punch, error) {
	start, end := models.DayBounds(day)
	return l.list(ctx, `SELECT `+punchColumns+` FROM attendance_punches
		WHERE scan_time >= $1 AND scan_time < $2
		ORDER BY scan_time DESC`, start, end)
}

func (l *PostgresLedger) FindByOwnerSince(ctx context.Context, mobile string, since time.Time) ([]*models.Punch, error) {
	return l.list(ctx, `SELECT `+punchColumns+` FROM attendance_punches
		WHERE owner_mobile = $1 AND scan_time >= $2
		ORDER BY scan_time DESC`, mobile, since)
}

func (l *PostgresLedger) ListRecent(ctx context.Context, limit int) ([]*models.Punch, error) {
	return l.list(ctx, `SELECT `+punchColumns+` FROM attendance_punches
		ORDER BY scan_time DESC LIMIT $1`, limit)
}

func (l *PostgresLedger) Delete(ctx context.Context, punchID string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM attendance_punches WHERE id = $1`, punchID)
	if err != nil {
		return fmt.Errorf("delete punch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete punch: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (l *PostgresLedger) list(ctx context.Context, query string, args ...any) ([]*models.Punch, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query punches: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Punch, 0)
	for rows.Next() {
		var p models.Punch
		var location sql.NullString
		if err := rows.Scan(
			&p.ID,
			&p.OwnerMobile,
			&p.OwnerName,
			&p.ScanTime,
			&p.CredentialID,
			&p.ScanningDeviceID,
			&location,
			&p.ScannerInfo,
		); err != nil {
			return nil, fmt.Errorf("scan punch: %w", err)
		}
		p.Location = location.String
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate punches: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
