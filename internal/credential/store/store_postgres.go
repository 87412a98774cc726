package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"qrpass/internal/credential/models"
	"qrpass/internal/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists credentials in the credentials table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `id, owner_name, owner_mobile, created_at, expiry_duration_days,
	stored_status, usage_count, last_used_at, token, salt, issuing_device_id, version`

func (s *PostgresStore) Get(ctx context.Context, credentialID string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	c, err := scanCredential(s.db.QueryRowContext(ctx, query, credentialID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Put(ctx context.Context, c *models.Credential) error {
	if c == nil {
		return fmt.Errorf("credential is required")
	}
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			owner_name = EXCLUDED.owner_name,
			owner_mobile = EXCLUDED.owner_mobile,
			created_at = EXCLUDED.created_at,
			expiry_duration_days = EXCLUDED.expiry_duration_days,
			stored_status = EXCLUDED.stored_status,
			usage_count = EXCLUDED.usage_count,
			last_used_at = EXCLUDED.last_used_at,
			token = EXCLUDED.token,
			salt = EXCLUDED.salt,
			issuing_device_id = EXCLUDED.issuing_device_id,
			version = EXCLUDED.version
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.OwnerName,
		c.OwnerMobile,
		c.CreatedAt,
		c.ExpiryDurationDays,
		string(c.StoredStatus),
		c.UsageCount,
		nullTime(c.LastUsedAt),
		c.Token,
		c.Salt,
		c.IssuingDeviceID,
		c.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByOwner(ctx context.Context, mobile string) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE owner_mobile = $1 ORDER BY created_at DESC`
	return s.list(ctx, query, mobile)
}

func (s *PostgresStore) FindByStatusAndOwner(ctx context.Context, status models.StoredStatus, mobile string) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials
		WHERE owner_mobile = $1 AND stored_status = $2 ORDER BY created_at DESC`
	return s.list(ctx, query, mobile, string(status))
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE token = $1`
	c, err := scanCredential(s.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential by token: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) RecordUsage(ctx context.Context, credentialID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET usage_count = usage_count + 1, last_used_at = $2 WHERE id = $1`,
		credentialID, at)
	if err != nil {
		return fmt.Errorf("record credential usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record credential usage: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// SetStatus writes only stored_status so concurrent usage updates survive.
func (s *PostgresStore) SetStatus(ctx context.Context, credentialID string, status models.StoredStatus) (*models.Credential, error) {
	query := `UPDATE credentials SET stored_status = $2 WHERE id = $1 RETURNING ` + credentialColumns
	c, err := scanCredential(s.db.QueryRowContext(ctx, query, credentialID, string(status)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("set credential status: %w", err)
	}
	return c, nil
}

// ExtendExpiry adds days only while the row is still active. When no row
// matches, a follow-up read tells a missing credential from a disabled one.
func (s *PostgresStore) ExtendExpiry(ctx context.Context, credentialID string, days int) (*models.Credential, error) {
	query := `UPDATE credentials SET expiry_duration_days = expiry_duration_days + $2
		WHERE id = $1 AND stored_status = $3 RETURNING ` + credentialColumns
	c, err := scanCredential(s.db.QueryRowContext(ctx, query, credentialID, days, string(models.StoredActive)))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("extend credential: %w", err)
	}
	if _, err := s.Get(ctx, credentialID); err != nil {
		return nil, err
	}
	return nil, sentinel.ErrInvalidState
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Credential, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Credential, 0)
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var c models.Credential
	var status string
	var lastUsed sql.NullTime
	if err := row.Scan(
		&c.ID,
		&c.OwnerName,
		&c.OwnerMobile,
		&c.CreatedAt,
		&c.ExpiryDurationDays,
		&status,
		&c.UsageCount,
		&lastUsed,
		&c.Token,
		&c.Salt,
		&c.IssuingDeviceID,
		&c.Version,
	); err != nil {
		return nil, err
	}
	c.StoredStatus = models.StoredStatus(status)
	if lastUsed.Valid {
		t := lastUsed.Time
		c.LastUsedAt = &t
	}
	return &c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
