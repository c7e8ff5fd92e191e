package leads

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"outbound-platform/pkg/utils"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const leadColumns = `id, tenant_id, name, phone, status, is_qualified, call_attempts_today, last_called_at, created_at, updated_at`

// callablePredicate mirrors Lead.Callable. $1 is tenant_id, $2 the attempt cap.
const callablePredicate = `
tenant_id = $1
AND is_qualified
AND status IN ('new', 'callback_later', 'unclassified')
AND call_attempts_today < $2`

func (r *PostgresRepo) Create(ctx context.Context, l Lead) error {
	q := `INSERT INTO leads (` + leadColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.db.ExecContext(ctx, q,
		l.ID, l.TenantID, l.Name, l.Phone, l.Status, l.IsQualified,
		l.CallAttemptsToday, l.LastCalledAt, l.CreatedAt, l.UpdatedAt,
	)
	if utils.IsUniqueViolation(err) {
		return ErrInvalidArgument
	}
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, leadID string) (Lead, error) {
	q := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 AND id = $2`
	return scanLead(r.db.QueryRowContext(ctx, q, tenantID, leadID))
}

func (r *PostgresRepo) CountCallable(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE `+callablePredicate, tenantID, MaxAttemptsPerDay).Scan(&n)
	return n, err
}

func (r *PostgresRepo) ListCallable(ctx context.Context, tenantID string, limit int) ([]Lead, error) {
	q := `SELECT ` + leadColumns + ` FROM leads WHERE ` + callablePredicate + `
ORDER BY last_called_at ASC NULLS FIRST, created_at ASC
LIMIT $3`
	rows, err := r.db.QueryContext(ctx, q, tenantID, MaxAttemptsPerDay, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, tenantID, leadID string, u StatusUpdate, now time.Time) (Lead, error) {
	q := `
UPDATE leads
SET status = $3, is_qualified = COALESCE($4, is_qualified), updated_at = $5
WHERE tenant_id = $1 AND id = $2
RETURNING ` + leadColumns
	var qualified sql.NullBool
	if u.IsQualified != nil {
		qualified = sql.NullBool{Bool: *u.IsQualified, Valid: true}
	}
	return scanLead(r.db.QueryRowContext(ctx, q, tenantID, leadID, u.Status, qualified, now))
}

func (r *PostgresRepo) RecordAttempt(ctx context.Context, tenantID, leadID string, at time.Time) (Lead, error) {
	q := `
UPDATE leads
SET call_attempts_today = call_attempts_today + 1, last_called_at = $3, updated_at = $3
WHERE tenant_id = $1 AND id = $2
RETURNING ` + leadColumns
	return scanLead(r.db.QueryRowContext(ctx, q, tenantID, leadID, at))
}

func (r *PostgresRepo) ResetDailyAttempts(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE leads SET call_attempts_today = 0 WHERE call_attempts_today <> 0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var (
		l          Lead
		lastCalled sql.NullTime
	)
	err := row.Scan(
		&l.ID,
		&l.TenantID,
		&l.Name,
		&l.Phone,
		&l.Status,
		&l.IsQualified,
		&l.CallAttemptsToday,
		&lastCalled,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	if lastCalled.Valid {
		t := lastCalled.Time
		l.LastCalledAt = &t
	}
	return l, nil
}
