package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"outbound-platform/pkg/utils"
)

// PostgresStore keeps controls in campaign_controls. Days are a smallint bitmask and
// times are minutes since midnight.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const controlColumns = `tenant_id, status, schedule_enabled, schedule_days, schedule_start_minute, schedule_end_minute,
timezone, daily_spend_limit, daily_call_limit, bypass_restrictions, queue_length, run_token, started_at,
dispatch_confirmed_at, last_completed_run_token, last_calls_made, last_auto_start_date, updated_at`

func (s *PostgresStore) Get(ctx context.Context, tenantID string) (Control, error) {
	q := `SELECT ` + controlColumns + ` FROM campaign_controls WHERE tenant_id = $1`
	c, err := scanControl(s.db.QueryRowContext(ctx, q, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultControl(tenantID), nil
	}
	if err != nil {
		return Control{}, fmt.Errorf("get campaign control: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Update(ctx context.Context, tenantID string, fn func(*Control) error) (Control, error) {
	var out Control
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockControl(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		c.TenantID = tenantID
		if err := writeControl(ctx, tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return Control{}, err
	}
	return out, nil
}

func lockControl(ctx context.Context, tx *sql.Tx, tenantID string) (Control, error) {
	d := DefaultControl(tenantID)
	const ensure = `
INSERT INTO campaign_controls (tenant_id, status, schedule_days, schedule_start_minute, schedule_end_minute,
    timezone, daily_spend_limit, daily_call_limit, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (tenant_id) DO NOTHING
`
	_, err := tx.ExecContext(ctx, ensure,
		d.TenantID,
		string(d.Status),
		int16(d.ScheduleDays),
		int(d.ScheduleStartTime),
		int(d.ScheduleEndTime),
		d.Timezone,
		d.DailySpendLimit,
		d.DailyCallLimit,
	)
	if err != nil {
		return Control{}, fmt.Errorf("ensure campaign control: %w", err)
	}

	q := `SELECT ` + controlColumns + ` FROM campaign_controls WHERE tenant_id = $1 FOR UPDATE`
	c, err := scanControl(tx.QueryRowContext(ctx, q, tenantID))
	if err != nil {
		return Control{}, fmt.Errorf("lock campaign control: %w", err)
	}
	return c, nil
}

func writeControl(ctx context.Context, tx *sql.Tx, c Control) error {
	const q = `
UPDATE campaign_controls SET
    status = $2,
    schedule_enabled = $3,
    schedule_days = $4,
    schedule_start_minute = $5,
    schedule_end_minute = $6,
    timezone = $7,
    daily_spend_limit = $8,
    daily_call_limit = $9,
    bypass_restrictions = $10,
    queue_length = $11,
    run_token = $12,
    started_at = $13,
    dispatch_confirmed_at = $14,
    last_completed_run_token = $15,
    last_calls_made = $16,
    last_auto_start_date = $17,
    updated_at = $18
WHERE tenant_id = $1
`
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, q,
		c.TenantID,
		string(c.Status),
		c.ScheduleEnabled,
		int16(c.ScheduleDays),
		int(c.ScheduleStartTime),
		int(c.ScheduleEndTime),
		c.Timezone,
		c.DailySpendLimit,
		c.DailyCallLimit,
		c.BypassRestrictions,
		c.QueueLength,
		c.RunToken,
		nullTime(c.StartedAt),
		nullTime(c.DispatchConfirmedAt),
		c.LastCompletedRunToken,
		c.LastCallsMade,
		c.LastAutoStartDate,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("write campaign control: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListScheduled(ctx context.Context) ([]Control, error) {
	q := `SELECT ` + controlColumns + ` FROM campaign_controls
WHERE schedule_enabled AND status = 'stopped'
ORDER BY tenant_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Control
	for rows.Next() {
		c, err := scanControl(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `
SELECT tenant_id FROM campaign_controls
WHERE status = 'running' AND dispatch_confirmed_at IS NULL AND started_at < $1
ORDER BY tenant_id
`
	rows, err := s.db.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanControl(row rowScanner) (Control, error) {
	var (
		c          Control
		days       int16
		start, end int
		startedAt  sql.NullTime
		confirmed  sql.NullTime
	)
	err := row.Scan(
		&c.TenantID,
		&c.Status,
		&c.ScheduleEnabled,
		&days,
		&start,
		&end,
		&c.Timezone,
		&c.DailySpendLimit,
		&c.DailyCallLimit,
		&c.BypassRestrictions,
		&c.QueueLength,
		&c.RunToken,
		&startedAt,
		&confirmed,
		&c.LastCompletedRunToken,
		&c.LastCallsMade,
		&c.LastAutoStartDate,
		&c.UpdatedAt,
	)
	if err != nil {
		return Control{}, err
	}
	c.ScheduleDays = Weekdays(days)
	c.ScheduleStartTime = TimeOfDay(start)
	c.ScheduleEndTime = TimeOfDay(end)
	if startedAt.Valid {
		t := startedAt.Time
		c.StartedAt = &t
	}
	if confirmed.Valid {
		t := confirmed.Time
		c.DispatchConfirmedAt = &t
	}
	return c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
