package pricing

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) FindRate(ctx context.Context, tenantID string, at time.Time) (TenantRate, bool, error) {
	const q = `
SELECT id, tenant_id, billed_rate_per_minute, platform_cost_per_minute, effective_from, effective_to, created_at
FROM tenant_rates
WHERE tenant_id = $1
  AND effective_from <= $2
  AND (effective_to IS NULL OR effective_to > $2)
ORDER BY effective_from DESC
LIMIT 1
`
	var (
		tr TenantRate
		to sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, tenantID, at).Scan(
		&tr.ID,
		&tr.TenantID,
		&tr.BilledRatePerMinute,
		&tr.PlatformCostPerMinute,
		&tr.EffectiveFrom,
		&to,
		&tr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TenantRate{}, false, nil
		}
		return TenantRate{}, false, err
	}
	if to.Valid {
		t := to.Time
		tr.EffectiveTo = &t
	}
	return tr, true, nil
}

func (r *PostgresRepo) InsertRate(ctx context.Context, tr TenantRate) error {
	const q = `
INSERT INTO tenant_rates (id, tenant_id, billed_rate_per_minute, platform_cost_per_minute, effective_from, effective_to, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q,
		tr.ID,
		tr.TenantID,
		tr.BilledRatePerMinute,
		tr.PlatformCostPerMinute,
		tr.EffectiveFrom,
		tr.EffectiveTo,
		tr.CreatedAt,
	)
	return err
}
