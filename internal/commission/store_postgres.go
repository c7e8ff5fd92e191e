package commission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"outbound-platform/pkg/utils"
)

// PostgresStore uses referrals, commission_plans, commission_payouts
// (UNIQUE (referrer_id, period_month)) and referrer_stats.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const referralColumns = `id, referrer_id, referee_id, code, status, credit_amount, created_at, completed_at, credited_at`

const payoutColumns = `id, referrer_id, period_month, amount, status, paid_at, paid_via, reference, created_at`

func (s *PostgresStore) CreateReferral(ctx context.Context, r Referral) error {
	const q = `
INSERT INTO referrals (id, referrer_id, referee_id, code, status, credit_amount, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := s.db.ExecContext(ctx, q, r.ID, r.ReferrerID, r.RefereeID, r.Code, string(r.Status), r.CreditAmount, r.CreatedAt)
	if utils.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) CompleteReferral(ctx context.Context, refereeID string, at time.Time) (Referral, bool, error) {
	q := `
UPDATE referrals SET status = 'completed', completed_at = $2
WHERE referee_id = $1 AND status = 'pending'
RETURNING ` + referralColumns
	r, err := scanReferral(s.db.QueryRowContext(ctx, q, refereeID, at))
	if err == nil {
		return r, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Referral{}, false, err
	}

	// not pending: return what is there, if anything
	r, err = scanReferral(s.db.QueryRowContext(ctx, `SELECT `+referralColumns+` FROM referrals WHERE referee_id = $1`, refereeID))
	if errors.Is(err, sql.ErrNoRows) {
		return Referral{}, false, nil
	}
	return r, false, err
}

func (s *PostgresStore) ListSettleable(ctx context.Context, snapshot, recurringSince time.Time) ([]Referral, error) {
	q := `SELECT ` + referralColumns + ` FROM referrals
WHERE completed_at <= $1
  AND (status = 'completed' OR (status = 'credited' AND $2::timestamptz IS NOT NULL AND completed_at >= $2))
ORDER BY completed_at`
	var since sql.NullTime
	if !recurringSince.IsZero() {
		since = sql.NullTime{Time: recurringSince, Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, q, snapshot, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPlans(ctx context.Context) ([]Plan, error) {
	const q = `SELECT referrer_id, type, flat_amount, recurring_amount, recurring_months FROM commission_plans`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		var p Plan
		var typ string
		if err := rows.Scan(&p.ReferrerID, &typ, &p.FlatAmount, &p.RecurringAmount, &p.RecurringMonths); err != nil {
			return nil, err
		}
		p.Type = PlanType(typ)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertPlan(ctx context.Context, p Plan) error {
	const q = `
INSERT INTO commission_plans (referrer_id, type, flat_amount, recurring_amount, recurring_months, updated_at)
VALUES ($1,$2,$3,$4,$5,now())
ON CONFLICT (referrer_id) DO UPDATE
SET type = EXCLUDED.type,
    flat_amount = EXCLUDED.flat_amount,
    recurring_amount = EXCLUDED.recurring_amount,
    recurring_months = EXCLUDED.recurring_months,
    updated_at = EXCLUDED.updated_at
`
	_, err := s.db.ExecContext(ctx, q, p.ReferrerID, string(p.Type), p.FlatAmount, p.RecurringAmount, p.RecurringMonths)
	return err
}

func (s *PostgresStore) CreatePayout(ctx context.Context, p Payout, creditReferralIDs []string, at time.Time) (bool, error) {
	inserted := false
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const ins = `
INSERT INTO commission_payouts (id, referrer_id, period_month, amount, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (referrer_id, period_month) DO NOTHING
`
		res, err := tx.ExecContext(ctx, ins, p.ID, p.ReferrerID, p.PeriodMonth, p.Amount, string(p.Status), p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		inserted = true
		if len(creditReferralIDs) == 0 {
			return nil
		}

		const credit = `
UPDATE referrals SET status = 'credited', credited_at = $2
WHERE id = ANY($1) AND referrer_id = $3 AND status = 'completed'
`
		if _, err := tx.ExecContext(ctx, credit, creditReferralIDs, at, p.ReferrerID); err != nil {
			return fmt.Errorf("credit referrals: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *PostgresStore) MarkPaid(ctx context.Context, referrerID, method, reference string, at time.Time) (int64, error) {
	const q = `
UPDATE commission_payouts
SET status = 'paid', paid_at = $2, paid_via = $3, reference = $4
WHERE referrer_id = $1 AND status = 'pending'
`
	res, err := s.db.ExecContext(ctx, q, referrerID, at, method, reference)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) ListPayouts(ctx context.Context, referrerID string) ([]Payout, error) {
	q := `SELECT ` + payoutColumns + ` FROM commission_payouts WHERE referrer_id = $1 ORDER BY period_month DESC`
	rows, err := s.db.QueryContext(ctx, q, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Payout, 0)
	for rows.Next() {
		var (
			p      Payout
			status string
			paidAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.ReferrerID, &p.PeriodMonth, &p.Amount, &status, &paidAt, &p.PaidVia, &p.Reference, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Status = PayoutStatus(status)
		if paidAt.Valid {
			t := paidAt.Time
			p.PaidAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RefreshStats derives stats in one statement and upserts referrer_stats.
func (s *PostgresStore) RefreshStats(ctx context.Context, referrerID string, at time.Time) (Stats, error) {
	const q = `
INSERT INTO referrer_stats (referrer_id, lifetime_referrals, completed_referrals, total_earned, pending_payout, paid_out, updated_at)
SELECT $1,
    (SELECT count(*) FROM referrals WHERE referrer_id = $1),
    (SELECT count(*) FROM referrals WHERE referrer_id = $1 AND status <> 'pending'),
    COALESCE((SELECT sum(amount) FROM commission_payouts WHERE referrer_id = $1), 0),
    COALESCE((SELECT sum(amount) FROM commission_payouts WHERE referrer_id = $1 AND status = 'pending'), 0),
    COALESCE((SELECT sum(amount) FROM commission_payouts WHERE referrer_id = $1 AND status = 'paid'), 0),
    $2
ON CONFLICT (referrer_id) DO UPDATE
SET lifetime_referrals = EXCLUDED.lifetime_referrals,
    completed_referrals = EXCLUDED.completed_referrals,
    total_earned = EXCLUDED.total_earned,
    pending_payout = EXCLUDED.pending_payout,
    paid_out = EXCLUDED.paid_out,
    updated_at = EXCLUDED.updated_at
RETURNING referrer_id, lifetime_referrals, completed_referrals, total_earned, pending_payout, paid_out, updated_at
`
	var st Stats
	err := s.db.QueryRowContext(ctx, q, referrerID, at).Scan(
		&st.ReferrerID,
		&st.LifetimeReferrals,
		&st.CompletedReferrals,
		&st.TotalEarned,
		&st.PendingPayout,
		&st.PaidOut,
		&st.UpdatedAt,
	)
	return st, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReferral(row rowScanner) (Referral, error) {
	var (
		r         Referral
		status    string
		completed sql.NullTime
		credited  sql.NullTime
	)
	err := row.Scan(&r.ID, &r.ReferrerID, &r.RefereeID, &r.Code, &status, &r.CreditAmount, &r.CreatedAt, &completed, &credited)
	if err != nil {
		return Referral{}, err
	}
	r.Status = ReferralStatus(status)
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	if credited.Valid {
		t := credited.Time
		r.CreditedAt = &t
	}
	return r, nil
}
