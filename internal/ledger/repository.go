package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"outbound-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostgresRepo stores accounts in balance_accounts and the log in balance_transactions
// (UNIQUE (tenant_id, external_ref) WHERE external_ref <> '').
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const accountColumns = `tenant_id, balance, auto_refill_enabled, auto_refill_threshold, auto_refill_amount, updated_at`

const transactionColumns = `id, tenant_id, seq, type, amount, balance_after, external_ref, description, created_at`

func (r *PostgresRepo) Post(ctx context.Context, p Posting) (PostResult, error) {
	var out PostResult

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		acct, err := lockAccount(ctx, tx, p.TenantID, p.At)
		if err != nil {
			return err
		}

		if p.ExternalRef != "" {
			existing, ok, err := findByExternalRef(ctx, tx, p.TenantID, p.ExternalRef)
			if err != nil {
				return err
			}
			if ok {
				out = PostResult{Transaction: existing, Account: acct, Replayed: true}
				return nil
			}
		}

		newBalance := acct.Balance.Add(p.Amount)
		t := Transaction{
			ID:           uuid.NewString(),
			TenantID:     p.TenantID,
			Type:         p.Type,
			Amount:       p.Amount,
			BalanceAfter: newBalance,
			ExternalRef:  p.ExternalRef,
			Description:  p.Description,
			CreatedAt:    p.At,
		}
		seq, err := insertTransaction(ctx, tx, t)
		if err != nil {
			return err
		}
		t.Seq = seq

		acct, err = setBalance(ctx, tx, p.TenantID, newBalance, p.At)
		if err != nil {
			return err
		}
		out = PostResult{Transaction: t, Account: acct}
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}
	return out, nil
}

// lockAccount creates the account on first use and locks it for the rest of the tx.
func lockAccount(ctx context.Context, tx *sql.Tx, tenantID string, now time.Time) (Account, error) {
	const ensure = `
INSERT INTO balance_accounts (tenant_id, balance, updated_at)
VALUES ($1, 0, $2)
ON CONFLICT (tenant_id) DO NOTHING
`
	if _, err := tx.ExecContext(ctx, ensure, tenantID, now); err != nil {
		return Account{}, fmt.Errorf("ensure account: %w", err)
	}

	q := `SELECT ` + accountColumns + ` FROM balance_accounts WHERE tenant_id = $1 FOR UPDATE`
	acct, err := scanAccount(tx.QueryRowContext(ctx, q, tenantID))
	if err != nil {
		return Account{}, fmt.Errorf("lock account: %w", err)
	}
	return acct, nil
}

func findByExternalRef(ctx context.Context, tx *sql.Tx, tenantID, ref string) (Transaction, bool, error) {
	q := `SELECT ` + transactionColumns + ` FROM balance_transactions WHERE tenant_id = $1 AND external_ref = $2`
	t, err := scanTransaction(tx.QueryRowContext(ctx, q, tenantID, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return t, true, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t Transaction) (int64, error) {
	const q = `
INSERT INTO balance_transactions (id, tenant_id, type, amount, balance_after, external_ref, description, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING seq
`
	var seq int64
	err := tx.QueryRowContext(ctx, q,
		t.ID,
		t.TenantID,
		t.Type,
		t.Amount,
		t.BalanceAfter,
		t.ExternalRef,
		t.Description,
		t.CreatedAt,
	).Scan(&seq)
	if utils.IsUniqueViolation(err) {
		// The account lock makes this unreachable unless the lock was bypassed.
		return 0, fmt.Errorf("%w: duplicate external_ref %q", ErrLedgerIntegrity, t.ExternalRef)
	}
	return seq, err
}

func setBalance(ctx context.Context, tx *sql.Tx, tenantID string, balance decimal.Decimal, now time.Time) (Account, error) {
	q := `UPDATE balance_accounts SET balance = $2, updated_at = $3 WHERE tenant_id = $1 RETURNING ` + accountColumns
	return scanAccount(tx.QueryRowContext(ctx, q, tenantID, balance, now))
}

func (r *PostgresRepo) GetAccount(ctx context.Context, tenantID string) (Account, error) {
	q := `SELECT ` + accountColumns + ` FROM balance_accounts WHERE tenant_id = $1`
	acct, err := scanAccount(r.db.QueryRowContext(ctx, q, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return Account{TenantID: tenantID}, nil
	}
	return acct, err
}

func (r *PostgresRepo) UpdateRefillSettings(ctx context.Context, tenantID string, s RefillSettings, now time.Time) (Account, error) {
	q := `
INSERT INTO balance_accounts (tenant_id, balance, auto_refill_enabled, auto_refill_threshold, auto_refill_amount, updated_at)
VALUES ($1, 0, $2, $3, $4, $5)
ON CONFLICT (tenant_id) DO UPDATE
SET auto_refill_enabled = EXCLUDED.auto_refill_enabled,
    auto_refill_threshold = EXCLUDED.auto_refill_threshold,
    auto_refill_amount = EXCLUDED.auto_refill_amount,
    updated_at = EXCLUDED.updated_at
RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRowContext(ctx, q, tenantID, s.Enabled, s.Threshold, s.Amount, now))
}

func (r *PostgresRepo) ListTransactions(ctx context.Context, tenantID string, f ListFilter) ([]Transaction, error) {
	where, args := filterClause(tenantID, f)
	q := `SELECT ` + transactionColumns + ` FROM balance_transactions WHERE ` + where + ` ORDER BY seq DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SumAmounts(ctx context.Context, tenantID string, f ListFilter) (decimal.Decimal, error) {
	where, args := filterClause(tenantID, f)
	q := `SELECT COALESCE(SUM(amount), 0) FROM balance_transactions WHERE ` + where
	var sum decimal.Decimal
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func filterClause(tenantID string, f ListFilter) (string, []any) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	err := row.Scan(
		&a.TenantID,
		&a.Balance,
		&a.AutoRefillEnabled,
		&a.AutoRefillThreshold,
		&a.AutoRefillAmount,
		&a.UpdatedAt,
	)
	return a, err
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.Seq,
		&t.Type,
		&t.Amount,
		&t.BalanceAfter,
		&t.ExternalRef,
		&t.Description,
		&t.CreatedAt,
	)
	return t, err
}
