package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoCustomer      = errors.New("billing: tenant has no payment customer")
	ErrInvalidArgument = errors.New("billing: invalid argument")
)

// Customer links a tenant to the Stripe customer and saved card charged for auto refills.
type Customer struct {
	TenantID         string    `json:"tenant_id"`
	StripeCustomerID string    `json:"stripe_customer_id"`
	PaymentMethodID  string    `json:"payment_method_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (c Customer) validate() error {
	if strings.TrimSpace(c.TenantID) == "" ||
		!strings.HasPrefix(c.StripeCustomerID, "cus_") ||
		!strings.HasPrefix(c.PaymentMethodID, "pm_") {
		return ErrInvalidArgument
	}
	return nil
}

type CustomerRepository interface {
	Get(ctx context.Context, tenantID string) (Customer, error)
	Upsert(ctx context.Context, c Customer) error
}

// PostgresCustomers stores the mapping in billing_customers.
type PostgresCustomers struct {
	db *sql.DB
}

func NewPostgresCustomers(db *sql.DB) *PostgresCustomers { return &PostgresCustomers{db: db} }

func (r *PostgresCustomers) Get(ctx context.Context, tenantID string) (Customer, error) {
	const q = `
SELECT tenant_id, stripe_customer_id, payment_method_id, updated_at
FROM billing_customers
WHERE tenant_id = $1
`
	var c Customer
	err := r.db.QueryRowContext(ctx, q, tenantID).Scan(&c.TenantID, &c.StripeCustomerID, &c.PaymentMethodID, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, ErrNoCustomer
	}
	return c, err
}

func (r *PostgresCustomers) Upsert(ctx context.Context, c Customer) error {
	const q = `
INSERT INTO billing_customers (tenant_id, stripe_customer_id, payment_method_id, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (tenant_id) DO UPDATE
SET stripe_customer_id = EXCLUDED.stripe_customer_id,
    payment_method_id = EXCLUDED.payment_method_id,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q, c.TenantID, c.StripeCustomerID, c.PaymentMethodID, c.UpdatedAt)
	return err
}

// MemoryCustomers is an in-memory CustomerRepository for tests.
type MemoryCustomers struct {
	mu   sync.Mutex
	byID map[string]Customer
}

func NewMemoryCustomers() *MemoryCustomers {
	return &MemoryCustomers{byID: map[string]Customer{}}
}

func (m *MemoryCustomers) Get(ctx context.Context, tenantID string) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[tenantID]
	if !ok {
		return Customer{}, ErrNoCustomer
	}
	return c, nil
}

func (m *MemoryCustomers) Upsert(ctx context.Context, c Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.TenantID] = c
	return nil
}

// LinkCustomer validates and stores the tenant's Stripe customer and card.
func LinkCustomer(ctx context.Context, repo CustomerRepository, c Customer) (Customer, error) {
	c.TenantID = strings.TrimSpace(c.TenantID)
	c.StripeCustomerID = strings.TrimSpace(c.StripeCustomerID)
	c.PaymentMethodID = strings.TrimSpace(c.PaymentMethodID)
	if err := c.validate(); err != nil {
		return Customer{}, err
	}
	c.UpdatedAt = time.Now().UTC()
	if err := repo.Upsert(ctx, c); err != nil {
		return Customer{}, fmt.Errorf("save billing customer: %w", err)
	}
	return c, nil
}
