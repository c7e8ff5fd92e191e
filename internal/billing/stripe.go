package billing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// PurposeAutoRefill tags payment intents created for auto refills so the webhook
// can tell them apart from other payments on the same account.
const PurposeAutoRefill = "auto_refill"

// ChargeRequest is an off-session charge against a tenant's saved card.
type ChargeRequest struct {
	TenantID       string
	Customer       Customer
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
}

// PaymentCreator starts a payment. It returns the provider's payment id.
type PaymentCreator interface {
	CreateRefillPayment(ctx context.Context, req ChargeRequest) (string, error)
}

// StripePayments creates off-session PaymentIntents.
type StripePayments struct {
	client paymentintent.Client
}

func NewStripePayments(secretKey string) *StripePayments {
	return &StripePayments{client: paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}}
}

func (s *StripePayments) CreateRefillPayment(ctx context.Context, req ChargeRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.Customer.StripeCustomerID),
		PaymentMethod: stripe.String(req.Customer.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("Balance auto refill"),
		Metadata: map[string]string{
			"tenant_id": req.TenantID,
			"purpose":   PurposeAutoRefill,
		},
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := s.client.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// IsDeclined reports whether err is a card error that retrying will not fix.
func IsDeclined(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Type == stripe.ErrorTypeCard
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

func fromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
