package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outbound-platform/internal/ledger"
	"outbound-platform/pkg/logger"
	"outbound-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const RefillGroup = "billing"

// RefillConsumer reads refill requests from the ledger stream and charges the tenant's
// saved card. The balance is credited later by the Stripe webhook, never here.
type RefillConsumer struct {
	rdb       *redis.Client
	customers CustomerRepository
	payments  PaymentCreator
	currency  string
	name      string

	block        time.Duration
	retryEvery   time.Duration
	releaseGuard func(ctx context.Context, tenantID string) error
}

func NewRefillConsumer(rdb *redis.Client, customers CustomerRepository, payments PaymentCreator, currency, name string) *RefillConsumer {
	if currency == "" {
		currency = "usd"
	}
	return &RefillConsumer{
		rdb:        rdb,
		customers:  customers,
		payments:   payments,
		currency:   currency,
		name:       name,
		block:      5 * time.Second,
		retryEvery: time.Minute,
		releaseGuard: func(ctx context.Context, tenantID string) error {
			return ledger.ReleaseRefillGuard(ctx, rdb, tenantID)
		},
	}
}

// Run consumes until ctx is done. Messages left pending by a failed Handle, or by an
// earlier crash of this consumer, are retried every retryEvery.
func (c *RefillConsumer) Run(ctx context.Context) error {
	if err := utils.EnsureStreamGroup(ctx, c.rdb, ledger.RefillStream, RefillGroup); err != nil {
		return fmt.Errorf("ensure refill group: %w", err)
	}
	log := logger.From(ctx).With("consumer", c.name)
	log.Info("refill consumer started")

	cursor := "0"
	lastSweep := time.Now()
	for {
		if ctx.Err() != nil {
			log.Info("refill consumer stopped")
			return nil
		}
		if cursor == ">" && time.Since(lastSweep) >= c.retryEvery {
			cursor, lastSweep = "0", time.Now()
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    RefillGroup,
			Consumer: c.name,
			Streams:  []string{ledger.RefillStream, cursor},
			Count:    pendingPage,
			Block:    c.block,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				continue
			}
			log.Error("refill stream read failed", "err", err)
			time.Sleep(time.Second)
			continue
		}

		var msgs []redis.XMessage
		for _, s := range streams {
			msgs = append(msgs, s.Messages...)
		}
		for _, msg := range msgs {
			if err := c.Handle(ctx, msg.ID, msg.Values); err != nil {
				log.Warn("refill request left pending", "message_id", msg.ID, "err", err)
				continue
			}
			if err := c.rdb.XAck(ctx, ledger.RefillStream, RefillGroup, msg.ID).Err(); err != nil {
				log.Error("refill ack failed", "message_id", msg.ID, "err", err)
			}
		}
		cursor = nextCursor(cursor, msgs)
	}
}

const pendingPage = 10

// nextCursor pages through this consumer's pending entries, then returns to new
// messages. A short page means the pending list has been walked to its end.
func nextCursor(cursor string, read []redis.XMessage) string {
	if cursor == ">" || len(read) < pendingPage {
		return ">"
	}
	return read[len(read)-1].ID
}

// Handle processes one stream message. A nil error means the message is done and can be
// acknowledged: either a payment was started or it can never succeed.
func (c *RefillConsumer) Handle(ctx context.Context, id string, values map[string]any) error {
	log := logger.From(ctx).With("message_id", id)

	ev, err := ledger.ParseRefillMessage(values)
	if err != nil {
		log.Error("dropping malformed refill request", "err", err)
		return nil
	}
	ctx, log = logger.ForTenant(ctx, ev.TenantID)
	log = log.With("message_id", id)

	cust, err := c.customers.Get(ctx, ev.TenantID)
	if errors.Is(err, ErrNoCustomer) {
		log.Warn("auto refill skipped: no saved payment method")
		c.release(ctx, ev.TenantID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load billing customer: %w", err)
	}

	paymentID, err := c.payments.CreateRefillPayment(ctx, ChargeRequest{
		TenantID:       ev.TenantID,
		Customer:       cust,
		Amount:         ev.RefillAmount,
		Currency:       c.currency,
		IdempotencyKey: "refill:" + ev.TenantID + ":" + id,
	})
	if err != nil {
		if IsDeclined(err) {
			log.Warn("auto refill declined", "amount", ev.RefillAmount.StringFixed(2), "err", err)
			c.release(ctx, ev.TenantID)
			return nil
		}
		return fmt.Errorf("create refill payment: %w", err)
	}

	log.Info("auto refill payment created", "payment_id", paymentID, "amount", ev.RefillAmount.StringFixed(2))
	return nil
}

func (c *RefillConsumer) release(ctx context.Context, tenantID string) {
	if c.releaseGuard == nil {
		return
	}
	if err := c.releaseGuard(ctx, tenantID); err != nil {
		logger.From(ctx).Warn("refill guard release failed", "err", err)
	}
}
