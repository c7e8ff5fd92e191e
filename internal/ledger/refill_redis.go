package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outbound-platform/pkg/logger"
	"outbound-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const RefillStream = "ledger:refill-requested"

func refillGuardKey(tenantID string) string { return "ledger:refill-guard:" + tenantID }

// RedisRefillPublisher appends refill requests to a Redis stream. A per-tenant guard
// keeps one request in flight per cooldown so a burst of charges asks for one refill.
type RedisRefillPublisher struct {
	rdb      *redis.Client
	cooldown time.Duration
}

func NewRedisRefillPublisher(rdb *redis.Client, cooldown time.Duration) *RedisRefillPublisher {
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	return &RedisRefillPublisher{rdb: rdb, cooldown: cooldown}
}

func (p *RedisRefillPublisher) PublishRefill(ctx context.Context, ev RefillRequested) error {
	ok, err := utils.AcquireGuard(ctx, p.rdb, refillGuardKey(ev.TenantID), 1, p.cooldown)
	if err != nil {
		return fmt.Errorf("refill guard: %w", err)
	}
	if !ok {
		logger.From(ctx).Debug("refill already requested", "tenant_id", ev.TenantID)
		return nil
	}

	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: RefillStream,
		Values: map[string]any{
			"tenant_id":     ev.TenantID,
			"refill_amount": ev.RefillAmount.StringFixed(2),
			"balance":       ev.Balance.StringFixed(2),
			"requested_at":  ev.RequestedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		_ = utils.ReleaseGuard(ctx, p.rdb, refillGuardKey(ev.TenantID))
		return fmt.Errorf("xadd refill: %w", err)
	}
	return nil
}

// ReleaseRefillGuard lets the tenant request another refill before the cooldown ends.
func ReleaseRefillGuard(ctx context.Context, rdb *redis.Client, tenantID string) error {
	return utils.ReleaseGuard(ctx, rdb, refillGuardKey(tenantID))
}

// ParseRefillMessage decodes a stream entry written by PublishRefill.
func ParseRefillMessage(values map[string]any) (RefillRequested, error) {
	str := func(k string) string {
		s, _ := values[k].(string)
		return s
	}
	ev := RefillRequested{TenantID: str("tenant_id")}
	if ev.TenantID == "" {
		return RefillRequested{}, errors.New("refill message: tenant_id missing")
	}
	amt, err := decimal.NewFromString(str("refill_amount"))
	if err != nil || !amt.IsPositive() {
		return RefillRequested{}, fmt.Errorf("refill message: bad refill_amount %q", str("refill_amount"))
	}
	ev.RefillAmount = amt
	if b, err := decimal.NewFromString(str("balance")); err == nil {
		ev.Balance = b
	}
	if ts, err := time.Parse(time.RFC3339Nano, str("requested_at")); err == nil {
		ev.RequestedAt = ts
	}
	return ev, nil
}
