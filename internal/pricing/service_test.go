package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRateFor_FallsBackToDefaults(t *testing.T) {
	svc := NewService(&MemoryRepo{}, d("0.30"), d("0.12"))

	r, err := svc.RateFor(context.Background(), "t1", time.Time{})
	require.NoError(t, err)
	assert.True(t, r.Default)
	assert.True(t, r.BilledRatePerMinute.Equal(d("0.30")))
}

func TestRateFor_PicksMostRecentActiveRow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := base.Add(48 * time.Hour)
	repo := &MemoryRepo{Rates: []TenantRate{
		{TenantID: "t1", BilledRatePerMinute: d("0.25"), PlatformCostPerMinute: d("0.10"), EffectiveFrom: base},
		{TenantID: "t1", BilledRatePerMinute: d("0.20"), PlatformCostPerMinute: d("0.10"), EffectiveFrom: base.Add(24 * time.Hour), EffectiveTo: &end},
		{TenantID: "t2", BilledRatePerMinute: d("0.99"), PlatformCostPerMinute: d("0.10"), EffectiveFrom: base},
	}}
	svc := NewService(repo, d("0.30"), d("0.12"))
	ctx := context.Background()

	r, err := svc.RateFor(ctx, "t1", base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, r.BilledRatePerMinute.Equal(d("0.25")))

	r, err = svc.RateFor(ctx, "t1", base.Add(30*time.Hour))
	require.NoError(t, err)
	assert.True(t, r.BilledRatePerMinute.Equal(d("0.20")))

	// promo window over, back to the open-ended row
	r, err = svc.RateFor(ctx, "t1", base.Add(72*time.Hour))
	require.NoError(t, err)
	assert.True(t, r.BilledRatePerMinute.Equal(d("0.25")))
	assert.False(t, r.Default)
}

func TestSetRate_Validates(t *testing.T) {
	svc := NewService(&MemoryRepo{}, d("0.30"), d("0.12"))
	ctx := context.Background()

	_, err := svc.SetRate(ctx, "t1", decimal.Zero, d("0.1"), time.Time{})
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = svc.SetRate(ctx, "t1", d("0.40"), d("0.1"), time.Time{})
	require.NoError(t, err)
	r, err := svc.RateFor(ctx, "t1", time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.True(t, r.BilledRatePerMinute.Equal(d("0.40")))
}
