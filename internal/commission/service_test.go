package commission

import (
	"context"
	"testing"
	"time"

	"outbound-platform/internal/audit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var finance = audit.Actor{UserID: "fin-1", Role: "finance"}

type fixture struct {
	svc   *Service
	store *MemoryStore
	audit *audit.MemoryRepo
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: NewMemoryStore(),
		audit: audit.NewMemoryRepo(),
		now:   time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, audit.NewService(f.audit))
	f.svc.clock = func() time.Time { return f.now }
	return f
}

// referAndComplete creates a referral and completes it at the fixture's current time.
func (f *fixture) referAndComplete(t *testing.T, referrer, referee, credit string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.CreateReferral(ctx, referrer, referee, "CODE-"+referrer, d(credit))
	require.NoError(t, err)
	_, changed, err := f.svc.CompleteReferral(ctx, referee)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestGenerateMonthly_IsIdempotentPerPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.referAndComplete(t, "alice", "t1", "10.00")
	f.referAndComplete(t, "alice", "t2", "15.50")
	f.referAndComplete(t, "bob", "t3", "20.00")

	f.now = time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	first, err := f.svc.GenerateMonthly(ctx, "2026-02")
	require.NoError(t, err)
	require.Len(t, first.Created, 2)

	second, err := f.svc.GenerateMonthly(ctx, "2026-02")
	require.NoError(t, err)
	assert.Empty(t, second.Created)

	alice, err := f.svc.ListPayouts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, "25.50", alice[0].Amount.StringFixed(2))
	assert.Equal(t, PayoutPending, alice[0].Status)

	bob, _ := f.svc.ListPayouts(ctx, "bob")
	require.Len(t, bob, 1)
	assert.Equal(t, "20.00", bob[0].Amount.StringFixed(2))
}

func TestGenerateMonthly_CreditsReferralsSoTheyPayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.referAndComplete(t, "alice", "t1", "10.00")

	f.now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.GenerateMonthly(ctx, "2026-02")
	require.NoError(t, err)

	// nothing new completed in March
	f.now = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	res, err := f.svc.GenerateMonthly(ctx, "2026-03")
	require.NoError(t, err)
	assert.Empty(t, res.Created)

	payouts, _ := f.svc.ListPayouts(ctx, "alice")
	assert.Len(t, payouts, 1)
}

func TestGenerateMonthly_IgnoresPendingReferrals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateReferral(ctx, "alice", "t-pending", "A", d("10"))
	require.NoError(t, err)

	res, err := f.svc.GenerateMonthly(ctx, "2026-02")
	require.NoError(t, err)
	assert.Empty(t, res.Created)
}

func TestGenerateMonthly_FlatPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SetPlan(ctx, Plan{ReferrerID: "agency", Type: PlanFlat, FlatAmount: d("40")}))

	f.referAndComplete(t, "agency", "t1", "5")
	f.referAndComplete(t, "agency", "t2", "5")
	f.referAndComplete(t, "agency", "t3", "5")

	f.now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	res, err := f.svc.GenerateMonthly(ctx, "2026-02")
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "120.00", res.Created[0].Amount.StringFixed(2))
}

func TestGenerateMonthly_RecurringPlanPaysForWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SetPlan(ctx, Plan{ReferrerID: "rep", Type: PlanRecurring, RecurringAmount: d("12.50"), RecurringMonths: 2}))

	f.referAndComplete(t, "rep", "t1", "0") // completes in February

	amounts := map[string]string{}
	for _, p := range []struct{ period, runAt string }{
		{"2026-02", "2026-03-01T00:00:00Z"},
		{"2026-03", "2026-04-01T00:00:00Z"},
		{"2026-04", "2026-05-01T00:00:00Z"},
	} {
		f.now, _ = time.Parse(time.RFC3339, p.runAt)
		res, err := f.svc.GenerateMonthly(ctx, p.period)
		require.NoError(t, err)
		for _, po := range res.Created {
			amounts[po.PeriodMonth] = po.Amount.StringFixed(2)
		}
	}

	assert.Equal(t, map[string]string{"2026-02": "12.50", "2026-03": "12.50"}, amounts)
}

func TestGenerateMonthly_InvalidPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []string{"", "2026-13", "02-2026", "2026/02"} {
		_, err := f.svc.GenerateMonthly(ctx, p)
		assert.ErrorIs(t, err, ErrInvalidPeriod, p)
	}
	_, err := f.svc.GenerateMonthly(ctx, "2026-05")
	assert.ErrorIs(t, err, ErrInvalidPeriod, "future period")
}

func TestMarkPaid_FlipsOnlyPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := f.now

	seed := func(p Payout) {
		p.ID, p.ReferrerID, p.Amount, p.CreatedAt = "p-"+p.PeriodMonth, "alice", d("10"), at
		created, err := f.store.CreatePayout(ctx, p, nil, at)
		require.NoError(t, err)
		require.True(t, created)
	}
	earlier := at.Add(-30 * 24 * time.Hour)
	seed(Payout{PeriodMonth: "2025-10", Status: PayoutPaid, PaidAt: &earlier, PaidVia: "paypal", Reference: "PP-17"})
	seed(Payout{PeriodMonth: "2025-11", Status: PayoutPending})
	seed(Payout{PeriodMonth: "2025-12", Status: PayoutPending})
	seed(Payout{PeriodMonth: "2026-01", Status: PayoutPending})

	n, err := f.svc.MarkPaid(ctx, "alice", "bank_transfer", "BT-991", finance)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	payouts, _ := f.svc.ListPayouts(ctx, "alice")
	require.Len(t, payouts, 4)
	for _, p := range payouts {
		assert.Equal(t, PayoutPaid, p.Status, p.PeriodMonth)
		require.NotNil(t, p.PaidAt, p.PeriodMonth)
		if p.PeriodMonth == "2025-10" {
			// the payout settled earlier keeps its own settlement details
			assert.Equal(t, "paypal", p.PaidVia)
			assert.Equal(t, "PP-17", p.Reference)
			assert.True(t, p.PaidAt.Equal(earlier), "paid_at %s", p.PaidAt)
			continue
		}
		assert.Equal(t, "bank_transfer", p.PaidVia, p.PeriodMonth)
		assert.Equal(t, "BT-991", p.Reference, p.PeriodMonth)
	}

	n, err = f.svc.MarkPaid(ctx, "alice", "bank_transfer", "BT-992", finance)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventTypeCommissionPaid, events[0].Type)
}

func TestStats_DerivedFromReferralsAndPayouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.referAndComplete(t, "alice", "t1", "10")
	_, err := f.svc.CreateReferral(ctx, "alice", "t2", "A", d("10"))
	require.NoError(t, err)

	f.now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.GenerateMonthly(ctx, "2026-02")
	require.NoError(t, err)

	st, err := f.svc.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, st.LifetimeReferrals)
	assert.Equal(t, 1, st.CompletedReferrals)
	assert.Equal(t, "10.00", st.PendingPayout.StringFixed(2))
	assert.True(t, st.PaidOut.IsZero())

	_, err = f.svc.MarkPaid(ctx, "alice", "paypal", "", finance)
	require.NoError(t, err)
	st, _ = f.svc.Stats(ctx, "alice")
	assert.Equal(t, "10.00", st.PaidOut.StringFixed(2))
	assert.Equal(t, "10.00", st.TotalEarned.StringFixed(2))
	assert.True(t, st.PendingPayout.IsZero())
}

func TestCompleteReferral_IsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.referAndComplete(t, "alice", "t1", "10")

	_, changed, err := f.svc.CompleteReferral(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, changed)

	_, changed, err = f.svc.CompleteReferral(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCreateReferral_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateReferral(ctx, "alice", "alice", "X", d("1"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.svc.CreateReferral(ctx, "alice", "t1", "X", d("-1"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.CreateReferral(ctx, "alice", "t1", "X", d("1"))
	require.NoError(t, err)
	_, err = f.svc.CreateReferral(ctx, "bob", "t1", "Y", d("1"))
	assert.ErrorIs(t, err, ErrDuplicate, "a tenant is referred once")
}

func TestPreviousPeriod(t *testing.T) {
	assert.Equal(t, "2025-12", PreviousPeriod(time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)))
	assert.Equal(t, "2026-02", PreviousPeriod(time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)))
}
