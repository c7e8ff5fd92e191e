package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enableSchedule(t *testing.T, f *controllerFixture, tenantID string) {
	t.Helper()
	_, err := f.ctrl.UpdateSettings(context.Background(), tenantID, Settings{
		ScheduleEnabled:   true,
		ScheduleDays:      []int{1, 2, 3, 4, 5},
		ScheduleStartTime: "09:00",
		ScheduleEndTime:   "17:00",
		Timezone:          "UTC",
		DailySpendLimit:   decimal.NewFromInt(50),
		DailyCallLimit:    20,
	})
	require.NoError(t, err)
}

func TestSchedulerTick_StartsOncePerDay(t *testing.T) {
	now := at(9, 30)
	f := newFixture(t, 5, now)
	s := NewScheduler(f.ctrl, f.store)
	ctx := context.Background()

	enableSchedule(t, f, "t1")
	_, err := f.ctrl.Stop(ctx, "t2") // stopped but not scheduled
	require.NoError(t, err)

	res, err := s.Tick(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Started)
	assert.Equal(t, 1, f.disp.count())

	ctl, _ := f.store.Get(ctx, "t1")
	assert.Equal(t, "2026-03-10", ctl.LastAutoStartDate)

	// finished early the same day: no second automatic run
	_, err = f.ctrl.Stop(ctx, "t1")
	require.NoError(t, err)
	res, err = s.Tick(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Started)
	assert.Equal(t, 1, f.disp.count())

	// next day
	tomorrow := now.Add(24 * time.Hour)
	f.ctrl.clock = func() time.Time { return tomorrow }
	res, err = s.Tick(ctx, tomorrow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Started)
}

func TestSchedulerTick_WaitsForWindow(t *testing.T) {
	now := at(8, 0)
	f := newFixture(t, 5, now)
	s := NewScheduler(f.ctrl, f.store)
	enableSchedule(t, f, "t1")

	res, err := s.Tick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Started)
	assert.Equal(t, 1, res.Skipped)

	ctl, _ := f.store.Get(context.Background(), "t1")
	assert.Empty(t, ctl.LastAutoStartDate)
}

func TestSchedulerTick_BudgetFailureUsesUpTheDay(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, 5, now)
	f.spend.spent = decimal.NewFromInt(60)
	s := NewScheduler(f.ctrl, f.store)
	enableSchedule(t, f, "t1")

	_, err := s.Tick(context.Background(), now)
	require.NoError(t, err)

	ctl, _ := f.store.Get(context.Background(), "t1")
	assert.Equal(t, "2026-03-10", ctl.LastAutoStartDate)
	assert.Equal(t, StatusStopped, ctl.Status)
}

func TestSchedulerTick_DispatchFailureRetries(t *testing.T) {
	now := at(10, 0)
	f := newFixture(t, 5, now)
	f.disp.err = errors.New("timeout")
	s := NewScheduler(f.ctrl, f.store)
	enableSchedule(t, f, "t1")

	res, err := s.Tick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	f.disp.err = nil
	res, err = s.Tick(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Started)
}
