package campaign

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-10 is a Tuesday.
func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestWeekdays_JSON(t *testing.T) {
	w := NewWeekdays(time.Monday, time.Friday, time.Sunday)
	b, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `[0,1,5]`, string(b))

	var back Weekdays
	require.NoError(t, json.Unmarshal([]byte(`[6,2]`), &back))
	assert.True(t, back.Has(time.Saturday))
	assert.True(t, back.Has(time.Tuesday))
	assert.False(t, back.Has(time.Monday))

	assert.Error(t, json.Unmarshal([]byte(`[7]`), &back))
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(570), tod)
	assert.Equal(t, "09:30", tod.String())

	_, err = ParseTimeOfDay("9.30")
	assert.Error(t, err)

	b, _ := json.Marshal(TimeOfDay(17 * 60))
	assert.Equal(t, `"17:00"`, string(b))
}

func TestInWindow(t *testing.T) {
	c := DefaultControl("t1") // Mon-Fri 09:00-17:00 UTC

	assert.False(t, c.InWindow(at(8, 59)))
	assert.True(t, c.InWindow(at(9, 0)))
	assert.True(t, c.InWindow(at(16, 59)))
	assert.False(t, c.InWindow(at(17, 0)), "end is exclusive")

	saturday := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	assert.False(t, c.InWindow(saturday))
}

func TestInWindow_UsesTenantTimezone(t *testing.T) {
	c := DefaultControl("t1")
	c.Timezone = "America/New_York" // UTC-4 after 2026-03-08

	assert.False(t, c.InWindow(at(12, 30)), "08:30 local")
	assert.True(t, c.InWindow(at(13, 30)), "09:30 local")
}

func TestLocalDay(t *testing.T) {
	c := DefaultControl("t1")
	c.Timezone = "Asia/Tokyo"

	from, to, day := c.LocalDay(at(20, 0)) // 05:00 on the 11th in Tokyo
	assert.Equal(t, "2026-03-11", day)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
	assert.True(t, from.Equal(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)))
}

func TestApplySettings(t *testing.T) {
	c := DefaultControl("t1")
	err := c.applySettings(Settings{
		ScheduleEnabled:   true,
		ScheduleDays:      []int{6, 0},
		ScheduleStartTime: "10:00",
		ScheduleEndTime:   "14:30",
		Timezone:          "Europe/Berlin",
		DailySpendLimit:   decimal.RequireFromString("25.005"),
		DailyCallLimit:    40,
	})
	require.NoError(t, err)
	assert.True(t, c.ScheduleEnabled)
	assert.Equal(t, []int{0, 6}, c.ScheduleDays.Days())
	assert.Equal(t, TimeOfDay(600), c.ScheduleStartTime)
	assert.Equal(t, TimeOfDay(870), c.ScheduleEndTime)
	assert.Equal(t, "25.01", c.DailySpendLimit.StringFixed(2))

	err = c.applySettings(Settings{
		ScheduleDays:      []int{1},
		ScheduleStartTime: "14:00",
		ScheduleEndTime:   "14:00",
		Timezone:          "UTC",
		DailySpendLimit:   decimal.NewFromInt(10),
		DailyCallLimit:    1,
	})
	assert.Error(t, err)
}
