package campaign

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Weekdays is a set of days as a bitmask, bit 0 = Sunday.
type Weekdays uint8

func NewWeekdays(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w
}

func (w Weekdays) Has(d time.Weekday) bool { return w&(1<<uint(d)) != 0 }

func (w Weekdays) Days() []int {
	out := make([]int, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			out = append(out, int(d))
		}
	}
	return out
}

func (w Weekdays) MarshalJSON() ([]byte, error) { return json.Marshal(w.Days()) }

func (w *Weekdays) UnmarshalJSON(b []byte) error {
	var days []int
	if err := json.Unmarshal(b, &days); err != nil {
		return err
	}
	var out Weekdays
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("weekday out of range: %d", d)
		}
		out |= 1 << uint(d)
	}
	*w = out
	return nil
}

// TimeOfDay is minutes since local midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60) }

func (t TimeOfDay) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func timeOfDay(t time.Time) TimeOfDay { return TimeOfDay(t.Hour()*60 + t.Minute()) }

// InWindow reports whether now, in the tenant's timezone, is on a scheduled day and
// within [start, end).
func (c Control) InWindow(now time.Time) bool {
	local := now.In(c.Location())
	if !c.ScheduleDays.Has(local.Weekday()) {
		return false
	}
	tod := timeOfDay(local)
	return tod >= c.ScheduleStartTime && tod < c.ScheduleEndTime
}

// LocalDay returns the tenant-local calendar day containing now as [start, end)
// and its YYYY-MM-DD label.
func (c Control) LocalDay(now time.Time) (time.Time, time.Time, string) {
	local := now.In(c.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return start, start.AddDate(0, 0, 1), start.Format(time.DateOnly)
}

// applySettings copies validated settings onto c.
func (c *Control) applySettings(s Settings) error {
	start, err := ParseTimeOfDay(s.ScheduleStartTime)
	if err != nil {
		return err
	}
	end, err := ParseTimeOfDay(s.ScheduleEndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return fmt.Errorf("schedule_end_time must be after schedule_start_time")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	days := append([]int(nil), s.ScheduleDays...)
	sort.Ints(days)
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}

	c.ScheduleEnabled = s.ScheduleEnabled
	c.ScheduleDays = w
	c.ScheduleStartTime = start
	c.ScheduleEndTime = end
	c.Timezone = s.Timezone
	c.DailySpendLimit = s.DailySpendLimit.Round(2)
	c.DailyCallLimit = s.DailyCallLimit
	return nil
}
