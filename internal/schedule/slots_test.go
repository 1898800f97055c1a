package schedule

import (
	"reflect"
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	cases := []struct {
		name   string
		now    time.Time
		offset int
		want   time.Time
	}{
		{
			name: "midweek",
			now:  time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC), // Tuesday
			want: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday is its own week start",
			now:  time.Date(2025, 6, 9, 23, 59, 0, 0, time.UTC),
			want: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday belongs to the preceding monday",
			now:  time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
			want: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "positive offset",
			now:    time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC),
			offset: 2,
			want:   time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "negative offset",
			now:    time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC),
			offset: -1,
			want:   time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := WeekStart(c.now, c.offset)
			if !got.Equal(c.want) {
				t.Fatalf("WeekStart = %s, want %s", got, c.want)
			}
		})
	}
}

func TestGenerateWeek_Shape(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	days := GenerateWeek(0, nil, now)

	if len(days) != DaysPerWeek {
		t.Fatalf("expected %d days, got %d", DaysPerWeek, len(days))
	}
	if days[0].Date != "2025-06-09" || days[0].Weekday != "Monday" {
		t.Fatalf("unexpected first day: %+v", days[0])
	}
	if days[5].Date != "2025-06-14" || days[5].Weekday != "Saturday" {
		t.Fatalf("unexpected last day: %+v", days[5])
	}
	for _, day := range days {
		if len(day.Slots) != 10 {
			t.Fatalf("day %s: expected 10 slots, got %d", day.Date, len(day.Slots))
		}
		if day.Slots[0].Key.Hour != DayStartHour || day.Slots[9].Key.Hour != DayEndHour {
			t.Fatalf("day %s: unexpected hour range", day.Date)
		}
	}
}

func TestGenerateWeek_PastClassification(t *testing.T) {
	// Tuesday 10:30: Monday is fully past, Tuesday hours 9 and 10 are past
	// (hour 10 started at 10:00 < 10:30), hour 11 onward is future.
	now := time.Date(2025, 6, 10, 10, 30, 0, 0, time.UTC)
	days := GenerateWeek(0, nil, now)

	for _, s := range days[0].Slots {
		if !s.Past {
			t.Fatalf("monday slot %+v should be past", s.Key)
		}
	}
	tuesday := days[1]
	for _, s := range tuesday.Slots {
		wantPast := s.Key.Hour <= 10
		if s.Past != wantPast {
			t.Fatalf("tuesday hour %d: past=%v, want %v", s.Key.Hour, s.Past, wantPast)
		}
	}
}

func TestGenerateWeek_FullyPastWeek(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	for _, day := range GenerateWeek(-1, nil, now) {
		for _, s := range day.Slots {
			if !s.Past {
				t.Fatalf("slot %+v in a past week should be past", s.Key)
			}
		}
	}
}

func TestGenerateWeek_AvailabilityLookup(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	saved := map[SlotKey]bool{
		{Date: "2025-06-10", Hour: 9}:  true,
		{Date: "2025-06-10", Hour: 10}: false,
	}
	days := GenerateWeek(0, saved, now)

	tuesday := days[1]
	if !tuesday.Slots[0].Available {
		t.Fatal("saved available slot should render available")
	}
	if tuesday.Slots[1].Available {
		t.Fatal("slot saved as unavailable should render unavailable")
	}
	// Absent keys default to unavailable.
	if tuesday.Slots[2].Available {
		t.Fatal("unsaved slot should default to unavailable")
	}
}

func TestGenerateWeek_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	saved := map[SlotKey]bool{{Date: "2025-06-12", Hour: 14}: true}

	first := GenerateWeek(1, saved, now)
	second := GenerateWeek(1, saved, now)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("GenerateWeek must be deterministic for identical inputs")
	}
}

func TestIsPast(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		key  SlotKey
		want bool
	}{
		{SlotKey{Date: "2025-06-10", Hour: 9}, true},
		{SlotKey{Date: "2025-06-10", Hour: 10}, false}, // boundary: starts exactly now
		{SlotKey{Date: "2025-06-10", Hour: 11}, false},
		{SlotKey{Date: "2025-06-09", Hour: 18}, true},
		{SlotKey{Date: "not-a-date", Hour: 9}, true},
	}
	for _, c := range cases {
		if got := IsPast(c.key, now); got != c.want {
			t.Fatalf("IsPast(%+v) = %v, want %v", c.key, got, c.want)
		}
	}
}

func TestSlotKeyValid(t *testing.T) {
	cases := []struct {
		key  SlotKey
		want bool
	}{
		{SlotKey{Date: "2025-06-10", Hour: 9}, true},
		{SlotKey{Date: "2025-06-10", Hour: 18}, true},
		{SlotKey{Date: "2025-06-10", Hour: 8}, false},
		{SlotKey{Date: "2025-06-10", Hour: 19}, false},
		{SlotKey{Date: "10.06.2025", Hour: 9}, false},
	}
	for _, c := range cases {
		if got := c.key.Valid(); got != c.want {
			t.Fatalf("Valid(%+v) = %v, want %v", c.key, got, c.want)
		}
	}
}

func TestGenerateRange_SkipsSundaysAndFlattens(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	from := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC) // Saturday
	to := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)   // Monday

	slots := GenerateRange(from, to, nil, now)
	// Saturday + Monday, 10 hours each; Sunday skipped.
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Key.Date == "2025-06-15" {
			t.Fatal("sunday must not carry slots")
		}
	}
}
