package schedule

import "time"

// Clock supplies "now" to everything that classifies slots as past or future.
// Injected so time-based behavior is deterministic in tests.
type Clock func() time.Time

const (
	// Bookable hours run 09:00 through 18:00 inclusive, one slot per hour.
	DayStartHour = 9
	DayEndHour   = 18

	// DaysPerWeek is the visible booking week, Monday through Saturday.
	DaysPerWeek = 6

	// SlotDurationMinutes is the fixed platform session length. Booking never
	// merges adjacent free hours into a longer session.
	SlotDurationMinutes = 60

	DateLayout = "2006-01-02"
)

// SlotKey identifies one bookable hour of one provider's calendar day.
// Date uses the DateLayout form so keys are comparable and JSON-friendly.
type SlotKey struct {
	Date string `json:"date"`
	Hour int    `json:"hour"`
}

// Start returns the slot's wall-clock instant (hour boundary, UTC).
func (k SlotKey) Start() (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, k.Date, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(k.Hour) * time.Hour), nil
}

func (k SlotKey) Valid() bool {
	if k.Hour < DayStartHour || k.Hour > DayEndHour {
		return false
	}
	_, err := time.ParseInLocation(DateLayout, k.Date, time.UTC)
	return err == nil
}

func NewSlotKey(t time.Time) SlotKey {
	t = t.UTC()
	return SlotKey{Date: t.Format(DateLayout), Hour: t.Hour()}
}

// IsPast reports whether the slot's start instant is strictly before now.
// Malformed keys are treated as past: they are never bookable or togglable.
func IsPast(k SlotKey, now time.Time) bool {
	start, err := k.Start()
	if err != nil {
		return true
	}
	return start.Before(now)
}

// SlotChange is one provider-intent entry in a batched availability save.
type SlotChange struct {
	Key       SlotKey `json:"key"`
	Available bool    `json:"is_available"`
}

type Slot struct {
	Key       SlotKey `json:"key"`
	Available bool    `json:"is_available"`
	Past      bool    `json:"is_past"`
}

type Day struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Slots   []Slot `json:"slots"`
}

// WeekStart returns Monday 00:00 UTC of the week containing now, shifted by
// weekOffset weeks. weekOffset 0 is the week containing now; negative offsets
// address past weeks.
func WeekStart(now time.Time, weekOffset int) time.Time {
	now = now.UTC()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysSinceMonday)
	return monday.AddDate(0, 0, weekOffset*7)
}

// GenerateWeek computes the Monday..Saturday grid for one week. saved carries
// the provider's committed availability; absent keys default to unavailable.
// The function is pure: identical inputs produce identical output.
func GenerateWeek(weekOffset int, saved map[SlotKey]bool, now time.Time) []Day {
	start := WeekStart(now, weekOffset)
	days := make([]Day, 0, DaysPerWeek)
	for d := 0; d < DaysPerWeek; d++ {
		date := start.AddDate(0, 0, d)
		day := Day{
			Date:    date.Format(DateLayout),
			Weekday: date.Weekday().String(),
			Slots:   make([]Slot, 0, DayEndHour-DayStartHour+1),
		}
		for hour := DayStartHour; hour <= DayEndHour; hour++ {
			key := SlotKey{Date: day.Date, Hour: hour}
			day.Slots = append(day.Slots, Slot{
				Key:       key,
				Available: saved[key],
				Past:      IsPast(key, now),
			})
		}
		days = append(days, day)
	}
	return days
}

// GenerateRange flattens the grid for an arbitrary inclusive day range, used
// by the client-facing schedule search. Days outside the bookable week shape
// still render; Sundays carry no slots.
func GenerateRange(from, to time.Time, saved map[SlotKey]bool, now time.Time) []Slot {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)

	var slots []Slot
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if date.Weekday() == time.Sunday {
			continue
		}
		for hour := DayStartHour; hour <= DayEndHour; hour++ {
			key := SlotKey{Date: date.Format(DateLayout), Hour: hour}
			slots = append(slots, Slot{
				Key:       key,
				Available: saved[key],
				Past:      IsPast(key, now),
			})
		}
	}
	return slots
}
