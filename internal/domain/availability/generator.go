package availability

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SlotTime is one candidate slot start produced by Generate.
type SlotTime struct {
	Time     string    `json:"time"`
	Capacity int       `json:"capacity"`
	WindowID uuid.UUID `json:"window_id"`
}

// Generate expands the windows that fall on date's weekday into slot start
// times. Windows are expanded independently, so overlapping windows produce
// duplicate times. A slot is emitted only if it ends on or before the window
// end. Windows with unparseable times are skipped. The result is sorted by
// time, keeping window order for equal times.
func Generate(windows []Window, date time.Time) []SlotTime {
	weekday := int(date.Weekday())

	var out []SlotTime
	for i := range windows {
		w := &windows[i]
		if !w.IsActive || w.DayOfWeek != weekday || w.SlotDuration <= 0 {
			continue
		}
		start, err := ParseClock(w.StartTime)
		if err != nil {
			continue
		}
		end, err := ParseClock(w.EndTime)
		if err != nil {
			continue
		}
		for t := start; t.Add(w.SlotDuration) <= end; t = t.Add(w.SlotDuration) {
			out = append(out, SlotTime{Time: t.String(), Capacity: w.MaxPatients, WindowID: w.ID})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// HasSlotOn reports whether the windows generate at least one slot on date.
// A window shorter than its slot duration generates none.
func HasSlotOn(windows []Window, date time.Time) bool {
	weekday := int(date.Weekday())
	for i := range windows {
		w := &windows[i]
		if !w.IsActive || w.DayOfWeek != weekday {
			continue
		}
		if start, err := ParseClock(w.StartTime); err == nil && w.Covers(start) {
			return true
		}
	}
	return false
}

// CapacityAt returns the capacity of the slot starting at t on date, or false
// if no active window generates that slot. Overlapping windows that both
// generate t contribute the larger capacity.
func CapacityAt(windows []Window, date time.Time, t Clock) (int, bool) {
	weekday := int(date.Weekday())
	capacity, found := 0, false
	for i := range windows {
		w := &windows[i]
		if !w.IsActive || w.DayOfWeek != weekday || !w.Covers(t) {
			continue
		}
		found = true
		if w.MaxPatients > capacity {
			capacity = w.MaxPatients
		}
	}
	return capacity, found
}
