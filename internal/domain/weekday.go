package domain

import "time"

// Weekday is the canonical day slot within a training week.
// Plans are Monday-aligned, so Monday has index 0 and Sunday index 6.
// This single ordered enum is shared by plan storage and matching;
// day names must never be redefined elsewhere.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Weekdays lists all day slots in fixed matching order (Monday first).
var Weekdays = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = [7]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// String returns the lowercase day name used as the storage key
// (e.g. "monday"). Out-of-range values return an empty string.
func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return ""
	}
	return weekdayNames[d]
}

// Index returns the zero-based offset of the day from the week start.
func (d Weekday) Index() int {
	return int(d)
}

// ParseWeekday converts a lowercase day name back to a Weekday.
// The second return value reports whether the name was recognized.
func ParseWeekday(name string) (Weekday, bool) {
	for i, n := range weekdayNames {
		if n == name {
			return Weekday(i), true
		}
	}
	return 0, false
}

// DateWithin computes the calendar date of this day slot for a week
// beginning at weekStart (assumed Monday-aligned).
func (d Weekday) DateWithin(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, int(d))
}
