// Package status classifies vaccination due dates.
//
// Every comparison happens on calendar dates. Callers anchor "now" with
// Today, which takes the calendar date of the instant in the configured
// location and represents it as midnight UTC, the same representation the
// store uses for date columns. Time of day therefore never shifts a boundary.
package status

import "time"

// DueSoonWindow is the inclusive forward horizon, in days, of the DueSoon status
const DueSoonWindow = 30

// Status is the derived state of a record or reminder
type Status int

const (
	Complete Status = iota
	Overdue
	DueSoon
	UpToDate
)

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case Overdue:
		return "overdue"
	case DueSoon:
		return "due-soon"
	case UpToDate:
		return "up-to-date"
	}
	return "unknown"
}

// Label is the human readable badge text
func (s Status) Label() string {
	switch s {
	case Complete:
		return "Complete"
	case Overdue:
		return "Overdue"
	case DueSoon:
		return "Due Soon"
	case UpToDate:
		return "Up to Date"
	}
	return "Unknown"
}

// Today returns the calendar date of now in loc, as midnight UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Date(now.In(loc))
}

// Date drops the time of day and location of t, keeping its calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WindowEnd is the last calendar day classified as DueSoon
func WindowEnd(today time.Time) time.Time {
	return Date(today).AddDate(0, 0, DueSoonWindow)
}

// Classify maps an optional next due date to a Status relative to today.
func Classify(nextDue *time.Time, today time.Time) Status {
	if nextDue == nil {
		return Complete
	}
	due := Date(*nextDue)
	day := Date(today)
	switch {
	case due.Before(day):
		return Overdue
	case !due.After(WindowEnd(day)):
		return DueSoon
	default:
		return UpToDate
	}
}

// IsOverdue reports whether due falls before today
func IsOverdue(due, today time.Time) bool {
	return Date(due).Before(Date(today))
}

// InWindow reports whether due falls within [today, today+DueSoonWindow]
func InWindow(due, today time.Time) bool {
	d := Date(due)
	day := Date(today)
	return !d.Before(day) && !d.After(WindowEnd(day))
}
