package dashboard

import (
	"time"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/status"
)

// Stats are the four dashboard counters
type Stats struct {
	Total    int `json:"total"`
	UpToDate int `json:"up_to_date"`
	Upcoming int `json:"upcoming"`
	Overdue  int `json:"overdue"`
}

// ComputeStats counts over the full loaded sets, never the search-filtered view.
// Up to date means no next due date or one strictly after today; upcoming and
// overdue come from reminders.
func ComputeStats(records []models.VaccinationRecord, reminders []models.Reminder, today time.Time) Stats {
	today = status.Date(today)
	s := Stats{Total: len(records)}

	for _, r := range records {
		next := r.NextDueTime()
		if next == nil || status.Date(*next).After(today) {
			s.UpToDate++
		}
	}

	for _, r := range reminders {
		due := r.DueTime()
		switch {
		case status.IsOverdue(due, today):
			s.Overdue++
		case status.InWindow(due, today):
			s.Upcoming++
		}
	}
	return s
}
