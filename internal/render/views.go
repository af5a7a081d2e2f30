package render

import (
	"html/template"
	"time"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/status"
	"github.com/localnerve/vaxtrack/internal/validation"
)

// RecordRow is one vaccination record as displayed
type RecordRow struct {
	ID          string `json:"id"`
	OwnerID     string `json:"user_id"`
	OwnerName   string `json:"owner_name,omitempty"`
	OwnerEmail  string `json:"owner_email,omitempty"`
	VaccineName string `json:"vaccine_name"`
	DoseNumber  int    `json:"dose_number"`
	DateGiven   string `json:"date_given"`
	NextDue     string `json:"next_due,omitempty"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
}

// ReminderRow is one open reminder as displayed
type ReminderRow struct {
	ID          string `json:"id"`
	RecordID    string `json:"record_id"`
	OwnerID     string `json:"user_id"`
	VaccineName string `json:"vaccine_name"`
	DoseNumber  int    `json:"dose_number"`
	DueDate     string `json:"due_date"`
	DaysUntil   int    `json:"days_until"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
}

// RecordRows projects records for display, classified against today
func RecordRows(records []models.VaccinationRecord, today time.Time) []RecordRow {
	rows := make([]RecordRow, 0, len(records))
	for _, r := range records {
		next := r.NextDueTime()
		st := status.Classify(next, today)
		row := RecordRow{
			ID:          r.ID,
			OwnerID:     r.UserID,
			VaccineName: r.VaccineName,
			DoseNumber:  r.DoseNumber,
			DateGiven:   r.DateGivenTime().Format(models.DateLayout),
			NextDue:     models.FormatDate(next),
			Status:      st.String(),
			StatusLabel: st.Label(),
		}
		if r.Owner != nil {
			row.OwnerName = r.Owner.DisplayName()
			row.OwnerEmail = r.Owner.Email
		}
		rows = append(rows, row)
	}
	return rows
}

// ReminderRows projects reminders for display, classified against today
func ReminderRows(reminders []models.Reminder, today time.Time) []ReminderRow {
	rows := make([]ReminderRow, 0, len(reminders))
	for _, r := range reminders {
		due := status.Date(r.DueTime())
		st := status.Classify(&due, today)
		row := ReminderRow{
			ID:          r.ID,
			RecordID:    r.RecordID,
			OwnerID:     r.UserID,
			DueDate:     due.Format(models.DateLayout),
			DaysUntil:   int(due.Sub(today).Hours() / 24),
			Status:      st.String(),
			StatusLabel: st.Label(),
		}
		if r.Record != nil {
			row.VaccineName = r.Record.VaccineName
			row.DoseNumber = r.Record.DoseNumber
		}
		rows = append(rows, row)
	}
	return rows
}

// RecordListView feeds the record list fragment
type RecordListView struct {
	Rows        []RecordRow
	Admin       bool
	Search      string
	Permissions Permissions
}

// ReminderListView feeds the reminder list fragment
type ReminderListView struct {
	Rows  []ReminderRow
	Admin bool
}

// StatsView feeds the stat counters
type StatsView struct {
	Total    int
	UpToDate int
	Upcoming int
	Overdue  int
}

// OwnerOption is one entry of the admin owner picker
type OwnerOption struct {
	ID   string
	Name string
}

// FormView feeds the add/edit record form
type FormView struct {
	RecordID string
	Fields   validation.Fields
	Vaccines []string
	Owners   []OwnerOption
	Admin    bool
	Error    string
	Rule     string
}

// Editing reports whether the form edits an existing record
func (f FormView) Editing() bool {
	return f.RecordID != ""
}

// ConfirmView asks before a record is deleted
type ConfirmView struct {
	RecordID    string
	VaccineName string
	DoseNumber  int
	DateGiven   string
	OwnerName   string
}

// NoticeView is the transient banner
type NoticeView struct {
	Kind    string
	Message string
}

// PageView feeds the full dashboard page
type PageView struct {
	Title       string
	UserName    string
	Role        models.Role
	State       string
	Error       string
	Search      string
	Permissions Permissions
	Notice      *NoticeView
	Stats       template.HTML
	Records     template.HTML
	Reminders   template.HTML
	Form        template.HTML
}
