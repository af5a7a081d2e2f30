package render

import (
	"strings"
	"testing"
	"time"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	return r
}

func date(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func sampleRecords() []models.VaccinationRecord {
	next := models.NewDate(date("2024-07-01"))
	return []models.VaccinationRecord{
		{
			ID:          "rec-1",
			UserID:      "alice-1",
			VaccineName: "COVID-19",
			DoseNumber:  2,
			DateGiven:   models.NewDate(date("2024-06-01")),
			NextDue:     &next,
			Owner:       &models.Profile{ID: "alice-1", Email: "alice@example.com", FullName: "Alice Example"},
		},
		{
			ID:          "rec-2",
			UserID:      "alice-1",
			VaccineName: "MMR",
			DoseNumber:  1,
			DateGiven:   models.NewDate(date("2020-01-10")),
		},
	}
}

func TestDeriveViewPermissions(t *testing.T) {
	assert.Equal(t, Permissions{CanAdd: true, CanEdit: true, CanDelete: true}, DeriveViewPermissions(models.RoleAdmin))
	assert.Equal(t, Permissions{}, DeriveViewPermissions(models.RoleUser))
	assert.Equal(t, Permissions{}, DeriveViewPermissions(""))
}

func TestRecordRows(t *testing.T) {
	rows := RecordRows(sampleRecords(), today)
	require.Len(t, rows, 2)

	assert.Equal(t, "due-soon", rows[0].Status)
	assert.Equal(t, "2024-07-01", rows[0].NextDue)
	assert.Equal(t, "Alice Example", rows[0].OwnerName)
	assert.Equal(t, "complete", rows[1].Status)
	assert.Empty(t, rows[1].NextDue)
}

func TestReminderRows(t *testing.T) {
	rows := ReminderRows([]models.Reminder{
		{ID: "rem-1", RecordID: "rec-1", DueDate: models.NewDate(date("2024-06-25")),
			Record: &models.VaccinationRecord{VaccineName: "Tdap", DoseNumber: 3}},
		{ID: "rem-2", RecordID: "rec-2", DueDate: models.NewDate(date("2024-06-10"))},
	}, today)
	require.Len(t, rows, 2)

	assert.Equal(t, 10, rows[0].DaysUntil)
	assert.Equal(t, "Tdap", rows[0].VaccineName)
	assert.Equal(t, "due-soon", rows[0].Status)
	assert.Equal(t, -5, rows[1].DaysUntil)
	assert.Equal(t, "overdue", rows[1].Status)
}

func TestRecordListAffordances(t *testing.T) {
	r := newRenderer(t)
	rows := RecordRows(sampleRecords(), today)

	admin, err := r.RecordList(RecordListView{Rows: rows, Admin: true, Permissions: DeriveViewPermissions(models.RoleAdmin)})
	require.NoError(t, err)
	assert.Contains(t, string(admin), `data-action="edit"`)
	assert.Contains(t, string(admin), `data-action="delete"`)
	assert.Contains(t, string(admin), "Alice Example")

	user, err := r.RecordList(RecordListView{Rows: rows, Permissions: DeriveViewPermissions(models.RoleUser)})
	require.NoError(t, err)
	assert.NotContains(t, string(user), `data-action="edit"`)
	assert.NotContains(t, string(user), `data-action="delete"`)
	assert.NotContains(t, string(user), "Alice Example")
	assert.Equal(t, 2, strings.Count(string(user), "record-card"))
}

func TestRecordListEmptyStates(t *testing.T) {
	r := newRenderer(t)

	search, err := r.RecordList(RecordListView{Search: "<polio>", Admin: true})
	require.NoError(t, err)
	assert.Contains(t, string(search), "No records match")
	assert.Contains(t, string(search), "&lt;polio&gt;")

	admin, err := r.RecordList(RecordListView{Admin: true})
	require.NoError(t, err)
	assert.Contains(t, string(admin), "No vaccination records have been entered yet")

	user, err := r.RecordList(RecordListView{})
	require.NoError(t, err)
	assert.Contains(t, string(user), "You have no vaccination records yet")
}

func TestReminderListEmptyStates(t *testing.T) {
	r := newRenderer(t)

	admin, err := r.ReminderList(ReminderListView{Admin: true})
	require.NoError(t, err)
	assert.Contains(t, string(admin), "No open reminders across all users")

	user, err := r.ReminderList(ReminderListView{})
	require.NoError(t, err)
	assert.Contains(t, string(user), "You have no upcoming vaccinations")
}

func TestStats(t *testing.T) {
	r := newRenderer(t)
	out, err := r.Stats(StatsView{Total: 1, UpToDate: 1, Upcoming: 0, Overdue: 3})
	require.NoError(t, err)
	assert.Contains(t, string(out), `data-stat="total">1<`)
	assert.Contains(t, string(out), "Total record<")
	assert.Contains(t, string(out), `data-stat="overdue">3<`)
}

func TestFormPopulation(t *testing.T) {
	r := newRenderer(t)
	fields := validation.FieldsFromRecord(models.VaccinationRecord{
		ID:          "rec-9",
		UserID:      "alice-1",
		VaccineName: "Yellow Fever",
		DoseNumber:  1,
		DateGiven:   models.NewDate(date("2024-01-02")),
	})

	out, err := r.Form(FormView{
		RecordID: "rec-9",
		Fields:   fields,
		Admin:    true,
		Owners:   []OwnerOption{{ID: "alice-1", Name: "Alice"}, {ID: "bob-1", Name: "Bob"}},
	})
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, `action="/dashboard/records/rec-9"`)
	assert.NotContains(t, html, "data-method")
	assert.Contains(t, html, `<option value="Other" selected>`)
	assert.Contains(t, html, `value="Yellow Fever"`)
	assert.Contains(t, html, `<option value="alice-1" selected>`)
	assert.Contains(t, html, `value="2024-01-02"`)
}

func TestPageErrorState(t *testing.T) {
	r := newRenderer(t)
	out, err := r.Page(PageView{State: "error", Error: "no authenticated session"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "no authenticated session")
	assert.Contains(t, string(out), "/dashboard/retry")
	assert.NotContains(t, string(out), "Add Record")
}

func TestPageReady(t *testing.T) {
	r := newRenderer(t)
	records, err := r.RecordList(RecordListView{Rows: RecordRows(sampleRecords(), today), Admin: true, Permissions: DeriveViewPermissions(models.RoleAdmin)})
	require.NoError(t, err)

	out, err := r.Page(PageView{
		UserName:    "Ada",
		Role:        models.RoleAdmin,
		State:       "ready",
		Permissions: DeriveViewPermissions(models.RoleAdmin),
		Notice:      &NoticeView{Kind: "success", Message: "Vaccination record added"},
		Records:     records,
	})
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "Ada (admin)")
	assert.Contains(t, html, "notice-success")
	assert.Contains(t, html, "Add Record")
	assert.Contains(t, html, `data-record-id="rec-1"`)
}

func TestConfirmDelete(t *testing.T) {
	r := newRenderer(t)
	out, err := r.ConfirmDelete(ConfirmView{
		RecordID:    "rec-1",
		VaccineName: "COVID-19",
		DoseNumber:  2,
		DateGiven:   "2024-01-01",
		OwnerName:   "Alice",
	})
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, `action="/dashboard/records/rec-1/delete"`)
	assert.Contains(t, html, `name="confirm" value="true"`)
	assert.Contains(t, html, "Delete COVID-19 dose 2 given 2024-01-01 for Alice?")
}

func TestRecordActionsAreLinks(t *testing.T) {
	r := newRenderer(t)
	out, err := r.RecordList(RecordListView{
		Rows:        RecordRows(sampleRecords(), today),
		Admin:       true,
		Permissions: DeriveViewPermissions(models.RoleAdmin),
	})
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, `href="/dashboard?edit=rec-1"`)
	assert.Contains(t, html, `href="/dashboard?delete=rec-1"`)
}
