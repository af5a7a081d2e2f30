// Package render turns dashboard values into HTML fragments.
//
// Renderers read only the view values they are given. They never hold or
// mutate dashboard state.
package render

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/valyala/bytebufferpool"
)

//go:embed templates/*.html
var templateFS embed.FS

// Fragment template names
const (
	tmplRecords   = "records"
	tmplReminders = "reminders"
	tmplStats     = "stats"
	tmplForm      = "form"
	tmplConfirm   = "confirm"
	tmplPage      = "page"
)

// Renderer executes the embedded templates
type Renderer struct {
	t *template.Template
}

// New parses the embedded templates
func New() (*Renderer, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"isOther": func(name string) bool {
			return name == models.OtherVaccine
		},
		"plural": func(n int, one, many string) string {
			if n == 1 {
				return one
			}
			return many
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{t: t}, nil
}

func (r *Renderer) execute(name string, data interface{}) (template.HTML, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := r.t.ExecuteTemplate(buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// RecordList renders the record cards or the matching empty state
func (r *Renderer) RecordList(v RecordListView) (template.HTML, error) {
	return r.execute(tmplRecords, v)
}

// ReminderList renders open reminders or the role's empty state
func (r *Renderer) ReminderList(v ReminderListView) (template.HTML, error) {
	return r.execute(tmplReminders, v)
}

// Stats renders the four counters
func (r *Renderer) Stats(v StatsView) (template.HTML, error) {
	return r.execute(tmplStats, v)
}

// Form renders the add/edit record form
func (r *Renderer) Form(v FormView) (template.HTML, error) {
	if v.Vaccines == nil {
		v.Vaccines = models.CommonVaccines
	}
	return r.execute(tmplForm, v)
}

// ConfirmDelete renders the delete confirmation for one record
func (r *Renderer) ConfirmDelete(v ConfirmView) (template.HTML, error) {
	return r.execute(tmplConfirm, v)
}

// Page renders the full dashboard around pre-rendered fragments
func (r *Renderer) Page(v PageView) (template.HTML, error) {
	if v.Title == "" {
		v.Title = "Vaccination Records"
	}
	return r.execute(tmplPage, v)
}
