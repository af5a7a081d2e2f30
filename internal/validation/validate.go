// Package validation checks record form fields before any store call.
package validation

import (
	"strconv"
	"strings"
	"time"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/status"
	"github.com/localnerve/vaxtrack/internal/types"
)

// Rule names surfaced with every validation error
const (
	RuleVaccineName = "vaccine_name"
	RuleOtherName   = "other_vaccine"
	RuleDoseNumber  = "dose_number"
	RuleDateGiven   = "date_given"
	RuleNextDue     = "next_due"
)

// Fields is the raw record form as submitted
type Fields struct {
	OwnerID      string           `json:"user_id,omitempty" form:"user_id"`
	VaccineName  string           `json:"vaccine_name" form:"vaccine_name"`
	OtherVaccine string           `json:"other_vaccine,omitempty" form:"other_vaccine"`
	DoseNumber   types.FlexString `json:"dose_number" form:"dose_number"`
	DateGiven    string           `json:"date_given" form:"date_given"`
	NextDue      string           `json:"next_due,omitempty" form:"next_due"`
}

// Input is the parsed form, ready for the store
type Input struct {
	OwnerID     string
	VaccineName string
	DoseNumber  int
	DateGiven   time.Time
	NextDue     *time.Time
}

// Validate parses fields and returns the first failing rule as a validation error.
// Dates are calendar dates; today is expected to come from status.Today.
func Validate(f Fields, today time.Time) (Input, error) {
	var in Input
	in.OwnerID = strings.TrimSpace(f.OwnerID)

	name := strings.TrimSpace(f.VaccineName)
	if name == "" {
		return in, types.Validation(RuleVaccineName, "Vaccine name is required")
	}
	if name == models.OtherVaccine {
		name = strings.TrimSpace(f.OtherVaccine)
		if name == "" {
			return in, types.Validation(RuleOtherName, "Enter the vaccine name when selecting Other")
		}
	}
	in.VaccineName = name

	dose, err := strconv.Atoi(strings.TrimSpace(f.DoseNumber.String()))
	if err != nil {
		return in, types.Validation(RuleDoseNumber, "Dose number must be a whole number")
	}
	if dose < 1 {
		return in, types.Validation(RuleDoseNumber, "Dose number must be at least 1")
	}
	in.DoseNumber = dose

	given, err := parseDate(f.DateGiven)
	if err != nil {
		return in, types.Validation(RuleDateGiven, "Date given must be a valid date (YYYY-MM-DD)")
	}
	if given.After(status.Date(today)) {
		return in, types.Validation(RuleDateGiven, "Date given cannot be in the future")
	}
	in.DateGiven = given

	if strings.TrimSpace(f.NextDue) != "" {
		next, err := parseDate(f.NextDue)
		if err != nil {
			return in, types.Validation(RuleNextDue, "Next due date must be a valid date (YYYY-MM-DD)")
		}
		if !next.After(given) {
			return in, types.Validation(RuleNextDue, "Next due date must be after the date given")
		}
		in.NextDue = &next
	}

	return in, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return status.Date(t), nil
}

// FieldsFromRecord populates an edit form from an existing record.
// Names outside the common list come back as Other plus the custom name.
func FieldsFromRecord(r models.VaccinationRecord) Fields {
	f := Fields{
		OwnerID:     r.UserID,
		VaccineName: r.VaccineName,
		DoseNumber:  types.FlexString(strconv.Itoa(r.DoseNumber)),
		DateGiven:   r.DateGivenTime().Format(models.DateLayout),
		NextDue:     models.FormatDate(r.NextDueTime()),
	}
	if !models.IsCommonVaccine(r.VaccineName) {
		f.VaccineName = models.OtherVaccine
		f.OtherVaccine = r.VaccineName
	}
	return f
}
