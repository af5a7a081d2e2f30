package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var today = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func valid() Fields {
	return Fields{
		VaccineName: "COVID-19",
		DoseNumber:  "1",
		DateGiven:   "2024-01-01",
		NextDue:     "2024-07-01",
	}
}

func assertRule(t *testing.T, err error, rule string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.Equal(t, rule, types.Rule(err))
}

func TestValidateAccepts(t *testing.T) {
	in, err := Validate(valid(), today)
	require.NoError(t, err)

	assert.Equal(t, "COVID-19", in.VaccineName)
	assert.Equal(t, 1, in.DoseNumber)
	assert.Equal(t, "2024-01-01", in.DateGiven.Format(models.DateLayout))
	require.NotNil(t, in.NextDue)
	assert.Equal(t, "2024-07-01", in.NextDue.Format(models.DateLayout))
}

func TestValidateVaccineName(t *testing.T) {
	f := valid()
	f.VaccineName = "  "
	_, err := Validate(f, today)
	assertRule(t, err, RuleVaccineName)

	f.VaccineName = models.OtherVaccine
	_, err = Validate(f, today)
	assertRule(t, err, RuleOtherName)

	f.OtherVaccine = "Yellow Fever"
	in, err := Validate(f, today)
	require.NoError(t, err)
	assert.Equal(t, "Yellow Fever", in.VaccineName)
}

func TestValidateDoseNumber(t *testing.T) {
	for _, dose := range []types.FlexString{"0", "-1", "abc", "", "1.5"} {
		f := valid()
		f.DoseNumber = dose
		_, err := Validate(f, today)
		assertRule(t, err, RuleDoseNumber)
	}

	f := valid()
	f.DoseNumber = "1"
	_, err := Validate(f, today)
	assert.NoError(t, err)
}

func TestValidateDateGiven(t *testing.T) {
	f := valid()
	f.NextDue = ""

	f.DateGiven = "2024-06-16"
	_, err := Validate(f, today)
	assertRule(t, err, RuleDateGiven)

	f.DateGiven = "not-a-date"
	_, err = Validate(f, today)
	assertRule(t, err, RuleDateGiven)

	f.DateGiven = "2024-06-15"
	_, err = Validate(f, today)
	assert.NoError(t, err)
}

func TestValidateNextDue(t *testing.T) {
	f := valid()
	f.DateGiven = "2024-03-01"

	f.NextDue = "2024-03-01"
	_, err := Validate(f, today)
	assertRule(t, err, RuleNextDue)

	f.NextDue = "2024-02-28"
	_, err = Validate(f, today)
	assertRule(t, err, RuleNextDue)

	f.NextDue = "2024-13-40"
	_, err = Validate(f, today)
	assertRule(t, err, RuleNextDue)

	f.NextDue = "2024-03-02"
	in, err := Validate(f, today)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", in.NextDue.Format(models.DateLayout))

	f.NextDue = ""
	in, err = Validate(f, today)
	require.NoError(t, err)
	assert.Nil(t, in.NextDue)
}

func TestFieldsFromRecord(t *testing.T) {
	next := datatypes.Date(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := models.VaccinationRecord{
		UserID:      "owner-1",
		VaccineName: "Yellow Fever",
		DoseNumber:  2,
		DateGiven:   datatypes.Date(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		NextDue:     &next,
	}

	f := FieldsFromRecord(rec)
	assert.Equal(t, models.OtherVaccine, f.VaccineName)
	assert.Equal(t, "Yellow Fever", f.OtherVaccine)
	assert.Equal(t, types.FlexString("2"), f.DoseNumber)
	assert.Equal(t, "2024-01-01", f.DateGiven)
	assert.Equal(t, "2025-01-01", f.NextDue)

	_, err := Validate(f, today)
	assert.NoError(t, err)
}
