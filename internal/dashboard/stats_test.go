package dashboard

import (
	"testing"
	"time"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	today := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	yesterday := models.NewDate(today.AddDate(0, 0, -1))

	records := []models.VaccinationRecord{
		{VaccineName: "MMR"},
		{VaccineName: "Tdap", NextDue: &yesterday},
	}
	reminders := []models.Reminder{
		{DueDate: yesterday},
		{DueDate: models.NewDate(today.AddDate(0, 0, 10))},
	}

	assert.Equal(t, Stats{Total: 2, UpToDate: 1, Overdue: 1, Upcoming: 1}, ComputeStats(records, reminders, today))
}

func TestComputeStatsBoundaries(t *testing.T) {
	today := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	due := func(days int) models.Reminder {
		return models.Reminder{DueDate: models.NewDate(today.AddDate(0, 0, days))}
	}
	todayDate := models.NewDate(today)

	stats := ComputeStats(
		[]models.VaccinationRecord{{NextDue: &todayDate}},
		[]models.Reminder{due(0), due(30), due(31), due(-30)},
		today.Add(13*time.Hour),
	)
	assert.Equal(t, 1, stats.Total)
	assert.Zero(t, stats.UpToDate, "due today is not in the future")
	assert.Equal(t, 2, stats.Upcoming)
	assert.Equal(t, 1, stats.Overdue)

	assert.Equal(t, Stats{}, ComputeStats(nil, nil, today))
}
