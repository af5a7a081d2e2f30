package store

import (
	"context"
	"errors"

	"github.com/localnerve/vaxtrack/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListOpenReminders returns unsent reminders with a record projection,
// soonest first.
func (s *Store) ListOpenReminders(ctx context.Context, caller Caller, ownerFilter string) ([]models.Reminder, error) {
	owner := ownerScope(caller, ownerFilter)

	var reminders []models.Reminder
	err := s.scoped(ctx, caller, func(tx *gorm.DB) error {
		q := tag(tx, "select", "reminders.open").
			Preload("Record", func(db *gorm.DB) *gorm.DB {
				return db.Select("id", "user_id", "vaccine_name", "dose_number")
			}).
			Where("sent = ?", false).
			Order("due_date ASC")
		if owner != "" {
			q = q.Where("user_id = ?", owner)
		}
		return q.Find(&reminders).Error
	})
	if err != nil {
		return nil, mapError("list reminders", err)
	}
	return reminders, nil
}

// syncReminder mirrors rec.NextDue onto its reminder: create, update or delete.
// Failures are logged and counted, never returned.
func (s *Store) syncReminder(ctx context.Context, caller Caller, op string, rec *models.VaccinationRecord) {
	err := s.scoped(ctx, caller, func(tx *gorm.DB) error {
		var reminder models.Reminder
		err := tag(tx, "select", "reminders.get").
			Where("record_id = ?", rec.ID).
			First(&reminder).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		switch {
		case rec.NextDue == nil && found:
			return tag(tx, "delete", "reminders.delete").Delete(&reminder).Error
		case rec.NextDue == nil:
			return nil
		case found:
			return tag(tx, "update", "reminders.update").
				Model(&reminder).
				Updates(map[string]interface{}{
					"due_date": *rec.NextDue,
					"user_id":  rec.UserID,
				}).Error
		default:
			return tag(tx, "insert", "reminders.insert").Create(&models.Reminder{
				UserID:   rec.UserID,
				RecordID: rec.ID,
				DueDate:  *rec.NextDue,
			}).Error
		}
	})
	if err != nil {
		s.metrics.ReminderSyncFailure()
		s.log.Warn("reminder sync failed",
			zap.String("op", op),
			zap.String("record_id", rec.ID),
			zap.Error(err))
	}
}
