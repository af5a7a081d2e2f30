package store

import (
	"context"
	"time"

	"github.com/localnerve/vaxtrack/internal/models"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/localnerve/vaxtrack/internal/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ownerScope resolves the effective owner filter for caller
func ownerScope(caller Caller, ownerFilter string) string {
	if !caller.Admin {
		return caller.ID
	}
	return ownerFilter
}

func optionalDate(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := models.NewDate(*t)
	return &d
}

// ListRecords returns records ordered by date given, newest first.
// Non-admin callers only ever see their own rows, whatever ownerFilter says.
func (s *Store) ListRecords(ctx context.Context, caller Caller, ownerFilter string) ([]models.VaccinationRecord, error) {
	owner := ownerScope(caller, ownerFilter)

	var records []models.VaccinationRecord
	err := s.scoped(ctx, caller, func(tx *gorm.DB) error {
		q := tag(tx, "select", "records.list").
			Order("date_given DESC").
			Order("created_at DESC")
		if owner != "" {
			q = q.Where("user_id = ?", owner)
		}
		return q.Find(&records).Error
	})
	if err != nil {
		return nil, mapError("list records", err)
	}

	s.attachOwners(ctx, records)
	return records, nil
}

// GetRecord returns one record visible to caller
func (s *Store) GetRecord(ctx context.Context, caller Caller, id string) (*models.VaccinationRecord, error) {
	var rec models.VaccinationRecord
	err := s.scoped(ctx, caller, func(tx *gorm.DB) error {
		return visible(tag(tx, "select", "records.get"), caller).
			Where("id = ?", id).
			First(&rec).Error
	})
	if err != nil {
		return nil, mapError("get record", err)
	}
	return &rec, nil
}

// visible restricts q to rows the caller may see
func visible(q *gorm.DB, caller Caller) *gorm.DB {
	if caller.Admin {
		return q
	}
	return q.Where("user_id = ?", caller.ID)
}

// InsertRecord validates fields and creates a record owned by fields.OwnerID,
// defaulting to the caller. A reminder is created when next_due is set; its
// failure is logged and does not roll back the record.
func (s *Store) InsertRecord(ctx context.Context, caller Caller, fields validation.Fields) (*models.VaccinationRecord, error) {
	in, err := validation.Validate(fields, s.Today())
	if err != nil {
		return nil, err
	}

	owner := in.OwnerID
	if owner == "" {
		owner = caller.ID
	}
	if owner != caller.ID && !caller.Admin {
		return nil, types.AccessDenied("cannot create records for another owner")
	}

	rec := &models.VaccinationRecord{
		UserID:      owner,
		VaccineName: in.VaccineName,
		DoseNumber:  in.DoseNumber,
		DateGiven:   models.NewDate(in.DateGiven),
		NextDue:     optionalDate(in.NextDue),
	}

	err = s.scoped(ctx, caller, func(tx *gorm.DB) error {
		return tag(tx, "insert", "records.insert").Create(rec).Error
	})
	if err != nil {
		return nil, mapError("insert record", err)
	}

	if rec.NextDue != nil {
		s.syncReminder(ctx, caller, "insert", rec)
	}
	return rec, nil
}

// UpdateRecord validates fields and replaces every field of record id, then
// mirrors next_due onto its reminder.
func (s *Store) UpdateRecord(ctx context.Context, caller Caller, id string, fields validation.Fields) error {
	in, err := validation.Validate(fields, s.Today())
	if err != nil {
		return err
	}

	var rec models.VaccinationRecord
	err = s.scoped(ctx, caller, func(tx *gorm.DB) error {
		if err := visible(tag(tx, "select", "records.get"), caller).
			Where("id = ?", id).
			First(&rec).Error; err != nil {
			return err
		}

		if in.OwnerID != "" && in.OwnerID != rec.UserID {
			if !caller.Admin {
				return types.AccessDenied("cannot move records to another owner")
			}
			rec.UserID = in.OwnerID
		}
		rec.VaccineName = in.VaccineName
		rec.DoseNumber = in.DoseNumber
		rec.DateGiven = models.NewDate(in.DateGiven)
		rec.NextDue = optionalDate(in.NextDue)

		return tag(tx, "update", "records.update").
			Model(&rec).
			Select("user_id", "vaccine_name", "dose_number", "date_given", "next_due").
			Updates(&rec).Error
	})
	if err != nil {
		return mapError("update record", err)
	}

	s.syncReminder(ctx, caller, "update", &rec)
	return nil
}

// DeleteRecord removes record id and its reminder
func (s *Store) DeleteRecord(ctx context.Context, caller Caller, id string) error {
	err := s.scoped(ctx, caller, func(tx *gorm.DB) error {
		var rec models.VaccinationRecord
		if err := tag(tx, "select", "records.get").Where("id = ?", id).First(&rec).Error; err != nil {
			return err
		}
		if rec.UserID != caller.ID && !caller.Admin {
			return types.AccessDenied("cannot delete another owner's record")
		}

		if err := tag(tx, "delete", "reminders.cascade").
			Where("record_id = ?", rec.ID).
			Delete(&models.Reminder{}).Error; err != nil {
			return err
		}
		return tag(tx, "delete", "records.delete").Delete(&rec).Error
	})
	return mapError("delete record", err)
}
