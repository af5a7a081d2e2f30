package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DateLayout is the wire and form layout of every calendar date
const DateLayout = "2006-01-02"

// OtherVaccine is the selection sentinel that requires a custom vaccine name
const OtherVaccine = "Other"

// CommonVaccines is the fixed selection offered by the record form
var CommonVaccines = []string{
	"COVID-19",
	"Influenza",
	"Hepatitis A",
	"Hepatitis B",
	"MMR",
	"Tdap",
	"HPV",
	"Varicella",
	"Shingles",
	"Pneumococcal",
	"Meningococcal",
	"Polio",
}

// IsCommonVaccine reports whether name is one of CommonVaccines
func IsCommonVaccine(name string) bool {
	for _, v := range CommonVaccines {
		if v == name {
			return true
		}
	}
	return false
}

// VaccinationRecord is one dose given to an owner
type VaccinationRecord struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)"`
	UserID      string          `gorm:"type:varchar(36);not null;index"`
	VaccineName string          `gorm:"size:255;not null"`
	DoseNumber  int             `gorm:"not null"`
	DateGiven   datatypes.Date  `gorm:"not null;index"`
	NextDue     *datatypes.Date `gorm:"index"`
	CreatedAt   time.Time
	Owner       *Profile `gorm:"foreignKey:UserID;references:ID"`
}

// TableName overrides the table name for VaccinationRecord
func (VaccinationRecord) TableName() string {
	return "vaccination_records"
}

// BeforeCreate assigns a UUID when the caller did not
func (r *VaccinationRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// DateGivenTime returns the date given as midnight UTC
func (r VaccinationRecord) DateGivenTime() time.Time {
	return time.Time(r.DateGiven)
}

// NextDueTime returns the next due date as midnight UTC, or nil
func (r VaccinationRecord) NextDueTime() *time.Time {
	return DateTime(r.NextDue)
}

// Reminder tracks a record's next due date for read-side classification.
// Sent is stored but never transitioned.
type Reminder struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)"`
	UserID    string         `gorm:"type:varchar(36);not null;index"`
	RecordID  string         `gorm:"type:varchar(36);not null;uniqueIndex"`
	DueDate   datatypes.Date `gorm:"not null;index"`
	Sent      bool           `gorm:"not null;default:false"`
	CreatedAt time.Time
	Record    *VaccinationRecord `gorm:"foreignKey:RecordID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name for Reminder
func (Reminder) TableName() string {
	return "reminders"
}

// BeforeCreate assigns a UUID when the caller did not
func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// DueTime returns the due date as midnight UTC
func (r Reminder) DueTime() time.Time {
	return time.Time(r.DueDate)
}

// NewDate truncates t to its calendar date at midnight UTC
func NewDate(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// DateTime converts an optional date to an optional time
func DateTime(d *datatypes.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := time.Time(*d)
	return &t
}

// FormatDate renders an optional date with DateLayout, or "" when absent
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
