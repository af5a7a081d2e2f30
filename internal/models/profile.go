package models

import (
	"time"
)

// Role is the coarse authorization flag carried on a profile
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsAdmin reports whether the role grants read/write across all owners
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Profile is the 1:1 shadow of an authenticated identity
type Profile struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Email     string `gorm:"uniqueIndex;size:255;not null"`
	FullName  string `gorm:"size:255"`
	Role      Role   `gorm:"size:16;not null;default:user"`
	CreatedAt time.Time
}

// TableName overrides the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// DisplayName prefers the full name and falls back to the email
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}
