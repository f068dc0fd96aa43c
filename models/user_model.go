package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RolePersonal = "personal"
	RoleParent   = "parent"
	RoleTutor    = "tutor"
	RoleAdmin    = "admin"
	RoleOwner    = "owner"
)

// IsStaff reports whether a role may act on any booking or tutor record.
func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleOwner
}

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	FullName string    `gorm:"size:255;not null" json:"full_name"`
	Email    string    `gorm:"size:255;not null;unique" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Role     string    `gorm:"size:20;not null;default:'personal'" json:"role"`

	// Child-managed accounts are booked for by their parent and may not
	// open reservations themselves.
	IsChildAccount bool       `gorm:"default:false" json:"is_child_account"`
	ParentID       *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
