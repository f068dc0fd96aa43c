package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TutorApprovalPending  = "pending"
	TutorApprovalApproved = "approved"
	TutorApprovalRejected = "rejected"
)

type Tutor struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;unique" json:"user_id"`
	DisplayName    string    `gorm:"size:255;not null" json:"display_name"`
	HourlyRate     float64   `gorm:"type:numeric(10,2);not null" json:"hourly_rate"`
	Currency       string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	ApprovalStatus string    `gorm:"size:20;not null;default:'pending'" json:"approval_status"`

	User User `gorm:"foreignkey:UserID" json:"user,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Bookable reports whether students may reserve sessions with this tutor.
func (t *Tutor) Bookable() bool {
	return t.IsActive && t.ApprovalStatus == TutorApprovalApproved
}

func (t *Tutor) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
