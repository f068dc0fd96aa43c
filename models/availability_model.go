package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AvailabilityWindow is a recurring weekly time range a tutor can be booked
// in. Times are stored as "HH:MM" wall-clock strings in the tutor's zone.
type AvailabilityWindow struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TutorID   uuid.UUID `gorm:"type:uuid;not null;index" json:"tutor_id"`
	DayOfWeek int       `gorm:"not null" json:"day_of_week"`
	StartTime string    `gorm:"size:5;not null" json:"start_time"`
	EndTime   string    `gorm:"size:5;not null" json:"end_time"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (w *AvailabilityWindow) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

const (
	ExceptionUnavailable = "unavailable"
	ExceptionCustomHours = "custom_hours"
)

// AvailabilityException overrides the weekly windows for one calendar date.
// At most one exception exists per tutor and date.
type AvailabilityException struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TutorID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_exception_tutor_date" json:"tutor_id"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_exception_tutor_date" json:"date"`
	Kind      string    `gorm:"size:20;not null" json:"kind"`
	StartTime *string   `gorm:"size:5" json:"start_time,omitempty"`
	EndTime   *string   `gorm:"size:5" json:"end_time,omitempty"`
	Reason    *string   `gorm:"type:text" json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (e *AvailabilityException) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
