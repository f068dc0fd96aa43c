package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionType struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TutorID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_session_type_tutor_name" json:"tutor_id"`
	Name            string    `gorm:"size:100;not null;uniqueIndex:idx_session_type_tutor_name" json:"name"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	Price           float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	DisplayOrder    int       `gorm:"default:0" json:"display_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (s *SessionType) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
