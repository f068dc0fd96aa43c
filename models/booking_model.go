package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking is the settled unit of a reservation. Rows are created only by the
// settlement flow once payment is confirmed; cancellation is a status
// transition, never a delete.
type Booking struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TutorID    uuid.UUID `gorm:"type:uuid;not null;index" json:"tutor_id"`
	StudentID  uuid.UUID `gorm:"type:uuid;not null;index" json:"student_id"`
	BookedByID uuid.UUID `gorm:"type:uuid;not null;index" json:"booked_by_id"`

	SessionType     string `gorm:"size:100" json:"session_type"`
	SessionDate     string `gorm:"size:10;not null" json:"session_date"`
	StartTime       string `gorm:"size:5;not null" json:"start_time"`
	EndTime         string `gorm:"size:5;not null" json:"end_time"`
	DurationMinutes int    `gorm:"not null" json:"duration_minutes"`

	Status BookingStatus `gorm:"size:30;not null;default:'pending'" json:"status"`

	IsRecurring        bool       `gorm:"default:false" json:"is_recurring"`
	RecurringWeeks     int        `gorm:"default:1" json:"recurring_weeks"`
	ParentBookingID    *uuid.UUID `gorm:"type:uuid;index" json:"parent_booking_id,omitempty"`
	RecurrenceInstance int        `gorm:"default:1" json:"recurrence_instance"`

	IsGroupSession    bool   `gorm:"default:false" json:"is_group_session"`
	GroupSize         int    `gorm:"default:1" json:"group_size"`
	GroupParticipants string `gorm:"type:text" json:"group_participants,omitempty"`

	AmountPaid    float64 `gorm:"type:numeric(10,2);not null" json:"amount_paid"`
	PlatformFee   float64 `gorm:"type:numeric(10,2);not null" json:"platform_fee"`
	TutorEarnings float64 `gorm:"type:numeric(10,2);not null" json:"tutor_earnings"`
	Currency      string  `gorm:"size:3;not null;default:'USD'" json:"currency"`

	// Only the first recurrence instance carries the payment linkage.
	PaymentIntentID      *string    `gorm:"size:255;index" json:"payment_intent_id,omitempty"`
	PaymentTransactionID *uuid.UUID `gorm:"type:uuid" json:"payment_transaction_id,omitempty"`

	Notes              *string    `gorm:"type:text" json:"notes,omitempty"`
	CancellationReason *string    `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledByID      *uuid.UUID `gorm:"type:uuid" json:"cancelled_by_id,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`

	Tutor Tutor `gorm:"foreignkey:TutorID" json:"tutor,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BookingDetails is the client-declared shape of a booking request. It is
// serialized into PaymentTransaction.Metadata at reservation time and read
// back by settlement to materialize the booking rows.
type BookingDetails struct {
	TutorID           string   `json:"tutorId" validate:"required,uuid"`
	StudentID         string   `json:"studentId,omitempty"`
	SessionType       string   `json:"sessionType" validate:"required"`
	Date              string   `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlots         []string `json:"timeSlots" validate:"required,min=1,dive,datetime=15:04"`
	IsGroupSession    bool     `json:"isGroupSession,omitempty"`
	GroupSize         int      `json:"groupSize,omitempty"`
	GroupParticipants []string `json:"groupParticipants,omitempty"`
	IsRecurring       bool     `json:"isRecurring,omitempty"`
	RecurringWeeks    int      `json:"recurringWeeks,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}
