package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TransactionTypePurchase = "purchase"
	TransactionTypeRefund   = "refund"
)

// PaymentTransaction is one row per processor reservation attempt. The
// provider transaction id is globally unique and acts as the idempotency key
// for settlement.
type PaymentTransaction struct {
	ID                    uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TransactionType       string    `gorm:"size:20;not null;default:'purchase'" json:"transaction_type"`
	PaymentProvider       string    `gorm:"size:50;not null" json:"payment_provider"`
	ProviderTransactionID string    `gorm:"size:255;not null;unique" json:"provider_transaction_id"`

	PayerID uuid.UUID `gorm:"type:uuid;not null;index" json:"payer_id"`
	TutorID uuid.UUID `gorm:"type:uuid;not null;index" json:"tutor_id"`

	AmountTotal   float64 `gorm:"type:numeric(10,2);not null" json:"amount_total"`
	PlatformFee   float64 `gorm:"type:numeric(10,2);not null" json:"platform_fee"`
	TutorEarnings float64 `gorm:"type:numeric(10,2);not null" json:"tutor_earnings"`
	Currency      string  `gorm:"size:3;not null;default:'USD'" json:"currency"`

	Status TransactionStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	// Serialized BookingDetails of the original request.
	Metadata      string  `gorm:"type:text" json:"-"`
	FailureReason *string `gorm:"type:text" json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *PaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
