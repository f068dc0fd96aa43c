package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/notifications"
	"github.com/apexedu/tutor_marketplace/payments"
	"github.com/apexedu/tutor_marketplace/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SettleEvent applies one verified processor event. Duplicate deliveries of
// the same event are acknowledged without effect.
func SettleEvent(db *gorm.DB, event *payments.Event) error {
	switch event.Type {
	case payments.EventPaymentSucceeded:
		return HandlePaymentSucceeded(db, event.ProviderTransactionID)
	case payments.EventPaymentFailed:
		return HandlePaymentFailed(db, event.ProviderTransactionID, event.FailureReason)
	case payments.EventChargeRefunded:
		return HandleChargeRefunded(db, event.ProviderTransactionID)
	default:
		log.Printf("[WEBHOOK] Unhandled event type: %s", event.Type)
		return nil
	}
}

// HandlePaymentSucceeded moves the transaction pending→completed and
// materializes its bookings. The status flip is a single conditional UPDATE,
// so of two concurrent deliveries exactly one proceeds to materialize.
func HandlePaymentSucceeded(db *gorm.DB, providerTxnID string) error {
	result := db.Model(&models.PaymentTransaction{}).
		Where("provider_transaction_id = ? AND status = ?", providerTxnID, models.TransactionPending).
		Update("status", models.TransactionCompleted)
	if result.Error != nil {
		return result.Error
	}

	var txn models.PaymentTransaction
	if err := db.Where("provider_transaction_id = ?", providerTxnID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTransactionNotFound
		}
		return err
	}

	if result.RowsAffected == 0 {
		// Lost the race or a replayed delivery: the transaction already
		// left pending. Acknowledge without touching bookings.
		log.Printf("[WEBHOOK] Duplicate success event for %s (status %s), ignoring", providerTxnID, txn.Status)
		return nil
	}

	if err := MaterializeBookings(db, &txn); err != nil {
		// The payment is settled but the customer has no booking. Keep the
		// transaction completed and surface the fault; the reconciliation
		// job retries and operators get paged.
		log.Printf("🔥 CRITICAL: transaction %s completed but booking materialization failed: %v", txn.ID, err)
		notifications.NotifyOperators(
			"Booking materialization failed",
			fmt.Sprintf("Payment transaction %s (provider id %s) is completed but has no bookings: %v", txn.ID, providerTxnID, err),
		)
		return err
	}

	return nil
}

// MaterializeBookings inserts one confirmed booking per recurring week inside
// a single transaction. It is safe to call again for an already-materialized
// transaction (the reconciliation job does).
func MaterializeBookings(db *gorm.DB, txn *models.PaymentTransaction) error {
	var details models.BookingDetails
	if err := json.Unmarshal([]byte(txn.Metadata), &details); err != nil {
		return fmt.Errorf("cannot decode booking details for transaction %s: %w", txn.ID, err)
	}

	weeks := 1
	if details.IsRecurring && details.RecurringWeeks > 1 {
		weeks = details.RecurringWeeks
	}

	studentID := txn.PayerID
	if details.StudentID != "" {
		parsed, err := uuid.Parse(details.StudentID)
		if err != nil {
			return fmt.Errorf("invalid student id in booking details: %w", err)
		}
		studentID = parsed
	}

	startTime := details.TimeSlots[0]
	lastSlot, err := utils.ParseClock(details.TimeSlots[len(details.TimeSlots)-1])
	if err != nil {
		return err
	}
	endTime := utils.FormatClock(lastSlot + 60)
	durationMinutes := len(details.TimeSlots) * 60

	participants, _ := json.Marshal(details.GroupParticipants)

	return db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Booking{}).Where("payment_transaction_id = ?", txn.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		now := time.Now()
		var parentBookingID *uuid.UUID

		for week := 0; week < weeks; week++ {
			sessionDate, err := utils.AddDays(details.Date, 7*week)
			if err != nil {
				return err
			}

			booking := models.Booking{
				TutorID:            txn.TutorID,
				StudentID:          studentID,
				BookedByID:         txn.PayerID,
				SessionType:        details.SessionType,
				SessionDate:        sessionDate,
				StartTime:          startTime,
				EndTime:            endTime,
				DurationMinutes:    durationMinutes,
				Status:             models.BookingConfirmed,
				IsRecurring:        details.IsRecurring,
				RecurringWeeks:     weeks,
				ParentBookingID:    parentBookingID,
				RecurrenceInstance: week + 1,
				IsGroupSession:     details.IsGroupSession,
				GroupSize:          maxInt(details.GroupSize, 1),
				GroupParticipants:  string(participants),
				AmountPaid:         txn.AmountTotal / float64(weeks),
				PlatformFee:        txn.PlatformFee / float64(weeks),
				TutorEarnings:      txn.TutorEarnings / float64(weeks),
				Currency:           txn.Currency,
				ConfirmedAt:        &now,
			}
			if details.Notes != "" {
				booking.Notes = &details.Notes
			}
			if week == 0 {
				booking.PaymentIntentID = &txn.ProviderTransactionID
				booking.PaymentTransactionID = &txn.ID
			}

			if err := tx.Create(&booking).Error; err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %s %s", ErrSlotTaken, sessionDate, startTime)
				}
				return err
			}

			if week == 0 {
				id := booking.ID
				parentBookingID = &id
			}
		}

		return nil
	})
}

// HandlePaymentFailed records the provider's failure reason. No bookings are
// ever created for a failed payment.
func HandlePaymentFailed(db *gorm.DB, providerTxnID, reason string) error {
	if reason == "" {
		reason = "Payment failed"
	}

	result := db.Model(&models.PaymentTransaction{}).
		Where("provider_transaction_id = ? AND status = ?", providerTxnID, models.TransactionPending).
		Updates(map[string]interface{}{
			"status":         models.TransactionFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		log.Printf("[WEBHOOK] Failure event for %s ignored (not pending)", providerTxnID)
	}
	return nil
}

// HandleChargeRefunded covers processor-initiated refunds such as
// chargebacks: the transaction becomes refunded and every booking it
// materialized is cancelled.
func HandleChargeRefunded(db *gorm.DB, providerTxnID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PaymentTransaction{}).
			Where("provider_transaction_id = ? AND status = ?", providerTxnID, models.TransactionCompleted).
			Update("status", models.TransactionRefunded)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			log.Printf("[WEBHOOK] Refund event for %s ignored (not completed)", providerTxnID)
			return nil
		}

		var parent models.Booking
		err := tx.Where("payment_intent_id = ?", providerTxnID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// completed-but-unmaterialized transaction; nothing to cascade
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now()
		reason := "Payment refunded by processor"
		return tx.Model(&models.Booking{}).
			Where("(id = ? OR parent_booking_id = ?) AND status IN ?",
				parent.ID, parent.ID,
				[]models.BookingStatus{models.BookingPending, models.BookingConfirmed}).
			Updates(map[string]interface{}{
				"status":              models.BookingCancelled,
				"cancellation_reason": reason,
				"cancelled_at":        now,
			}).Error
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
