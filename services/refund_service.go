package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/payments"
	"github.com/apexedu/tutor_marketplace/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefundOutcome reports what the cancellation did. A booking with no payment
// linkage cancels fine but carries no refund.
type RefundOutcome struct {
	RefundAmount float64 `json:"refund_amount"`
	RefundID     string  `json:"refund_id,omitempty"`
	RefundStatus string  `json:"refund_status,omitempty"`
	Refunded     bool    `json:"refunded"`
}

// RefundPercent is the tiered cancellation policy: under 24 hours to the
// session refunds half, under 48 three quarters, otherwise everything.
func RefundPercent(hoursUntilSession float64) float64 {
	switch {
	case hoursUntilSession < 24:
		return 0.50
	case hoursUntilSession < 48:
		return 0.75
	default:
		return 1.00
	}
}

// RefundBooking cancels a booking and issues the tiered processor refund.
// The processor call happens first; if it fails the booking stays as it was
// and the error is surfaced verbatim. The later charge.refunded webhook is
// the authoritative confirmation and finds the booking already cancelled, so
// no second refund fires.
func RefundBooking(db *gorm.DB, processor payments.Client, bookingID, callerID uuid.UUID, callerRole, reason string, now time.Time) (*RefundOutcome, error) {
	var booking models.Booking
	if err := db.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if booking.BookedByID != callerID && !models.IsStaff(callerRole) {
		return nil, ErrNotAuthorized
	}

	if booking.Status == models.BookingCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !booking.Status.Live() {
		return nil, ErrNotCancellable
	}

	outcome := &RefundOutcome{}

	if booking.PaymentIntentID != nil {
		if processor == nil {
			return nil, payments.ErrNotConfigured
		}

		sessionStart, err := utils.SessionStart(booking.SessionDate, booking.StartTime)
		if err != nil {
			return nil, err
		}
		hoursUntil := sessionStart.Sub(now).Hours()
		refundAmount := booking.AmountPaid * RefundPercent(hoursUntil)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		refund, err := processor.IssueRefund(ctx, *booking.PaymentIntentID, refundAmount, map[string]string{
			"bookingId":          booking.ID.String(),
			"cancelledBy":        callerID.String(),
			"cancellationReason": reason,
		})
		if err != nil {
			return nil, fmt.Errorf("refund failed: %w", err)
		}

		outcome.RefundAmount = refundAmount
		outcome.RefundID = refund.ID
		outcome.RefundStatus = refund.Status
		outcome.Refunded = true
	}

	if err := cancelBookingRow(db, &booking, callerID, reason, now); err != nil {
		return nil, err
	}

	return outcome, nil
}

// CancelBooking is the refund-free cancellation path (DELETE /bookings/:id).
// It returns whether the booking would be eligible for a refund so the
// client can follow up on the refund endpoint.
func CancelBooking(db *gorm.DB, bookingID, callerID uuid.UUID, callerRole, reason string, now time.Time) (bool, error) {
	var booking models.Booking
	if err := db.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrBookingNotFound
		}
		return false, err
	}

	if booking.BookedByID != callerID && !models.IsStaff(callerRole) {
		return false, ErrNotAuthorized
	}

	if booking.Status == models.BookingCancelled {
		return false, ErrAlreadyCancelled
	}
	if !booking.Status.Live() {
		return false, ErrNotCancellable
	}

	refundEligible := booking.PaymentIntentID != nil && booking.Status == models.BookingConfirmed

	if err := cancelBookingRow(db, &booking, callerID, reason, now); err != nil {
		return false, err
	}

	return refundEligible, nil
}

// cancelBookingRow applies the cancelled transition with a conditional
// update, so a concurrent cancellation of the same row cannot double-apply.
func cancelBookingRow(db *gorm.DB, booking *models.Booking, callerID uuid.UUID, reason string, now time.Time) error {
	if err := booking.TransitionTo(models.BookingCancelled); err != nil {
		return ErrNotCancellable
	}

	if reason == "" {
		reason = "User cancellation"
	}

	result := db.Model(&models.Booking{}).
		Where("id = ? AND status IN ?", booking.ID,
			[]models.BookingStatus{models.BookingPending, models.BookingConfirmed}).
		Updates(map[string]interface{}{
			"status":              models.BookingCancelled,
			"cancellation_reason": reason,
			"cancelled_by_id":     callerID,
			"cancelled_at":        now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyCancelled
	}
	return nil
}
