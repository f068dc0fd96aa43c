package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	config "github.com/apexedu/tutor_marketplace/configs"
	"github.com/apexedu/tutor_marketplace/database"
	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/payments"
	"github.com/apexedu/tutor_marketplace/services"
	"github.com/apexedu/tutor_marketplace/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreatePaymentIntentRequest struct {
	Amount         float64               `json:"amount" validate:"required,gt=0"`
	Currency       string                `json:"currency" validate:"omitempty,len=3"`
	BookingDetails models.BookingDetails `json:"bookingDetails" validate:"required"`
}

// CreatePaymentIntent opens a processor reservation for a booking request.
// The declared amount is recomputed server-side from the tutor's stored rate
// before any money is touched; no booking rows exist until the success
// webhook settles the payment.
func CreatePaymentIntent(c *fiber.Ctx) error {
	payerID, _ := currentUser(c)

	var req CreatePaymentIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	details := req.BookingDetails

	var payer models.User
	if err := database.DB.Where("id = ?", payerID).First(&payer).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
	}
	if payer.IsChildAccount {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Child accounts cannot make payments. Please ask your parent to book.",
		})
	}

	// Booking for someone else is only allowed for your own child accounts.
	if details.StudentID != "" && details.StudentID != payerID.String() {
		studentID, err := uuid.Parse(details.StudentID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student ID"})
		}
		var student models.User
		if err := database.DB.Where("id = ?", studentID).First(&student).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
		}
		if student.ParentID == nil || *student.ParentID != payerID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You can only book sessions for your own children",
			})
		}
	}

	tutorID, _ := uuid.Parse(details.TutorID)
	var tutor models.Tutor
	if err := database.DB.Where("id = ?", tutorID).First(&tutor).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor not found"})
	}
	if !tutor.Bookable() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor is not accepting bookings"})
	}

	basePrice := tutor.HourlyRate
	var sessionType models.SessionType
	if err := database.DB.Where("tutor_id = ? AND name = ? AND is_active = ?",
		tutor.ID, details.SessionType, true).First(&sessionType).Error; err == nil {
		basePrice = sessionType.Price
	}

	pricing := services.CalculatePricing(
		basePrice,
		len(details.TimeSlots),
		details.IsGroupSession,
		details.GroupSize,
		details.IsRecurring,
		details.RecurringWeeks,
	)
	if !services.AmountMatches(req.Amount, pricing.TotalAmount) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":          "Amount mismatch",
			"expectedAmount": pricing.TotalAmount,
		})
	}

	for _, slot := range details.TimeSlots {
		start, _ := utils.ParseClock(slot)
		end := utils.FormatClock(start + 60)
		free, err := services.SlotIsFree(database.DB, tutor.ID, details.Date, slot, end)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to verify availability"})
		}
		if !free {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "This time slot is no longer available",
				"slot":  slot,
			})
		}
	}

	processor := payments.Active
	if processor == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Payment processing is temporarily unavailable",
		})
	}

	currency := req.Currency
	if currency == "" {
		currency = tutor.Currency
	}

	metadataJSON, err := json.Marshal(details)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to encode booking details"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	reservation, err := processor.CreateReservation(ctx, pricing.TotalAmount, currency, map[string]string{
		"payerId": payerID.String(),
		"tutorId": tutor.ID.String(),
		"date":    details.Date,
	})
	if err != nil {
		log.Printf("🔥 Payment reservation failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Payment provider is unavailable, please try again",
		})
	}

	txn := models.PaymentTransaction{
		TransactionType:       models.TransactionTypePurchase,
		PaymentProvider:       "stripe",
		ProviderTransactionID: reservation.ID,
		PayerID:               payerID,
		TutorID:               tutor.ID,
		AmountTotal:           pricing.TotalAmount,
		PlatformFee:           pricing.PlatformFee,
		TutorEarnings:         pricing.TutorEarnings,
		Currency:              currency,
		Status:                models.TransactionPending,
		Metadata:              string(metadataJSON),
	}
	if err := database.DB.Create(&txn).Error; err != nil {
		// Best effort; an orphaned reservation expires on the provider side
		// and the cancel just speeds that up.
		if cancelErr := processor.CancelReservation(ctx, reservation.ID); cancelErr != nil {
			log.Printf("⚠️ Failed to cancel orphaned reservation %s: %v", reservation.ID, cancelErr)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record transaction"})
	}

	return c.JSON(fiber.Map{
		"clientSecret":    reservation.ClientSecret,
		"paymentIntentId": reservation.ID,
		"transactionId":   txn.ID,
		"amount":          pricing.TotalAmount,
		"currency":        currency,
	})
}

// HandleWebhook receives processor events. The signature is verified before
// anything is parsed; settlement itself is idempotent, so the processor may
// deliver the same event any number of times.
func HandleWebhook(c *fiber.Ctx) error {
	secret := config.Config("STRIPE_WEBHOOK_SECRET")
	if secret == "" {
		log.Println("🔥 STRIPE_WEBHOOK_SECRET is not configured")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Webhook not configured"})
	}

	event, err := payments.VerifyAndParseEvent(c.Body(), c.Get("Stripe-Signature"), secret)
	if err != nil {
		log.Printf("⚠️ Webhook rejected: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook signature"})
	}

	if err := services.SettleEvent(database.DB, event); err != nil {
		// Non-2xx makes the provider redeliver; settlement tolerates replays.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Settlement failed"})
	}

	return c.JSON(fiber.Map{"received": true})
}

type RefundRequest struct {
	BookingID string `json:"bookingId" validate:"required,uuid"`
	Reason    string `json:"reason"`
}

// ProcessRefund cancels a booking with the tiered refund applied.
func ProcessRefund(c *fiber.Ctx) error {
	userID, role := currentUser(c)

	var req RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	bookingID, _ := uuid.Parse(req.BookingID)

	outcome, err := services.RefundBooking(database.DB, payments.Active, bookingID, userID, role, req.Reason, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookingNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		case errors.Is(err, services.ErrNotAuthorized):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
		case errors.Is(err, services.ErrAlreadyCancelled):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Booking is already cancelled"})
		case errors.Is(err, services.ErrNotCancellable):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Booking can no longer be cancelled"})
		case errors.Is(err, payments.ErrNotConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Payment processing is temporarily unavailable"})
		default:
			log.Printf("🔥 Refund failed for booking %s: %v", bookingID, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Refund could not be processed, please try again"})
		}
	}

	return c.JSON(fiber.Map{
		"message": "Booking cancelled successfully",
		"refund":  outcome,
	})
}
