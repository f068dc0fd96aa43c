package handlers

import (
	"errors"
	"time"

	"github.com/apexedu/tutor_marketplace/database"
	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/services"
	"github.com/apexedu/tutor_marketplace/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GetMyBookings lists bookings where the caller is the student or the payer.
// Optional filters: ?status=confirmed and ?upcoming=true.
func GetMyBookings(c *fiber.Ctx) error {
	userID, _ := currentUser(c)

	query := database.DB.Preload("Tutor").
		Where("student_id = ? OR booked_by_id = ?", userID, userID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if c.QueryBool("upcoming") {
		today := time.Now().Format("2006-01-02")
		query = query.Where("session_date >= ? AND status IN ?", today,
			[]models.BookingStatus{models.BookingPending, models.BookingConfirmed})
	}

	var bookings []models.Booking
	if err := query.Order("session_date asc, start_time asc").Find(&bookings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch bookings"})
	}

	return c.JSON(fiber.Map{"bookings": bookings, "total": len(bookings)})
}

func GetBooking(c *fiber.Ctx) error {
	userID, role := currentUser(c)

	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID"})
	}

	var booking models.Booking
	if err := database.DB.Preload("Tutor").Where("id = ?", bookingID).First(&booking).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}

	var tutor models.Tutor
	isTutor := database.DB.Where("id = ? AND user_id = ?", booking.TutorID, userID).First(&tutor).Error == nil

	if booking.StudentID != userID && booking.BookedByID != userID && !isTutor && !models.IsStaff(role) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	return c.JSON(fiber.Map{"booking": booking})
}

// CheckAvailability is the pre-payment advisory check. It is not a
// reservation; the unique slot index at settlement time is the authority.
func CheckAvailability(c *fiber.Ctx) error {
	tutorID, err := uuid.Parse(c.Params("tutorId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor ID"})
	}

	date := c.Query("date")
	if _, err := utils.DayOfWeek(date); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Valid date required (YYYY-MM-DD)"})
	}

	startTime := c.Query("startTime")
	endTime := c.Query("endTime")
	start, startErr := utils.ParseClock(startTime)
	end, endErr := utils.ParseClock(endTime)
	if startErr != nil || endErr != nil || start >= end {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Valid startTime and endTime required (HH:MM)"})
	}

	free, err := services.SlotIsFree(database.DB, tutorID, date, startTime, endTime)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check availability"})
	}

	return c.JSON(fiber.Map{
		"available": free,
		"date":      date,
		"startTime": startTime,
		"endTime":   endTime,
	})
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking is the refund-free cancellation (DELETE). The response tells
// the client whether a refund is available on the refund endpoint.
func CancelBooking(c *fiber.Ctx) error {
	userID, role := currentUser(c)

	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID"})
	}

	var req CancelBookingRequest
	c.BodyParser(&req)

	refundEligible, err := services.CancelBooking(database.DB, bookingID, userID, role, req.Reason, time.Now())
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
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel booking"})
		}
	}

	return c.JSON(fiber.Map{
		"message":        "Booking cancelled successfully",
		"refundEligible": refundEligible,
	})
}

// CompleteBooking marks a confirmed session as delivered. Tutor or staff.
func CompleteBooking(c *fiber.Ctx) error {
	userID, role := currentUser(c)

	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID"})
	}

	var booking models.Booking
	if err := database.DB.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}

	var tutor models.Tutor
	isTutor := database.DB.Where("id = ? AND user_id = ?", booking.TutorID, userID).First(&tutor).Error == nil
	if !isTutor && !models.IsStaff(role) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if err := booking.TransitionTo(models.BookingCompleted); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	now := time.Now()
	sessionStart, err := utils.SessionStart(booking.SessionDate, booking.StartTime)
	if err == nil && now.Before(sessionStart.Add(time.Duration(booking.DurationMinutes)*time.Minute)) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Session has not ended yet"})
	}
	result := database.DB.Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, models.BookingConfirmed).
		Updates(map[string]interface{}{
			"status":       models.BookingCompleted,
			"completed_at": now,
		})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to complete booking"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Booking is no longer confirmed"})
	}

	return c.JSON(fiber.Map{"message": "Booking marked as completed"})
}

// NoShowBooking records a student no-show. The session still counts toward
// the tutor's payout, so the row moves through no_show into
// completed_for_payout in one request.
func NoShowBooking(c *fiber.Ctx) error {
	userID, role := currentUser(c)

	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID"})
	}

	var booking models.Booking
	if err := database.DB.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	}

	var tutor models.Tutor
	isTutor := database.DB.Where("id = ? AND user_id = ?", booking.TutorID, userID).First(&tutor).Error == nil
	if !isTutor && !models.IsStaff(role) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if err := booking.TransitionTo(models.BookingNoShow); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := booking.TransitionTo(models.BookingCompletedNoShow); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	now := time.Now()
	result := database.DB.Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, models.BookingConfirmed).
		Updates(map[string]interface{}{
			"status":       models.BookingCompletedNoShow,
			"completed_at": now,
		})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record no-show"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Booking is no longer confirmed"})
	}

	return c.JSON(fiber.Map{"message": "No-show recorded, session counted for payout"})
}

// GetTutorBookings lists the caller's teaching schedule with earnings stats.
func GetTutorBookings(c *fiber.Ctx) error {
	userID, role := currentUser(c)

	var tutor models.Tutor
	if err := database.DB.Where("user_id = ?", userID).First(&tutor).Error; err != nil {
		if !models.IsStaff(role) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor profile not found"})
		}
	}

	query := database.DB.Where("tutor_id = ?", tutor.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var bookings []models.Booking
	if err := query.Order("session_date asc, start_time asc").Find(&bookings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch bookings"})
	}

	var totalEarnings float64
	var completed, upcoming int
	today := time.Now().Format("2006-01-02")
	for _, b := range bookings {
		switch b.Status {
		case models.BookingCompleted, models.BookingCompletedNoShow:
			totalEarnings += b.TutorEarnings
			completed++
		case models.BookingConfirmed, models.BookingPending:
			if b.SessionDate >= today {
				upcoming++
			}
		}
	}

	return c.JSON(fiber.Map{
		"bookings": bookings,
		"stats": fiber.Map{
			"totalBookings":     len(bookings),
			"completedSessions": completed,
			"upcomingSessions":  upcoming,
			"totalEarnings":     totalEarnings,
		},
	})
}

// GetAdminStats aggregates platform-wide booking and revenue figures.
func GetAdminStats(c *fiber.Ctx) error {
	var totalBookings, confirmedBookings, cancelledBookings int64
	database.DB.Model(&models.Booking{}).Count(&totalBookings)
	database.DB.Model(&models.Booking{}).Where("status = ?", models.BookingConfirmed).Count(&confirmedBookings)
	database.DB.Model(&models.Booking{}).Where("status = ?", models.BookingCancelled).Count(&cancelledBookings)

	var grossVolume, platformRevenue float64
	row := database.DB.Model(&models.PaymentTransaction{}).
		Where("status = ? AND transaction_type = ?", models.TransactionCompleted, models.TransactionTypePurchase).
		Select("COALESCE(SUM(amount_total), 0), COALESCE(SUM(platform_fee), 0)").Row()
	row.Scan(&grossVolume, &platformRevenue)

	var pendingTransactions, failedTransactions int64
	database.DB.Model(&models.PaymentTransaction{}).Where("status = ?", models.TransactionPending).Count(&pendingTransactions)
	database.DB.Model(&models.PaymentTransaction{}).Where("status = ?", models.TransactionFailed).Count(&failedTransactions)

	return c.JSON(fiber.Map{
		"bookings": fiber.Map{
			"total":     totalBookings,
			"confirmed": confirmedBookings,
			"cancelled": cancelledBookings,
		},
		"payments": fiber.Map{
			"grossVolume":     grossVolume,
			"platformRevenue": platformRevenue,
			"pending":         pendingTransactions,
			"failed":          failedTransactions,
		},
	})
}
