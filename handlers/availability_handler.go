package handlers

import (
	"errors"
	"fmt"

	"github.com/apexedu/tutor_marketplace/database"
	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/services"
	"github.com/apexedu/tutor_marketplace/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func tutorFromParam(c *fiber.Ctx) (*models.Tutor, error) {
	tutorID, err := uuid.Parse(c.Params("tutorId"))
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor ID"})
	}

	var tutor models.Tutor
	if err := database.DB.Where("id = ?", tutorID).First(&tutor).Error; err != nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor not found"})
	}
	return &tutor, nil
}

// ownsTutor reports whether the principal is the tutor's user or staff.
func ownsTutor(c *fiber.Ctx, tutor *models.Tutor) bool {
	userID, role := currentUser(c)
	return tutor.UserID == userID || models.IsStaff(role)
}

// GetSchedule returns a tutor's recurring weekly windows. Public.
func GetSchedule(c *fiber.Ctx) error {
	tutor, err := tutorFromParam(c)
	if tutor == nil {
		return err
	}

	var windows []models.AvailabilityWindow
	database.DB.Where("tutor_id = ?", tutor.ID).
		Order("day_of_week asc, start_time asc").
		Find(&windows)

	schedule := make([]fiber.Map, 0, len(windows))
	for _, window := range windows {
		schedule = append(schedule, fiber.Map{
			"id":        window.ID,
			"dayOfWeek": window.DayOfWeek,
			"dayName":   dayNames[window.DayOfWeek],
			"startTime": window.StartTime,
			"endTime":   window.EndTime,
			"isActive":  window.IsActive,
		})
	}

	return c.JSON(fiber.Map{
		"tutorId":   tutor.ID,
		"tutorName": tutor.DisplayName,
		"schedule":  schedule,
	})
}

type AddWindowRequest struct {
	DayOfWeek *int   `json:"dayOfWeek" validate:"required,min=0,max=6"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
}

// AddWindow adds a weekly availability block. Overlapping an existing active
// block on the same day is a conflict.
func AddWindow(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}
	if !ownsTutor(c, tutor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req AddWindowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	start, _ := utils.ParseClock(req.StartTime)
	end, _ := utils.ParseClock(req.EndTime)
	if start >= end {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "End time must be after start time"})
	}

	overlaps, err := services.WindowOverlapExists(database.DB, tutor.ID, *req.DayOfWeek, req.StartTime, req.EndTime, uuid.Nil)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add availability"})
	}
	if overlaps {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "This time slot overlaps with an existing availability block",
		})
	}

	window := models.AvailabilityWindow{
		TutorID:   tutor.ID,
		DayOfWeek: *req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  true,
	}
	if err := database.DB.Create(&window).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add availability"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":      "Availability added successfully",
		"availability": window,
	})
}

type UpdateWindowRequest struct {
	StartTime *string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime   *string `json:"endTime" validate:"omitempty,datetime=15:04"`
	IsActive  *bool   `json:"isActive"`
}

func UpdateWindow(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}
	if !ownsTutor(c, tutor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	windowID, err := uuid.Parse(c.Params("windowId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid availability ID"})
	}

	var req UpdateWindowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.StartTime == nil && req.EndTime == nil && req.IsActive == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No fields to update"})
	}

	var window models.AvailabilityWindow
	if err := database.DB.Where("id = ? AND tutor_id = ?", windowID, tutor.ID).First(&window).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Availability block not found"})
	}

	if req.StartTime != nil {
		window.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		window.EndTime = *req.EndTime
	}
	if req.IsActive != nil {
		window.IsActive = *req.IsActive
	}

	start, _ := utils.ParseClock(window.StartTime)
	end, _ := utils.ParseClock(window.EndTime)
	if start >= end {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "End time must be after start time"})
	}

	if window.IsActive {
		overlaps, err := services.WindowOverlapExists(database.DB, tutor.ID, window.DayOfWeek, window.StartTime, window.EndTime, window.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update availability"})
		}
		if overlaps {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "This time slot overlaps with an existing availability block",
			})
		}
	}

	if err := database.DB.Save(&window).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update availability"})
	}

	return c.JSON(fiber.Map{"message": "Availability updated successfully"})
}

// DeleteWindow soft-disables a window. Blocks are never hard-deleted so
// settled bookings keep their scheduling provenance.
func DeleteWindow(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}
	if !ownsTutor(c, tutor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	windowID, err := uuid.Parse(c.Params("windowId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid availability ID"})
	}

	result := database.DB.Model(&models.AvailabilityWindow{}).
		Where("id = ? AND tutor_id = ?", windowID, tutor.ID).
		Update("is_active", false)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete availability"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Availability block not found"})
	}

	return c.JSON(fiber.Map{"message": "Availability deleted successfully"})
}

// GetExceptions lists a tutor's date overrides. Tutor or staff only.
func GetExceptions(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}
	if !ownsTutor(c, tutor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var exceptions []models.AvailabilityException
	database.DB.Where("tutor_id = ?", tutor.ID).Order("date asc").Find(&exceptions)

	return c.JSON(fiber.Map{"exceptions": exceptions})
}

type AddExceptionRequest struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Kind      string  `json:"type" validate:"required,oneof=unavailable custom_hours"`
	StartTime *string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime   *string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Reason    *string `json:"reason"`
}

// AddException records a date-specific override. custom_hours must carry
// both times; a second exception on the same date is a conflict.
func AddException(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}
	if !ownsTutor(c, tutor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req AddExceptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.Kind == models.ExceptionCustomHours {
		if req.StartTime == nil || req.EndTime == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Custom hours must include startTime and endTime",
			})
		}
		start, _ := utils.ParseClock(*req.StartTime)
		end, _ := utils.ParseClock(*req.EndTime)
		if start >= end {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "End time must be after start time"})
		}
	}

	exception := models.AvailabilityException{
		TutorID:   tutor.ID,
		Date:      req.Date,
		Kind:      req.Kind,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	}
	if err := database.DB.Create(&exception).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "An exception already exists for this date",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add exception"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Exception added successfully",
		"exception": exception,
	})
}

func DeleteException(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}
	if !ownsTutor(c, tutor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	exceptionID, err := uuid.Parse(c.Params("exceptionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid exception ID"})
	}

	result := database.DB.Where("id = ? AND tutor_id = ?", exceptionID, tutor.ID).
		Delete(&models.AvailabilityException{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete exception"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Exception not found"})
	}

	return c.JSON(fiber.Map{"message": "Exception deleted successfully"})
}

// GetSlots returns the free slots for one date. Public, used by the booking
// calendar.
func GetSlots(c *fiber.Ctx) error {
	tutorID, err := uuid.Parse(c.Params("tutorId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tutor ID"})
	}

	var tutor models.Tutor
	if err := database.DB.Where("id = ? AND is_active = ?", tutorID, true).First(&tutor).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tutor not found or inactive"})
	}

	date := c.Query("date")
	if _, err := utils.DayOfWeek(date); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Valid date required (YYYY-MM-DD)"})
	}

	duration := c.QueryInt("duration", 60)
	if duration < services.MinSessionMinutes || duration > services.MaxSessionMinutes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Duration must be between %d and %d minutes", services.MinSessionMinutes, services.MaxSessionMinutes),
		})
	}

	slots, err := services.ResolveSlots(database.DB, tutor.ID, date, duration)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch available slots"})
	}

	return c.JSON(fiber.Map{
		"tutorId":    tutor.ID,
		"tutorName":  tutor.DisplayName,
		"date":       date,
		"duration":   duration,
		"slots":      slots,
		"totalSlots": len(slots),
	})
}
