package handlers

import (
	"errors"

	"github.com/apexedu/tutor_marketplace/database"
	"github.com/apexedu/tutor_marketplace/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetSessionTypes lists a tutor's active offerings. Public.
func GetSessionTypes(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}

	var sessionTypes []models.SessionType
	database.DB.Where("tutor_id = ? AND is_active = ?", tutor.ID, true).
		Order("display_order asc, name asc").
		Find(&sessionTypes)

	return c.JSON(fiber.Map{
		"tutorId":      tutor.ID,
		"sessionTypes": sessionTypes,
	})
}

type SessionTypeRequest struct {
	Name            string  `json:"name" validate:"required,min=2,max=100"`
	DurationMinutes int     `json:"durationMinutes" validate:"required,min=15,max=180"`
	Price           float64 `json:"price" validate:"required,gt=0"`
	DisplayOrder    int     `json:"displayOrder"`
}

func CreateSessionType(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}
	if !ownsTutor(c, tutor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req SessionTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sessionType := models.SessionType{
		TutorID:         tutor.ID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		IsActive:        true,
		DisplayOrder:    req.DisplayOrder,
	}
	if err := database.DB.Create(&sessionType).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A session type with this name already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create session type"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Session type created successfully",
		"sessionType": sessionType,
	})
}

type UpdateSessionTypeRequest struct {
	Name            *string  `json:"name" validate:"omitempty,min=2,max=100"`
	DurationMinutes *int     `json:"durationMinutes" validate:"omitempty,min=15,max=180"`
	Price           *float64 `json:"price" validate:"omitempty,gt=0"`
	IsActive        *bool    `json:"isActive"`
	DisplayOrder    *int     `json:"displayOrder"`
}

func UpdateSessionType(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}
	if !ownsTutor(c, tutor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	sessionTypeID, err := uuid.Parse(c.Params("sessionTypeId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session type ID"})
	}

	var req UpdateSessionTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var sessionType models.SessionType
	if err := database.DB.Where("id = ? AND tutor_id = ?", sessionTypeID, tutor.ID).First(&sessionType).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session type not found"})
	}

	if req.Name != nil {
		sessionType.Name = *req.Name
	}
	if req.DurationMinutes != nil {
		sessionType.DurationMinutes = *req.DurationMinutes
	}
	if req.Price != nil {
		sessionType.Price = *req.Price
	}
	if req.IsActive != nil {
		sessionType.IsActive = *req.IsActive
	}
	if req.DisplayOrder != nil {
		sessionType.DisplayOrder = *req.DisplayOrder
	}

	if err := database.DB.Save(&sessionType).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A session type with this name already exists",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update session type"})
	}

	return c.JSON(fiber.Map{
		"message":     "Session type updated successfully",
		"sessionType": sessionType,
	})
}

// DeleteSessionType retires an offering. Settled bookings keep the name they
// were sold under, so rows are disabled rather than removed.
func DeleteSessionType(c *fiber.Ctx) error {
	tutor, errResp := tutorFromParam(c)
	if tutor == nil {
		return errResp
	}
	if !ownsTutor(c, tutor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	sessionTypeID, err := uuid.Parse(c.Params("sessionTypeId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session type ID"})
	}

	result := database.DB.Model(&models.SessionType{}).
		Where("id = ? AND tutor_id = ?", sessionTypeID, tutor.ID).
		Update("is_active", false)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete session type"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session type not found"})
	}

	return c.JSON(fiber.Map{"message": "Session type deleted successfully"})
}
