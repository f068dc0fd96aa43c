package services

import (
	"testing"

	"github.com/apexedu/tutor_marketplace/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.TempDir()+"/test.db"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Tutor{},
		&models.AvailabilityWindow{},
		&models.AvailabilityException{},
		&models.SessionType{},
		&models.Booking{},
		&models.PaymentTransaction{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_live_slot
		ON bookings (tutor_id, session_date, start_time)
		WHERE status IN ('pending', 'confirmed')`).Error
	if err != nil {
		t.Fatalf("create slot index: %v", err)
	}

	return db
}

func makeUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()
	user := models.User{
		FullName: "Test " + role,
		Email:    uuid.NewString() + "@example.com",
		Password: "hashed",
		Role:     role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func makeTutor(t *testing.T, db *gorm.DB, hourlyRate float64) *models.Tutor {
	t.Helper()
	user := makeUser(t, db, models.RoleTutor)
	tutor := models.Tutor{
		UserID:         user.ID,
		DisplayName:    "Test Tutor",
		HourlyRate:     hourlyRate,
		Currency:       "USD",
		IsActive:       true,
		ApprovalStatus: models.TutorApprovalApproved,
	}
	if err := db.Create(&tutor).Error; err != nil {
		t.Fatalf("create tutor: %v", err)
	}
	return &tutor
}

func makeBooking(t *testing.T, db *gorm.DB, booking *models.Booking) *models.Booking {
	t.Helper()
	if booking.Currency == "" {
		booking.Currency = "USD"
	}
	if booking.DurationMinutes == 0 {
		booking.DurationMinutes = 60
	}
	if err := db.Create(booking).Error; err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return booking
}
