package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/apexedu/tutor_marketplace/database"
	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/notifications"
)

// SendSessionReminders emails students about tomorrow's confirmed sessions.
func SendSessionReminders() {
	log.Println("Running job: SendSessionReminders...")

	tomorrow := time.Now().Add(24 * time.Hour).Format("2006-01-02")

	var bookings []models.Booking
	err := database.DB.Preload("Tutor").
		Where("session_date = ? AND status = ?", tomorrow, models.BookingConfirmed).
		Find(&bookings).Error
	if err != nil {
		log.Printf("Error fetching sessions for reminders: %v", err)
		return
	}

	if len(bookings) == 0 {
		log.Println("No sessions tomorrow, no reminders to send.")
		return
	}

	for _, booking := range bookings {
		var student models.User
		if err := database.DB.Where("id = ?", booking.StudentID).First(&student).Error; err != nil {
			log.Printf("Skipping reminder for booking %s: student not found", booking.ID)
			continue
		}

		subject := fmt.Sprintf("Reminder: your session with %s is tomorrow", booking.Tutor.DisplayName)
		body := fmt.Sprintf(
			"<h1>Session Reminder</h1><p>Hi %s,</p><p>Your %s session with %s is tomorrow, %s at %s.</p>",
			student.FullName, booking.SessionType, booking.Tutor.DisplayName,
			booking.SessionDate, booking.StartTime,
		)
		notifications.SendEmail(student.FullName, student.Email, subject, body)
	}

	log.Printf("Sent reminders for %d session(s).", len(bookings))
}
