package services

import (
	"fmt"

	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinSessionMinutes = 15
	MaxSessionMinutes = 180
)

// Slot is one bookable start time with its implied end.
type Slot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type interval struct {
	start int
	end   int
}

// ResolveSlots computes the free slots for a tutor on one date: date-specific
// exceptions override the weekly windows, then every tick that touches a live
// booking is dropped.
func ResolveSlots(db *gorm.DB, tutorID uuid.UUID, date string, durationMinutes int) ([]Slot, error) {
	if durationMinutes < MinSessionMinutes || durationMinutes > MaxSessionMinutes {
		return nil, fmt.Errorf("duration must be between %d and %d minutes", MinSessionMinutes, MaxSessionMinutes)
	}

	candidates, err := candidateWindows(db, tutorID, date)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Slot{}, nil
	}

	busy, err := bookedIntervals(db, tutorID, date)
	if err != nil {
		return nil, err
	}

	return generateSlots(candidates, busy, durationMinutes), nil
}

// candidateWindows resolves which time ranges are on offer for a date:
// an `unavailable` exception clears the day, `custom_hours` replaces the
// weekly windows, otherwise the active windows for the weekday apply.
func candidateWindows(db *gorm.DB, tutorID uuid.UUID, date string) ([]interval, error) {
	var exception models.AvailabilityException
	err := db.Where("tutor_id = ? AND date = ?", tutorID, date).First(&exception).Error
	switch {
	case err == nil:
		if exception.Kind == models.ExceptionUnavailable {
			return nil, nil
		}
		// custom_hours with missing times is rejected at write time, so
		// both pointers are present here.
		start, err := utils.ParseClock(*exception.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := utils.ParseClock(*exception.EndTime)
		if err != nil {
			return nil, err
		}
		return []interval{{start: start, end: end}}, nil
	case err == gorm.ErrRecordNotFound:
		// fall through to the weekly schedule
	default:
		return nil, err
	}

	dayOfWeek, err := utils.DayOfWeek(date)
	if err != nil {
		return nil, err
	}

	var windows []models.AvailabilityWindow
	err = db.Where("tutor_id = ? AND day_of_week = ? AND is_active = ?", tutorID, dayOfWeek, true).
		Order("start_time asc").
		Find(&windows).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]interval, 0, len(windows))
	for _, window := range windows {
		start, err := utils.ParseClock(window.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := utils.ParseClock(window.EndTime)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, interval{start: start, end: end})
	}
	return candidates, nil
}

func bookedIntervals(db *gorm.DB, tutorID uuid.UUID, date string) ([]interval, error) {
	var bookings []models.Booking
	err := db.Where("tutor_id = ? AND session_date = ? AND status IN ?",
		tutorID, date, []models.BookingStatus{models.BookingPending, models.BookingConfirmed}).
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}

	busy := make([]interval, 0, len(bookings))
	for _, booking := range bookings {
		start, err := utils.ParseClock(booking.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := utils.ParseClock(booking.EndTime)
		if err != nil {
			return nil, err
		}
		busy = append(busy, interval{start: start, end: end})
	}
	return busy, nil
}

// generateSlots lays whole-hour ticks onto each window (the window start
// itself counts when it falls off the hour), clips ticks whose duration runs
// past the window end, and subtracts everything that intersects a live
// booking. Overlap is inclusive-exclusive, so a booking of any length blocks
// all ticks it touches.
func generateSlots(windows, busy []interval, duration int) []Slot {
	slots := []Slot{}
	for _, window := range windows {
		for _, tick := range hourTicks(window) {
			if tick+duration > window.end {
				continue
			}
			blocked := false
			for _, b := range busy {
				if utils.Overlaps(tick, tick+duration, b.start, b.end) {
					blocked = true
					break
				}
			}
			if !blocked {
				slots = append(slots, Slot{
					StartTime: utils.FormatClock(tick),
					EndTime:   utils.FormatClock(tick + duration),
				})
			}
		}
	}
	return slots
}

func hourTicks(window interval) []int {
	ticks := []int{window.start}
	next := (window.start/60 + 1) * 60
	if window.start%60 == 0 {
		next = window.start + 60
	}
	for tick := next; tick < window.end; tick += 60 {
		ticks = append(ticks, tick)
	}
	return ticks
}

// WindowOverlapExists reports whether an active window on the same weekday
// would intersect the given range. Checked before every window write.
func WindowOverlapExists(db *gorm.DB, tutorID uuid.UUID, dayOfWeek int, startTime, endTime string, excludeID uuid.UUID) (bool, error) {
	start, err := utils.ParseClock(startTime)
	if err != nil {
		return false, err
	}
	end, err := utils.ParseClock(endTime)
	if err != nil {
		return false, err
	}

	var windows []models.AvailabilityWindow
	query := db.Where("tutor_id = ? AND day_of_week = ? AND is_active = ?", tutorID, dayOfWeek, true)
	if excludeID != uuid.Nil {
		query = query.Where("id != ?", excludeID)
	}
	if err := query.Find(&windows).Error; err != nil {
		return false, err
	}

	for _, window := range windows {
		existingStart, err := utils.ParseClock(window.StartTime)
		if err != nil {
			return false, err
		}
		existingEnd, err := utils.ParseClock(window.EndTime)
		if err != nil {
			return false, err
		}
		if utils.Overlaps(start, end, existingStart, existingEnd) {
			return true, nil
		}
	}
	return false, nil
}

// SlotIsFree checks for live bookings intersecting [startTime, endTime) on a
// date. The partial unique index on bookings is the authoritative guard; this
// pre-check exists to fail fast with a 409 before money moves.
func SlotIsFree(db *gorm.DB, tutorID uuid.UUID, date, startTime, endTime string) (bool, error) {
	start, err := utils.ParseClock(startTime)
	if err != nil {
		return false, err
	}
	end, err := utils.ParseClock(endTime)
	if err != nil {
		return false, err
	}

	busy, err := bookedIntervals(db, tutorID, date)
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if utils.Overlaps(start, end, b.start, b.end) {
			return false, nil
		}
	}
	return true, nil
}
