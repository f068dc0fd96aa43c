package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/payments"
	"github.com/google/uuid"
)

type fakeProcessor struct {
	refundCalls   int
	refundAmounts []float64
	refundErr     error
}

func (f *fakeProcessor) CreateReservation(ctx context.Context, amount float64, currency string, metadata map[string]string) (*payments.Reservation, error) {
	return &payments.Reservation{ID: "pi_" + uuid.NewString(), ClientSecret: "secret", Status: "requires_payment_method"}, nil
}

func (f *fakeProcessor) CancelReservation(ctx context.Context, reservationID string) error {
	return nil
}

func (f *fakeProcessor) IssueRefund(ctx context.Context, reservationID string, amount float64, metadata map[string]string) (*payments.Refund, error) {
	f.refundCalls++
	f.refundAmounts = append(f.refundAmounts, amount)
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return &payments.Refund{ID: "re_test", Status: "succeeded"}, nil
}

func TestRefundBookingTiers(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		sessionDate string
		startTime   string
		wantRefund  float64
	}{
		{"under 24 hours refunds half", "2026-01-01", "20:00", 50},
		{"under 48 hours refunds three quarters", "2026-01-02", "16:00", 75},
		{"beyond 48 hours refunds everything", "2026-01-04", "10:00", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			tutor := makeTutor(t, db, 20)
			student := makeUser(t, db, models.RolePersonal)

			intentID := "pi_" + uuid.NewString()
			booking := makeBooking(t, db, &models.Booking{
				TutorID:         tutor.ID,
				StudentID:       student.ID,
				BookedByID:      student.ID,
				SessionDate:     tt.sessionDate,
				StartTime:       tt.startTime,
				EndTime:         "21:00",
				Status:          models.BookingConfirmed,
				AmountPaid:      100,
				PlatformFee:     20,
				TutorEarnings:   80,
				PaymentIntentID: &intentID,
			})

			processor := &fakeProcessor{}
			outcome, err := RefundBooking(db, processor, booking.ID, student.ID, models.RolePersonal, "plans changed", now)
			if err != nil {
				t.Fatalf("RefundBooking: %v", err)
			}

			if !outcome.Refunded {
				t.Fatal("expected a refund to be issued")
			}
			if outcome.RefundAmount != tt.wantRefund {
				t.Errorf("RefundAmount = %v, want %v", outcome.RefundAmount, tt.wantRefund)
			}
			if processor.refundCalls != 1 {
				t.Errorf("processor called %d times, want 1", processor.refundCalls)
			}

			var updated models.Booking
			if err := db.First(&updated, "id = ?", booking.ID).Error; err != nil {
				t.Fatalf("reload booking: %v", err)
			}
			if updated.Status != models.BookingCancelled {
				t.Errorf("booking status = %s, want cancelled", updated.Status)
			}
			if updated.CancellationReason == nil || *updated.CancellationReason != "plans changed" {
				t.Error("cancellation reason not recorded")
			}
		})
	}
}

func TestRefundBookingWithoutPayment(t *testing.T) {
	db := newTestDB(t)
	tutor := makeTutor(t, db, 20)
	student := makeUser(t, db, models.RolePersonal)

	booking := makeBooking(t, db, &models.Booking{
		TutorID:     tutor.ID,
		StudentID:   student.ID,
		BookedByID:  student.ID,
		SessionDate: "2026-01-10",
		StartTime:   "10:00",
		EndTime:     "11:00",
		Status:      models.BookingPending,
	})

	processor := &fakeProcessor{}
	outcome, err := RefundBooking(db, processor, booking.ID, student.ID, models.RolePersonal, "", time.Now())
	if err != nil {
		t.Fatalf("RefundBooking: %v", err)
	}
	if outcome.Refunded {
		t.Error("booking without payment linkage must not refund")
	}
	if processor.refundCalls != 0 {
		t.Errorf("processor called %d times, want 0", processor.refundCalls)
	}

	var updated models.Booking
	db.First(&updated, "id = ?", booking.ID)
	if updated.Status != models.BookingCancelled {
		t.Errorf("booking status = %s, want cancelled", updated.Status)
	}
}

func TestRefundBookingProcessorFailureLeavesBookingUntouched(t *testing.T) {
	db := newTestDB(t)
	tutor := makeTutor(t, db, 20)
	student := makeUser(t, db, models.RolePersonal)

	intentID := "pi_" + uuid.NewString()
	booking := makeBooking(t, db, &models.Booking{
		TutorID:         tutor.ID,
		StudentID:       student.ID,
		BookedByID:      student.ID,
		SessionDate:     "2026-01-10",
		StartTime:       "10:00",
		EndTime:         "11:00",
		Status:          models.BookingConfirmed,
		AmountPaid:      40,
		PaymentIntentID: &intentID,
	})

	processor := &fakeProcessor{refundErr: errors.New("provider down")}
	_, err := RefundBooking(db, processor, booking.ID, student.ID, models.RolePersonal, "", time.Now())
	if err == nil {
		t.Fatal("expected error when processor refund fails")
	}

	var updated models.Booking
	db.First(&updated, "id = ?", booking.ID)
	if updated.Status != models.BookingConfirmed {
		t.Errorf("booking status = %s, want confirmed (unchanged)", updated.Status)
	}
}

func TestRefundBookingAuthorization(t *testing.T) {
	db := newTestDB(t)
	tutor := makeTutor(t, db, 20)
	student := makeUser(t, db, models.RolePersonal)
	stranger := makeUser(t, db, models.RolePersonal)
	admin := makeUser(t, db, models.RoleAdmin)

	booking := makeBooking(t, db, &models.Booking{
		TutorID:     tutor.ID,
		StudentID:   student.ID,
		BookedByID:  student.ID,
		SessionDate: "2026-01-10",
		StartTime:   "10:00",
		EndTime:     "11:00",
		Status:      models.BookingConfirmed,
	})

	if _, err := RefundBooking(db, &fakeProcessor{}, booking.ID, stranger.ID, models.RolePersonal, "", time.Now()); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("stranger cancellation error = %v, want ErrNotAuthorized", err)
	}

	if _, err := RefundBooking(db, &fakeProcessor{}, booking.ID, admin.ID, models.RoleAdmin, "policy", time.Now()); err != nil {
		t.Errorf("staff cancellation failed: %v", err)
	}
}

func TestRefundBookingTerminalStates(t *testing.T) {
	db := newTestDB(t)
	tutor := makeTutor(t, db, 20)
	student := makeUser(t, db, models.RolePersonal)

	cancelled := makeBooking(t, db, &models.Booking{
		TutorID:     tutor.ID,
		StudentID:   student.ID,
		BookedByID:  student.ID,
		SessionDate: "2026-01-10",
		StartTime:   "10:00",
		EndTime:     "11:00",
		Status:      models.BookingCancelled,
	})
	if _, err := RefundBooking(db, &fakeProcessor{}, cancelled.ID, student.ID, models.RolePersonal, "", time.Now()); !errors.Is(err, ErrAlreadyCancelled) {
		t.Errorf("cancelled booking error = %v, want ErrAlreadyCancelled", err)
	}

	completed := makeBooking(t, db, &models.Booking{
		TutorID:     tutor.ID,
		StudentID:   student.ID,
		BookedByID:  student.ID,
		SessionDate: "2026-01-10",
		StartTime:   "12:00",
		EndTime:     "13:00",
		Status:      models.BookingCompleted,
	})
	if _, err := RefundBooking(db, &fakeProcessor{}, completed.ID, student.ID, models.RolePersonal, "", time.Now()); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("completed booking error = %v, want ErrNotCancellable", err)
	}

	if _, err := RefundBooking(db, &fakeProcessor{}, uuid.New(), student.ID, models.RolePersonal, "", time.Now()); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("missing booking error = %v, want ErrBookingNotFound", err)
	}
}

func TestCancelBookingReportsRefundEligibility(t *testing.T) {
	db := newTestDB(t)
	tutor := makeTutor(t, db, 20)
	student := makeUser(t, db, models.RolePersonal)

	intentID := "pi_" + uuid.NewString()
	paid := makeBooking(t, db, &models.Booking{
		TutorID:         tutor.ID,
		StudentID:       student.ID,
		BookedByID:      student.ID,
		SessionDate:     "2026-01-10",
		StartTime:       "10:00",
		EndTime:         "11:00",
		Status:          models.BookingConfirmed,
		AmountPaid:      20,
		PaymentIntentID: &intentID,
	})

	eligible, err := CancelBooking(db, paid.ID, student.ID, models.RolePersonal, "", time.Now())
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if !eligible {
		t.Error("paid confirmed booking should be refund eligible")
	}

	unpaid := makeBooking(t, db, &models.Booking{
		TutorID:     tutor.ID,
		StudentID:   student.ID,
		BookedByID:  student.ID,
		SessionDate: "2026-01-10",
		StartTime:   "12:00",
		EndTime:     "13:00",
		Status:      models.BookingPending,
	})

	eligible, err = CancelBooking(db, unpaid.ID, student.ID, models.RolePersonal, "", time.Now())
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if eligible {
		t.Error("unpaid booking must not be refund eligible")
	}
}
