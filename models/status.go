package models

import "fmt"

// Booking and transaction statuses are closed sets with an explicit
// transition table. Every status change goes through TransitionTo so an
// illegal move is an error at the data boundary, not a silent overwrite.

type BookingStatus string

const (
	BookingPending         BookingStatus = "pending"
	BookingConfirmed       BookingStatus = "confirmed"
	BookingCompleted       BookingStatus = "completed"
	BookingCancelled       BookingStatus = "cancelled"
	BookingNoShow          BookingStatus = "no_show"
	BookingCompletedNoShow BookingStatus = "completed_for_payout"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled, BookingNoShow},
	BookingNoShow:    {BookingCompletedNoShow},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from this status.
func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

// Live reports whether the booking still occupies its slot.
func (s BookingStatus) Live() bool {
	return s == BookingPending || s == BookingConfirmed
}

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:   {TransactionCompleted, TransactionFailed},
	TransactionCompleted: {TransactionRefunded},
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s TransactionStatus) Terminal() bool {
	return len(transactionTransitions[s]) == 0
}

// TransitionTo validates and applies a booking status change in memory.
// Persisting the change is the caller's job.
func (b *Booking) TransitionTo(next BookingStatus) error {
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("booking status %q cannot transition to %q", b.Status, next)
	}
	b.Status = next
	return nil
}

func (t *PaymentTransaction) TransitionTo(next TransactionStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("transaction status %q cannot transition to %q", t.Status, next)
	}
	t.Status = next
	return nil
}
