package services

import "math"

const (
	// PlatformFeeRate is the platform's cut of every settled total.
	PlatformFeeRate = 0.20
	// GroupDiscountRate is the flat per-head discount for group sessions.
	GroupDiscountRate = 0.20
	// AmountTolerance is how far a client-declared amount may deviate from
	// the recomputed price before the request is rejected. Kept at 1% to
	// absorb display rounding; do not widen without product sign-off.
	AmountTolerance = 0.01
)

type Pricing struct {
	SessionPrice  float64 `json:"session_price"`
	TotalAmount   float64 `json:"total_amount"`
	PlatformFee   float64 `json:"platform_fee"`
	TutorEarnings float64 `json:"tutor_earnings"`
}

// CalculatePricing derives the full price breakdown for a booking request.
// It is deterministic and side-effect free so the client can pre-compute the
// same numbers and the server can re-verify them from trusted inputs.
func CalculatePricing(basePrice float64, slotCount int, isGroupSession bool, groupSize int, isRecurring bool, recurringWeeks int) Pricing {
	sessionPrice := basePrice * float64(slotCount)

	if isGroupSession && groupSize > 1 {
		sessionPrice = sessionPrice * float64(groupSize) * (1 - GroupDiscountRate)
	}

	totalAmount := sessionPrice
	if isRecurring && recurringWeeks > 1 {
		totalAmount = sessionPrice * float64(recurringWeeks)
	}

	platformFee := totalAmount * PlatformFeeRate

	return Pricing{
		SessionPrice:  sessionPrice,
		TotalAmount:   totalAmount,
		PlatformFee:   platformFee,
		TutorEarnings: totalAmount - platformFee,
	}
}

// AmountMatches reports whether a client-declared total is within tolerance
// of the server-computed one. The declared amount is never trusted beyond
// this check.
func AmountMatches(declared, computed float64) bool {
	return math.Abs(computed-declared) <= declared*AmountTolerance
}
