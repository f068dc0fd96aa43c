package payments

import (
	"context"
	"errors"
	"log"

	config "github.com/apexedu/tutor_marketplace/configs"
)

// ErrNotConfigured means the processor credentials are missing. Handlers map
// it to 503 so clients retry later instead of treating it as a rejection.
var ErrNotConfigured = errors.New("payment processor is not configured")

// Reservation is a processor-side hold of funds pending confirmation. The
// client secret goes back to the browser to complete the payment.
type Reservation struct {
	ID           string
	ClientSecret string
	Status       string
}

type Refund struct {
	ID     string
	Status string
}

// Client abstracts the payment processor. The service never infers success
// from these synchronous calls; settlement happens only via the verified
// webhook channel.
type Client interface {
	CreateReservation(ctx context.Context, amount float64, currency string, metadata map[string]string) (*Reservation, error)
	CancelReservation(ctx context.Context, reservationID string) error
	IssueRefund(ctx context.Context, reservationID string, amount float64, metadata map[string]string) (*Refund, error)
}

// Active is the processor used by handlers and services. Init wires the real
// client; tests swap in a fake.
var Active Client

func Init() {
	secretKey := config.Config("STRIPE_SECRET_KEY")
	if secretKey == "" {
		log.Println("⚠️ STRIPE_SECRET_KEY not set, payment endpoints will return 503")
		Active = nil
		return
	}

	Active = &StripeService{SecretKey: secretKey}
	log.Println("✅ Payment processor client initialized")
}
