package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// StripeService talks to the Stripe REST API directly with form-encoded
// requests. Amounts cross the wire in cents.
type StripeService struct {
	SecretKey string
	BaseURL   string
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

func (s *StripeService) apiBase() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return stripeAPIBase
}

func (s *StripeService) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "POST", s.apiBase()+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("stripe %s failed, status %s: %s", path, resp.Status, string(respBody))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type paymentIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

func (s *StripeService) CreateReservation(ctx context.Context, amount float64, currency string, metadata map[string]string) (*Reservation, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(toCents(amount), 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	var intent paymentIntentResponse
	if err := s.post(ctx, "/payment_intents", form, &intent); err != nil {
		return nil, err
	}

	return &Reservation{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       intent.Status,
	}, nil
}

func (s *StripeService) CancelReservation(ctx context.Context, reservationID string) error {
	return s.post(ctx, fmt.Sprintf("/payment_intents/%s/cancel", reservationID), url.Values{}, nil)
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *StripeService) IssueRefund(ctx context.Context, reservationID string, amount float64, metadata map[string]string) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", reservationID)
	form.Set("amount", strconv.FormatInt(toCents(amount), 10))
	form.Set("reason", "requested_by_customer")
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	var refund refundResponse
	if err := s.post(ctx, "/refunds", form, &refund); err != nil {
		return nil, err
	}

	return &Refund{ID: refund.ID, Status: refund.Status}, nil
}
