package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types delivered by the processor.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

var (
	ErrMissingSignature = errors.New("webhook signature header is missing")
	ErrBadSignature     = errors.New("webhook signature verification failed")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// signatureTolerance bounds replay of captured webhook payloads.
const signatureTolerance = 5 * time.Minute

// Event is the verified, parsed form of a processor notification.
type Event struct {
	ID                    string
	Type                  string
	ProviderTransactionID string
	FailureReason         string
}

type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string `json:"id"`
			PaymentIntent    string `json:"payment_intent"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyAndParseEvent checks the Stripe-style signature header
// ("t=<unix>,v1=<hex>") against the shared secret and decodes the payload.
// The signed message is "<t>.<payload>". Nothing is parsed before the
// signature checks out.
func VerifyAndParseEvent(payload []byte, signatureHeader, secret string) (*Event, error) {
	if signatureHeader == "" {
		return nil, ErrMissingSignature
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(signatureHeader, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			ts, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return nil, ErrBadSignature
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return nil, ErrBadSignature
	}

	age := time.Since(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return nil, ErrStaleTimestamp
	}

	expected := ComputeSignature(payload, timestamp, secret)
	verified := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, ErrBadSignature
	}

	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("cannot decode webhook payload: %w", err)
	}

	event := &Event{ID: raw.ID, Type: raw.Type}
	switch raw.Type {
	case EventChargeRefunded:
		// Refund events carry a charge object pointing at its intent.
		event.ProviderTransactionID = raw.Data.Object.PaymentIntent
		if event.ProviderTransactionID == "" {
			event.ProviderTransactionID = raw.Data.Object.ID
		}
	default:
		event.ProviderTransactionID = raw.Data.Object.ID
	}
	if raw.Data.Object.LastPaymentError != nil {
		event.FailureReason = raw.Data.Object.LastPaymentError.Message
	}

	return event, nil
}

// ComputeSignature produces the hex HMAC-SHA256 of "<timestamp>.<payload>".
func ComputeSignature(payload []byte, timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
