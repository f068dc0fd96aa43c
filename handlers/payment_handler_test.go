package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apexedu/tutor_marketplace/cache"
	"github.com/apexedu/tutor_marketplace/database"
	"github.com/apexedu/tutor_marketplace/handlers"
	"github.com/apexedu/tutor_marketplace/middleware"
	"github.com/apexedu/tutor_marketplace/models"
	"github.com/apexedu/tutor_marketplace/payments"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret     = "test-jwt-secret"
	testWebhookSecret = "whsec_test"
)

type fakeClient struct {
	reservations int
	cancels      int
	refunds      int
	lastAmount   float64
}

func (f *fakeClient) CreateReservation(ctx context.Context, amount float64, currency string, metadata map[string]string) (*payments.Reservation, error) {
	f.reservations++
	f.lastAmount = amount
	return &payments.Reservation{
		ID:           fmt.Sprintf("pi_test_%d", f.reservations),
		ClientSecret: "cs_test",
		Status:       "requires_payment_method",
	}, nil
}

func (f *fakeClient) CancelReservation(ctx context.Context, reservationID string) error {
	f.cancels++
	return nil
}

func (f *fakeClient) IssueRefund(ctx context.Context, reservationID string, amount float64, metadata map[string]string) (*payments.Refund, error) {
	f.refunds++
	return &payments.Refund{ID: "re_test", Status: "succeeded"}, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
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

// setupApp swaps the package globals for test doubles and builds the payment
// surface the way the router wires it.
func setupApp(t *testing.T) (*fiber.App, *fakeClient) {
	t.Helper()
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)

	prevDB := database.DB
	prevClient := payments.Active
	t.Cleanup(func() {
		database.DB = prevDB
		payments.Active = prevClient
	})

	database.DB = setupTestDB(t)
	client := &fakeClient{}
	payments.Active = client

	store := cache.NewMemoryStore()

	app := fiber.New()
	app.Post("/api/v1/payments/webhook", handlers.HandleWebhook)
	payment := app.Group("/api/v1/payments", middleware.Protected(), middleware.Idempotency(store))
	payment.Post("/create-payment-intent", handlers.CreatePaymentIntent)
	payment.Post("/refund", handlers.ProcessRefund)

	return app, client
}

func tokenFor(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func seedUser(t *testing.T, role string, child bool, parentID *uuid.UUID) *models.User {
	t.Helper()
	user := models.User{
		FullName:       "Test User",
		Email:          uuid.NewString() + "@example.com",
		Password:       "hashed",
		Role:           role,
		IsChildAccount: child,
		ParentID:       parentID,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedTutor(t *testing.T, hourlyRate float64) *models.Tutor {
	t.Helper()
	user := seedUser(t, models.RoleTutor, false, nil)
	tutor := models.Tutor{
		UserID:         user.ID,
		DisplayName:    "Seed Tutor",
		HourlyRate:     hourlyRate,
		Currency:       "USD",
		IsActive:       true,
		ApprovalStatus: models.TutorApprovalApproved,
	}
	if err := database.DB.Create(&tutor).Error; err != nil {
		t.Fatalf("seed tutor: %v", err)
	}
	return &tutor
}

func postJSON(t *testing.T, app *fiber.App, path, token, idemKey string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, raw
}

func intentRequest(tutorID uuid.UUID, amount float64) fiber.Map {
	return fiber.Map{
		"amount": amount,
		"bookingDetails": fiber.Map{
			"tutorId":     tutorID.String(),
			"sessionType": "Conversation",
			"date":        "2026-01-05",
			"timeSlots":   []string{"10:00"},
		},
	}
}

func TestCreatePaymentIntentSuccess(t *testing.T) {
	app, client := setupApp(t)
	tutor := seedTutor(t, 20)
	payer := seedUser(t, models.RolePersonal, false, nil)

	resp, body := postJSON(t, app, "/api/v1/payments/create-payment-intent",
		tokenFor(t, payer.ID, payer.Role), uuid.NewString(), intentRequest(tutor.ID, 20))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var parsed struct {
		ClientSecret    string  `json:"clientSecret"`
		PaymentIntentID string  `json:"paymentIntentId"`
		Amount          float64 `json:"amount"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if parsed.ClientSecret == "" || parsed.PaymentIntentID == "" {
		t.Errorf("incomplete response: %s", body)
	}
	if parsed.Amount != 20 {
		t.Errorf("amount = %v, want 20", parsed.Amount)
	}
	if client.reservations != 1 {
		t.Errorf("reservations = %d, want 1", client.reservations)
	}

	var txn models.PaymentTransaction
	if err := database.DB.Where("provider_transaction_id = ?", parsed.PaymentIntentID).First(&txn).Error; err != nil {
		t.Fatalf("transaction row missing: %v", err)
	}
	if txn.Status != models.TransactionPending {
		t.Errorf("transaction status = %s, want pending", txn.Status)
	}
	if txn.PlatformFee != 4 || txn.TutorEarnings != 16 {
		t.Errorf("fee split = %v/%v, want 4/16", txn.PlatformFee, txn.TutorEarnings)
	}

	var bookings int64
	database.DB.Model(&models.Booking{}).Count(&bookings)
	if bookings != 0 {
		t.Errorf("reservation created %d bookings before settlement, want 0", bookings)
	}
}

func TestCreatePaymentIntentAmountMismatch(t *testing.T) {
	app, client := setupApp(t)
	tutor := seedTutor(t, 20)
	payer := seedUser(t, models.RolePersonal, false, nil)

	resp, body := postJSON(t, app, "/api/v1/payments/create-payment-intent",
		tokenFor(t, payer.ID, payer.Role), uuid.NewString(), intentRequest(tutor.ID, 5))

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if client.reservations != 0 {
		t.Errorf("processor called %d times for a mismatched amount, want 0", client.reservations)
	}
}

func TestCreatePaymentIntentIdempotencyReplay(t *testing.T) {
	app, client := setupApp(t)
	tutor := seedTutor(t, 20)
	payer := seedUser(t, models.RolePersonal, false, nil)

	token := tokenFor(t, payer.ID, payer.Role)
	key := uuid.NewString()

	resp1, body1 := postJSON(t, app, "/api/v1/payments/create-payment-intent", token, key, intentRequest(tutor.ID, 20))
	if resp1.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d, body = %s", resp1.StatusCode, body1)
	}

	resp2, body2 := postJSON(t, app, "/api/v1/payments/create-payment-intent", token, key, intentRequest(tutor.ID, 20))
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("replay status = %d, body = %s", resp2.StatusCode, body2)
	}

	if !bytes.Equal(body1, body2) {
		t.Errorf("replay body differs:\nfirst:  %s\nreplay: %s", body1, body2)
	}
	if client.reservations != 1 {
		t.Errorf("reservations = %d, want 1 (replay must not hit the processor)", client.reservations)
	}

	var count int64
	database.DB.Model(&models.PaymentTransaction{}).Count(&count)
	if count != 1 {
		t.Errorf("transactions = %d, want 1", count)
	}
}

func TestCreatePaymentIntentRequiresIdempotencyKey(t *testing.T) {
	app, client := setupApp(t)
	tutor := seedTutor(t, 20)
	payer := seedUser(t, models.RolePersonal, false, nil)

	resp, _ := postJSON(t, app, "/api/v1/payments/create-payment-intent",
		tokenFor(t, payer.ID, payer.Role), "", intentRequest(tutor.ID, 20))

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if client.reservations != 0 {
		t.Error("processor reached without an idempotency key")
	}
}

func TestCreatePaymentIntentChildAccountForbidden(t *testing.T) {
	app, client := setupApp(t)
	tutor := seedTutor(t, 20)
	parent := seedUser(t, models.RoleParent, false, nil)
	child := seedUser(t, models.RolePersonal, true, &parent.ID)

	resp, _ := postJSON(t, app, "/api/v1/payments/create-payment-intent",
		tokenFor(t, child.ID, child.Role), uuid.NewString(), intentRequest(tutor.ID, 20))

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
	if client.reservations != 0 {
		t.Error("processor reached for a child account")
	}
}

func TestCreatePaymentIntentParentBooksForChild(t *testing.T) {
	app, _ := setupApp(t)
	tutor := seedTutor(t, 20)
	parent := seedUser(t, models.RoleParent, false, nil)
	child := seedUser(t, models.RolePersonal, true, &parent.ID)
	otherChild := seedUser(t, models.RolePersonal, true, nil)

	request := intentRequest(tutor.ID, 20)
	details := request["bookingDetails"].(fiber.Map)
	details["studentId"] = child.ID.String()

	resp, body := postJSON(t, app, "/api/v1/payments/create-payment-intent",
		tokenFor(t, parent.ID, parent.Role), uuid.NewString(), request)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("own child booking status = %d, body = %s", resp.StatusCode, body)
	}

	details["studentId"] = otherChild.ID.String()
	resp, _ = postJSON(t, app, "/api/v1/payments/create-payment-intent",
		tokenFor(t, parent.ID, parent.Role), uuid.NewString(), request)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("other child booking status = %d, want 403", resp.StatusCode)
	}
}

func TestCreatePaymentIntentSlotConflict(t *testing.T) {
	app, client := setupApp(t)
	tutor := seedTutor(t, 20)
	payer := seedUser(t, models.RolePersonal, false, nil)
	other := seedUser(t, models.RolePersonal, false, nil)

	booking := models.Booking{
		TutorID:     tutor.ID,
		StudentID:   other.ID,
		BookedByID:  other.ID,
		SessionDate: "2026-01-05",
		StartTime:   "10:00",
		EndTime:     "11:00",
		Status:      models.BookingConfirmed,
		Currency:    "USD",
	}
	if err := database.DB.Create(&booking).Error; err != nil {
		t.Fatalf("seed conflicting booking: %v", err)
	}

	resp, _ := postJSON(t, app, "/api/v1/payments/create-payment-intent",
		tokenFor(t, payer.ID, payer.Role), uuid.NewString(), intentRequest(tutor.ID, 20))

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	if client.reservations != 0 {
		t.Error("processor reached for a taken slot")
	}
}

func webhookRequest(t *testing.T, app *fiber.App, payload []byte, sign bool) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if sign {
		now := time.Now().Unix()
		req.Header.Set("Stripe-Signature",
			fmt.Sprintf("t=%d,v1=%s", now, payments.ComputeSignature(payload, now, testWebhookSecret)))
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestWebhookRejectsUnsignedPayload(t *testing.T) {
	app, _ := setupApp(t)

	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
	resp := webhookRequest(t, app, payload, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookSettlesPaymentEndToEnd(t *testing.T) {
	app, _ := setupApp(t)
	tutor := seedTutor(t, 20)
	payer := seedUser(t, models.RolePersonal, false, nil)

	resp, body := postJSON(t, app, "/api/v1/payments/create-payment-intent",
		tokenFor(t, payer.ID, payer.Role), uuid.NewString(), intentRequest(tutor.ID, 20))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create intent status = %d, body = %s", resp.StatusCode, body)
	}

	var parsed struct {
		PaymentIntentID string `json:"paymentIntentId"`
	}
	json.Unmarshal(body, &parsed)

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"%s"}}}`,
		parsed.PaymentIntentID))

	for i := 0; i < 2; i++ {
		resp := webhookRequest(t, app, payload, true)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("webhook delivery %d status = %d", i+1, resp.StatusCode)
		}
	}

	var txn models.PaymentTransaction
	database.DB.Where("provider_transaction_id = ?", parsed.PaymentIntentID).First(&txn)
	if txn.Status != models.TransactionCompleted {
		t.Errorf("transaction status = %s, want completed", txn.Status)
	}

	var bookings []models.Booking
	database.DB.Where("payment_transaction_id = ?", txn.ID).Find(&bookings)
	if len(bookings) != 1 {
		t.Fatalf("bookings = %d, want 1 (replayed webhook must not duplicate)", len(bookings))
	}
	if bookings[0].Status != models.BookingConfirmed {
		t.Errorf("booking status = %s, want confirmed", bookings[0].Status)
	}
}
