package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: logger.FormatJSON, Service: "test"})
}

func newTestGateway(baseURL string) Gateway {
	return NewHTTPGateway(Config{
		BaseURL:       baseURL,
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		Timeout:       2 * time.Second,
	}, testLogger())
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	g := newTestGateway("http://unused")
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	if !g.VerifyWebhookSignature(payload, sign("whsec_test", payload)) {
		t.Error("expected valid signature to verify")
	}
	if !g.VerifyWebhookSignature(payload, "sha256="+sign("whsec_test", payload)) {
		t.Error("expected prefixed signature to verify")
	}
	if g.VerifyWebhookSignature(payload, sign("wrong_secret", payload)) {
		t.Error("expected signature from wrong secret to fail")
	}
	if g.VerifyWebhookSignature([]byte(`tampered`), sign("whsec_test", payload)) {
		t.Error("expected signature over different payload to fail")
	}
	if g.VerifyWebhookSignature(payload, "not-hex") {
		t.Error("expected malformed signature to fail")
	}
	if g.VerifyWebhookSignature(payload, "") {
		t.Error("expected empty signature to fail")
	}
}

func TestCreateIntent_RetriesServerErrors(t *testing.T) {
	var attempts int
	var idempotencyKeys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		idempotencyKeys = append(idempotencyKeys, r.Header.Get("Idempotency-Key"))
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_1","client_secret":"cs_1","status":"pending","amount":5000,"currency":"usd"}`))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	intent, err := g.CreateIntent(context.Background(), &CreateIntentRequest{Amount: 5000, Currency: "usd"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if intent.ID != "pi_1" || intent.ClientSecret != "cs_1" {
		t.Errorf("unexpected intent: %+v", intent)
	}
	for i, key := range idempotencyKeys {
		if key == "" {
			t.Errorf("attempt %d missing idempotency key", i+1)
		}
		if key != idempotencyKeys[0] {
			t.Error("expected the same idempotency key on every retry")
		}
	}
}

func TestCreateIntent_DoesNotRetryClientErrors(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	_, err := g.CreateIntent(context.Background(), &CreateIntentRequest{Amount: 5000, Currency: "usd"})

	if attempts != 1 {
		t.Errorf("expected a single attempt on 4xx, got %d", attempts)
	}
	if !apperrors.IsCode(err, apperrors.CodeGateway) {
		t.Fatalf("expected GATEWAY_ERROR, got %v", err)
	}
	if appErr := apperrors.AsAppError(err); appErr == nil || appErr.Message != "card declined" {
		t.Errorf("expected provider message surfaced, got %v", err)
	}
}

func TestCreateIntent_ExhaustedRetriesSurfaceGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	_, err := g.CreateIntent(context.Background(), &CreateIntentRequest{Amount: 100, Currency: "usd"})

	if !apperrors.IsCode(err, apperrors.CodeGateway) {
		t.Fatalf("expected GATEWAY_ERROR after exhausted retries, got %v", err)
	}
}

func TestRetrieveIntent_SendsBearerAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test_123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/payment_intents/pi_42" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"id":"pi_42","status":"succeeded"}`))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	intent, err := g.RetrieveIntent(context.Background(), "pi_42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Status != "succeeded" {
		t.Errorf("expected succeeded, got %q", intent.Status)
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{50.00, 5000},
		{37.50, 3750},
		{0.01, 1},
		{19.99, 1999},
		{0, 0},
	}
	for _, tt := range tests {
		if got := MinorUnits(tt.amount); got != tt.want {
			t.Errorf("MinorUnits(%v) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}
