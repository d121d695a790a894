// Package gateway talks to the external payment provider. Amounts cross the
// wire in minor units; everything else in the service uses major units.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/logger"
)

// Webhook event types the provider delivers.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.failed"
)

const maxAttempts = 3

// Intent is the provider's record of a payment attempt.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type RefundResult struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// WebhookEvent is the envelope the provider posts to our webhook endpoint.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		IntentID  string `json:"intent_id"`
		BookingID string `json:"booking_id"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
	} `json:"data"`
}

type CreateIntentRequest struct {
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type RefundRequest struct {
	IntentID string `json:"intent_id"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason,omitempty"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, req *CreateIntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
}

type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

type httpGateway struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
}

func NewHTTPGateway(cfg Config, log *logger.Logger) Gateway {
	return &httpGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

func (g *httpGateway) CreateIntent(ctx context.Context, req *CreateIntentRequest) (*Intent, error) {
	var intent Intent
	// The idempotency key makes retried creates safe on the provider side.
	err := g.do(ctx, http.MethodPost, "/v1/payment_intents", req, uuid.NewString(), &intent)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (g *httpGateway) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	var intent Intent
	err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+intentID, nil, "", &intent)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (g *httpGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error) {
	var refund RefundResult
	err := g.do(ctx, http.MethodPost, "/v1/refunds", req, uuid.NewString(), &refund)
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of the raw payload.
// Timing-safe comparison is used even on a mismatch of lengths.
func (g *httpGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.cfg.WebhookSecret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}

// do sends the request with retries on transport errors and 5xx responses.
// Provider 4xx responses are terminal and surface as gateway errors.
func (g *httpGateway) do(ctx context.Context, method, path string, body any, idempotencyKey string, target any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apperrors.Internal("Failed to encode gateway request", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return apperrors.Gateway("Gateway request cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt-1) * 200 * time.Millisecond):
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reqBody)
		if err != nil {
			return apperrors.Internal("Failed to build gateway request", err)
		}
		req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			lastErr = err
			g.log.Warn("Gateway request failed", "method", method, "path", path, "attempt", attempt, "error", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("gateway returned %d: %s", resp.StatusCode, respBody)
			g.log.Warn("Gateway server error", "method", method, "path", path, "status", resp.StatusCode, "attempt", attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return apperrors.Gateway(gatewayErrorMessage(respBody), fmt.Errorf("gateway returned %d", resp.StatusCode))
		}

		if target != nil {
			if err := json.Unmarshal(respBody, target); err != nil {
				return apperrors.Gateway("Gateway returned an unreadable response", err)
			}
		}
		return nil
	}

	return apperrors.Gateway("Payment gateway is unavailable", lastErr)
}

func gatewayErrorMessage(body []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error.Message != "" {
			return errResp.Error.Message
		}
		if errResp.Message != "" {
			return errResp.Message
		}
	}
	return "Payment gateway rejected the request"
}

// MinorUnits converts a major-unit amount to the integer minor units the
// provider expects.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
