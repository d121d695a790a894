package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"pitchside/internal/payments/gateway"
	"pitchside/internal/payments/service"
	httputil "pitchside/pkg/http"
	"pitchside/pkg/logger"
	"pitchside/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// SignatureHeader carries the gateway's HMAC over the raw webhook payload.
const SignatureHeader = "X-Gateway-Signature"

type PaymentHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log,
	}
}

func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity := middleware.IdentityFrom(r.Context())
	payment, err := h.service.CreatePaymentIntent(r.Context(), identity, ps.ByName("bookingId"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreatePaymentIntent", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, payment); err != nil {
		h.log.Error("failed to write created response", "handler", "CreatePaymentIntent", "error", err)
	}
}

func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ConfirmPayment", "error", writeErr)
		}
		return
	}

	identity := middleware.IdentityFrom(r.Context())
	booking, err := h.service.ConfirmPayment(r.Context(), identity, ps.ByName("bookingId"), req.PaymentIntentID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ConfirmPayment", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "ConfirmPayment", "error", err)
	}
}

// Webhook acknowledges every verified event with 200 so the gateway stops
// redelivering; processing failures are logged and retried on the next
// delivery. Only a bad signature or unreadable payload gets a 400.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Unable to read request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Webhook", "error", writeErr)
		}
		return
	}

	if !h.service.VerifyWebhookSignature(payload, r.Header.Get(SignatureHeader)) {
		h.log.Warn("Rejected webhook with invalid signature", "remote_addr", r.RemoteAddr)
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid webhook signature",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Webhook", "error", writeErr)
		}
		return
	}

	var event gateway.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid event payload",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Webhook", "error", writeErr)
		}
		return
	}

	if err := h.service.HandleGatewayEvent(r.Context(), &event); err != nil {
		h.log.Error("Failed to process gateway event",
			"event_id", event.ID,
			"type", event.Type,
			"error", err,
		)
	}

	if err := httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Webhook", "error", err)
	}
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/payments/create-payment-intent/:bookingId", h.CreatePaymentIntent)
	router.POST("/api/v1/payments/confirm-payment/:bookingId", h.ConfirmPayment)
	router.POST("/api/v1/payments/webhook", h.Webhook)
}
