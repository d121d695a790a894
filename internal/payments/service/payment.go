package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "pitchside/internal/bookings/errors"
	bookingrepo "pitchside/internal/bookings/repository"
	bookingservice "pitchside/internal/bookings/service"
	paymenterrors "pitchside/internal/payments/errors"
	"pitchside/internal/payments/gateway"
	"pitchside/internal/payments/repository"
	timesloterrors "pitchside/internal/timeslots/errors"
	slotrepo "pitchside/internal/timeslots/repository"
	"pitchside/pkg/config"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/events"
	"pitchside/pkg/middleware"
	"pitchside/pkg/model"
)

// PaymentService owns the reconciliation between gateway state and booking
// state. Payment status is only ever advanced on gateway confirmation, either
// a verified webhook or a server-side intent lookup.
type PaymentService interface {
	CreateIntent(ctx context.Context, booking *model.Booking) (*model.Payment, error)
	Refund(ctx context.Context, booking *model.Booking, reason string) (*model.Payment, error)

	CreatePaymentIntent(ctx context.Context, identity middleware.Identity, bookingID string) (*model.Payment, error)
	ConfirmPayment(ctx context.Context, identity middleware.Identity, bookingID, intentID string) (*model.Booking, error)
	HandleGatewayEvent(ctx context.Context, event *gateway.WebhookEvent) error
	VerifyWebhookSignature(payload []byte, signature string) bool
}

type paymentService struct {
	repo        repository.PaymentRepository
	bookingRepo bookingrepo.BookingRepository
	slotRepo    slotrepo.TimeSlotRepository
	gw          gateway.Gateway
	publisher   events.Publisher
	cfg         *config.Config
}

var _ bookingservice.PaymentCollaborator = (*paymentService)(nil)

func NewPaymentService(
	repo repository.PaymentRepository,
	bookingRepo bookingrepo.BookingRepository,
	slotRepo slotrepo.TimeSlotRepository,
	gw gateway.Gateway,
	publisher events.Publisher,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		repo:        repo,
		bookingRepo: bookingRepo,
		slotRepo:    slotRepo,
		gw:          gw,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// CreateIntent returns the single payment record for the booking, creating a
// gateway intent when none is open. An already-open intent is handed back
// as-is so repeated calls stay idempotent.
func (s *paymentService) CreateIntent(ctx context.Context, booking *model.Booking) (*model.Payment, error) {
	existing, err := s.repo.FindByBookingID(ctx, booking.ID)
	if err != nil && !errors.Is(err, paymenterrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to look up payment", err)
	}

	if existing != nil {
		switch existing.Status {
		case model.IntentPending:
			return existing, nil
		case model.IntentSucceeded:
			return nil, apperrors.PreconditionFailed("Booking is already paid")
		case model.IntentRefunded:
			return nil, apperrors.PreconditionFailed("Booking payment was refunded")
		}
		// A failed intent gets a fresh one below.
	}

	intent, err := s.gw.CreateIntent(ctx, &gateway.CreateIntentRequest{
		Amount:   gateway.MinorUnits(booking.PaymentAmount),
		Currency: s.cfg.Currency,
		Metadata: map[string]string{"booking_id": booking.ID},
	})
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		BookingID:    booking.ID,
		Amount:       booking.PaymentAmount,
		Currency:     s.cfg.Currency,
		Status:       model.IntentPending,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}

	if existing != nil {
		if err := s.repo.ResetIntent(ctx, existing.ID, intent.ID, intent.ClientSecret); err != nil {
			return nil, apperrors.Internal("Failed to refresh payment intent", err)
		}
		payment.ID = existing.ID
		s.cfg.Log.Info("Payment intent refreshed", "booking_id", booking.ID, "intent_id", intent.ID)
		return payment, nil
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, paymenterrors.ErrDuplicatePayment) {
			// A concurrent request won the insert; its record is the one.
			return s.repo.FindByBookingID(ctx, booking.ID)
		}
		return nil, apperrors.Internal("Failed to create payment", err)
	}

	s.cfg.Log.Info("Payment intent created",
		"booking_id", booking.ID,
		"intent_id", intent.ID,
		"amount", payment.Amount,
		"currency", payment.Currency,
	)
	return payment, nil
}

// Refund issues a gateway refund for a paid booking and records it.
func (s *paymentService) Refund(ctx context.Context, booking *model.Booking, reason string) (*model.Payment, error) {
	payment, err := s.fetchByBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if payment.Status == model.IntentRefunded {
		return payment, nil
	}
	if payment.Status != model.IntentSucceeded {
		return nil, apperrors.PreconditionFailed("Only a successful payment can be refunded")
	}

	result, err := s.gw.Refund(ctx, &gateway.RefundRequest{
		IntentID: payment.IntentID,
		Amount:   gateway.MinorUnits(payment.Amount),
		Reason:   reason,
	})
	if err != nil {
		return nil, err
	}

	refund := &model.Refund{
		RefundID:   result.ID,
		Amount:     payment.Amount,
		Reason:     reason,
		RefundedAt: time.Now().UTC(),
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.SetRefund(txCtx, payment.ID, refund); err != nil {
			if errors.Is(err, paymenterrors.ErrStatusConflict) {
				return apperrors.Conflict("Payment status changed, please retry")
			}
			return apperrors.Internal("Failed to record refund", err)
		}
		if err := s.bookingRepo.MarkRefunded(txCtx, booking.ID); err != nil {
			if !errors.Is(err, bookingserrors.ErrStatusConflict) {
				return apperrors.Internal("Failed to mark booking refunded", err)
			}
			// The booking may already read refunded; the payment record wins.
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payment.Status = model.IntentRefunded
	payment.Refund = refund

	s.cfg.Log.Info("Payment refunded", "booking_id", booking.ID, "refund_id", result.ID, "amount", refund.Amount)
	s.publisher.Publish(ctx, events.PaymentRefunded, booking.ID, map[string]interface{}{
		"refund_id": result.ID,
		"amount":    refund.Amount,
	})
	return payment, nil
}

// CreatePaymentIntent is the client-facing retry path after a gateway outage
// during booking creation.
func (s *paymentService) CreatePaymentIntent(ctx context.Context, identity middleware.Identity, bookingID string) (*model.Payment, error) {
	booking, err := s.fetchBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(identity.UserID) && !identity.IsAdmin() {
		return nil, apperrors.Forbidden("Booking belongs to another user")
	}
	if booking.Status != model.BookingPending && booking.Status != model.BookingConfirmed {
		return nil, apperrors.PreconditionFailed("Booking is not payable")
	}
	if booking.PaymentStatus == model.PaymentPaid {
		return nil, apperrors.PreconditionFailed("Booking is already paid")
	}
	return s.CreateIntent(ctx, booking)
}

// ConfirmPayment settles a booking after the client finished the gateway
// flow. The intent status is re-read from the gateway; the client's word is
// never enough.
func (s *paymentService) ConfirmPayment(ctx context.Context, identity middleware.Identity, bookingID, intentID string) (*model.Booking, error) {
	if intentID == "" {
		return nil, apperrors.InvalidInput("payment_intent_id is required")
	}

	booking, err := s.fetchBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(identity.UserID) && !identity.IsAdmin() {
		return nil, apperrors.Forbidden("Booking belongs to another user")
	}

	payment, err := s.fetchByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if payment.IntentID != intentID {
		return nil, apperrors.InvalidInput("Payment intent does not match this booking")
	}

	intent, err := s.gw.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != model.IntentSucceeded {
		return nil, apperrors.PreconditionFailed(
			fmt.Sprintf("Payment has not succeeded at the gateway (status %q)", intent.Status),
		)
	}

	if err := s.settleSucceeded(ctx, payment); err != nil {
		return nil, err
	}
	return s.fetchBooking(ctx, bookingID)
}

// HandleGatewayEvent applies a verified webhook event. Events can arrive more
// than once and out of order; settlement is idempotent on the payment status.
func (s *paymentService) HandleGatewayEvent(ctx context.Context, event *gateway.WebhookEvent) error {
	payment, err := s.resolveEventPayment(ctx, event)
	if err != nil {
		return err
	}

	switch event.Type {
	case gateway.EventIntentSucceeded:
		return s.settleSucceeded(ctx, payment)
	case gateway.EventIntentFailed:
		return s.settleFailed(ctx, payment)
	default:
		s.cfg.Log.Info("Ignoring gateway event", "event_id", event.ID, "type", event.Type)
		return nil
	}
}

func (s *paymentService) VerifyWebhookSignature(payload []byte, signature string) bool {
	return s.gw.VerifyWebhookSignature(payload, signature)
}

// settleSucceeded marks the payment succeeded and confirms the booking in one
// transaction. A payment already succeeded makes the whole call a no-op.
func (s *paymentService) settleSucceeded(ctx context.Context, payment *model.Payment) error {
	if payment.Status == model.IntentSucceeded {
		return nil
	}
	if payment.Status == model.IntentRefunded {
		s.cfg.Log.Warn("Ignoring success event for refunded payment", "payment_id", payment.ID)
		return nil
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.MarkSucceeded(txCtx, payment.ID); err != nil {
			if errors.Is(err, paymenterrors.ErrStatusConflict) {
				// Lost the race to another settle; nothing left to do.
				return nil
			}
			return apperrors.Internal("Failed to mark payment succeeded", err)
		}
		if err := s.bookingRepo.MarkPaid(txCtx, payment.BookingID); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusConflict) {
				// The booking left pending before the money arrived, likely a
				// cancellation racing the webhook. Keep the payment record
				// truthful and let the refund path sort the booking out.
				s.cfg.Log.Warn("Payment succeeded for a non-pending booking",
					"booking_id", payment.BookingID,
					"payment_id", payment.ID,
				)
				return nil
			}
			return apperrors.Internal("Failed to confirm booking", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Payment settled", "booking_id", payment.BookingID, "payment_id", payment.ID)
	s.publisher.Publish(ctx, events.PaymentSucceeded, payment.BookingID, map[string]interface{}{
		"intent_id": payment.IntentID,
		"amount":    payment.Amount,
	})
	return nil
}

// settleFailed marks the payment failed, cancels the booking, and frees the
// slot. Late failure events for settled payments are ignored.
func (s *paymentService) settleFailed(ctx context.Context, payment *model.Payment) error {
	if payment.Status != model.IntentPending {
		s.cfg.Log.Info("Ignoring failure event for settled payment",
			"payment_id", payment.ID,
			"status", payment.Status,
		)
		return nil
	}

	booking, err := s.fetchBooking(ctx, payment.BookingID)
	if err != nil {
		return err
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.MarkFailed(txCtx, payment.ID); err != nil {
			if errors.Is(err, paymenterrors.ErrStatusConflict) {
				return nil
			}
			return apperrors.Internal("Failed to mark payment failed", err)
		}
		if err := s.bookingRepo.MarkPaymentFailed(txCtx, payment.BookingID); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusConflict) {
				return nil
			}
			return apperrors.Internal("Failed to cancel booking", err)
		}
		if err := s.slotRepo.Release(txCtx, booking.TimeSlotID, booking.ID); err != nil {
			if errors.Is(err, timesloterrors.ErrSlotUnavailable) {
				return nil
			}
			return apperrors.Internal("Failed to release time slot", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Payment failed, booking cancelled",
		"booking_id", payment.BookingID,
		"payment_id", payment.ID,
	)
	s.publisher.Publish(ctx, events.PaymentFailed, payment.BookingID, map[string]interface{}{
		"intent_id": payment.IntentID,
	})
	return nil
}

func (s *paymentService) resolveEventPayment(ctx context.Context, event *gateway.WebhookEvent) (*model.Payment, error) {
	if event.Data.IntentID != "" {
		payment, err := s.repo.FindByIntentID(ctx, event.Data.IntentID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, paymenterrors.ErrNotFound) {
			return nil, apperrors.Internal("Failed to look up payment", err)
		}
	}
	if event.Data.BookingID != "" {
		return s.fetchByBooking(ctx, event.Data.BookingID)
	}
	return nil, apperrors.NotFound("Payment")
}

func (s *paymentService) fetchByBooking(ctx context.Context, bookingID string) (*model.Payment, error) {
	payment, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, paymenterrors.ErrNotFound) {
			return nil, apperrors.NotFound("Payment")
		}
		return nil, apperrors.Internal("Failed to look up payment", err)
	}
	return payment, nil
}

func (s *paymentService) fetchBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}
