package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "pitchside/internal/bookings/errors"
	"pitchside/internal/bookings/repository"
	coachrepo "pitchside/internal/coaches/repository"
	timesloterrors "pitchside/internal/timeslots/errors"
	slotrepo "pitchside/internal/timeslots/repository"
	"pitchside/pkg/config"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/events"
	"pitchside/pkg/middleware"
	"pitchside/pkg/model"
	"pitchside/pkg/sanitizer"
)

// PaymentCollaborator is the payments service surface the booking flow needs.
// It is an interface here so the two services wire together without a cycle.
type PaymentCollaborator interface {
	CreateIntent(ctx context.Context, booking *model.Booking) (*model.Payment, error)
	Refund(ctx context.Context, booking *model.Booking, reason string) (*model.Payment, error)
}

// PaymentIntentInfo is the gateway handle returned to the client so it can
// complete payment.
type PaymentIntentInfo struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// BookingResult is the creation response. PaymentIntent is nil when the
// gateway was unreachable; the client then retries via create-payment-intent.
type BookingResult struct {
	Booking       *model.Booking     `json:"booking"`
	PaymentIntent *PaymentIntentInfo `json:"payment_intent,omitempty"`
}

type CreateBookingRequest struct {
	CoachID    string `json:"coach_id"`
	TimeSlotID string `json:"time_slot_id"`
}

type BookingService interface {
	Create(ctx context.Context, identity middleware.Identity, req *CreateBookingRequest) (*BookingResult, error)
	GetByID(ctx context.Context, identity middleware.Identity, id string) (*model.Booking, error)
	List(ctx context.Context, identity middleware.Identity, limit int, offset int64) ([]*model.Booking, int64, error)
	UpdateStatus(ctx context.Context, identity middleware.Identity, id, status, reason string) (*model.Booking, error)
	Cancel(ctx context.Context, identity middleware.Identity, id, reason string) (*model.Booking, error)
	SubmitFeedback(ctx context.Context, identity middleware.Identity, id string, feedback *model.Feedback) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.SlotLockRepository
	slotRepo  slotrepo.TimeSlotRepository
	coachRepo coachrepo.CoachRepository
	payments  PaymentCollaborator
	publisher events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.SlotLockRepository,
	slotRepo slotrepo.TimeSlotRepository,
	coachRepo coachrepo.CoachRepository,
	payments PaymentCollaborator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		slotRepo:  slotRepo,
		coachRepo: coachRepo,
		payments:  payments,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create claims a slot for the caller. The advisory lock serializes racing
// requests on the same slot; inside the transaction the booking insert and
// the conditional slot claim commit or roll back together. The gateway intent
// is requested only after the transaction commits, so a gateway outage leaves
// a retryable pending booking rather than a half-written one.
func (s *bookingService) Create(ctx context.Context, identity middleware.Identity, req *CreateBookingRequest) (*BookingResult, error) {
	if identity.UserID == "" {
		return nil, apperrors.Forbidden("Authentication required")
	}
	if req.CoachID == "" || req.TimeSlotID == "" {
		return nil, apperrors.InvalidInput("coach_id and time_slot_id are required")
	}

	coach, err := s.resolveCoach(ctx, req.CoachID)
	if err != nil {
		return nil, err
	}
	if !coach.Approved {
		return nil, apperrors.PreconditionFailed("Coach is not approved for bookings")
	}

	slot, err := s.resolveSlot(ctx, req.TimeSlotID)
	if err != nil {
		return nil, err
	}
	if slot.CoachID != req.CoachID {
		return nil, apperrors.InvalidInput("Time slot does not belong to the given coach")
	}
	if slot.Status != model.SlotAvailable {
		return nil, apperrors.PreconditionFailed("Time slot is not available")
	}

	if err := s.checkCutoff(slot, coach); err != nil {
		return nil, err
	}

	amount := coach.HourlyRate * float64(slot.DurationMinutes) / 60.0

	booking := &model.Booking{
		UserID:        identity.UserID,
		CoachID:       req.CoachID,
		TimeSlotID:    req.TimeSlotID,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentPending,
		PaymentAmount: amount,
	}

	lockID, err := s.lockRepo.Acquire(ctx, req.TimeSlotID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			return nil, apperrors.Conflict("This slot is being booked by another request. Please try again.")
		}
		return nil, apperrors.Internal("Failed to acquire slot lock", err)
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		if err := s.slotRepo.Claim(txCtx, req.TimeSlotID, booking.ID); err != nil {
			if errors.Is(err, timesloterrors.ErrSlotUnavailable) {
				return apperrors.PreconditionFailed("Time slot is not available")
			}
			return apperrors.Internal("Failed to claim time slot", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"user_id", identity.UserID,
			"time_slot_id", req.TimeSlotID,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"user_id", booking.UserID,
		"coach_id", booking.CoachID,
		"time_slot_id", booking.TimeSlotID,
		"payment_amount", booking.PaymentAmount,
	)
	s.publisher.Publish(ctx, events.BookingCreated, booking.ID, map[string]interface{}{
		"user_id":        booking.UserID,
		"coach_id":       booking.CoachID,
		"payment_amount": booking.PaymentAmount,
	})

	result := &BookingResult{Booking: booking}
	payment, err := s.payments.CreateIntent(ctx, booking)
	if err != nil {
		// Booking stays pending; create-payment-intent retries the gateway.
		s.cfg.Log.Warn("Payment intent creation failed after booking commit",
			"booking_id", booking.ID,
			"error", err,
		)
		return result, nil
	}
	result.PaymentIntent = &PaymentIntentInfo{
		ID:           payment.IntentID,
		ClientSecret: payment.ClientSecret,
	}
	return result, nil
}

func (s *bookingService) GetByID(ctx context.Context, identity middleware.Identity, id string) (*model.Booking, error) {
	booking, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(identity, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// List is requester-scoped: clients see their own bookings, coaches their
// coaching schedule, admins everything.
func (s *bookingService) List(ctx context.Context, identity middleware.Identity, limit int, offset int64) ([]*model.Booking, int64, error) {
	var userID, coachID string
	switch {
	case identity.IsAdmin():
	case identity.IsCoach():
		coachID = identity.CoachID
	case identity.UserID != "":
		userID = identity.UserID
	default:
		return nil, 0, apperrors.Forbidden("Authentication required")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, userID, coachID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.Find(ctx, userID, coachID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// UpdateStatus applies a coach-driven transition (confirm, complete, no-show,
// cancel). The transition table is the only path between statuses; the slot
// side effect, when one exists, commits in the same transaction.
func (s *bookingService) UpdateStatus(ctx context.Context, identity middleware.Identity, id, status, reason string) (*model.Booking, error) {
	if !model.IsValidBookingStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Unknown booking status %q", status))
	}

	booking, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && !(identity.IsCoach() && booking.CoachID == identity.CoachID) {
		return nil, apperrors.Forbidden("Only the coach can update booking status")
	}

	if status == model.BookingCancelled {
		return s.cancel(ctx, booking, reason, identity.UserID)
	}

	if !model.CanTransitionBooking(booking.Status, status) {
		return nil, apperrors.InvalidTransition("booking", booking.Status, status)
	}

	if err := s.applyTransition(ctx, booking, status); err != nil {
		return nil, err
	}

	switch status {
	case model.BookingConfirmed:
		s.publisher.Publish(ctx, events.BookingConfirmed, booking.ID, nil)
	case model.BookingCompleted:
		s.publisher.Publish(ctx, events.BookingCompleted, booking.ID, nil)
	}

	s.cfg.Log.Info("Booking status updated", "id", id, "from", booking.Status, "to", status)
	return s.fetch(ctx, id)
}

func (s *bookingService) Cancel(ctx context.Context, identity middleware.Identity, id, reason string) (*model.Booking, error) {
	booking, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := booking.IsOwnedBy(identity.UserID) ||
		identity.IsAdmin() ||
		(identity.IsCoach() && booking.CoachID == identity.CoachID)
	if !allowed {
		return nil, apperrors.Forbidden("Only the booking owner can cancel it")
	}

	return s.cancel(ctx, booking, reason, identity.UserID)
}

func (s *bookingService) cancel(ctx context.Context, booking *model.Booking, reason, cancelledBy string) (*model.Booking, error) {
	if !model.CanTransitionBooking(booking.Status, model.BookingCancelled) {
		return nil, apperrors.InvalidTransition("booking", booking.Status, model.BookingCancelled)
	}

	reason = sanitizer.SanitizeFreeText(reason)
	effect := model.SlotEffectFor(booking.Status, model.BookingCancelled)

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Cancel(txCtx, booking.ID, booking.Status, reason, cancelledBy); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusConflict) {
				return apperrors.Conflict("Booking status changed, please retry")
			}
			return apperrors.Internal("Failed to cancel booking", err)
		}
		if effect == model.SlotEffectRelease {
			if err := s.slotRepo.Release(txCtx, booking.TimeSlotID, booking.ID); err != nil {
				return apperrors.Internal("Failed to release time slot", err)
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel booking", "id", booking.ID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking cancelled", "id", booking.ID, "cancelled_by", cancelledBy)
	s.publisher.Publish(ctx, events.BookingCancelled, booking.ID, map[string]interface{}{
		"reason":       reason,
		"cancelled_by": cancelledBy,
	})

	if booking.PaymentStatus == model.PaymentPaid {
		if _, err := s.payments.Refund(ctx, booking, reason); err != nil {
			// The cancellation stands; the refund is retried operationally.
			s.cfg.Log.Error("Refund failed after cancellation",
				"booking_id", booking.ID,
				"error", err,
			)
		}
	}

	return s.fetch(ctx, booking.ID)
}

func (s *bookingService) SubmitFeedback(ctx context.Context, identity middleware.Identity, id string, feedback *model.Feedback) (*model.Booking, error) {
	if feedback == nil || feedback.Rating < 1 || feedback.Rating > 5 {
		return nil, apperrors.Validation("Rating must be between 1 and 5", nil)
	}

	booking, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsOwnedBy(identity.UserID) {
		return nil, apperrors.Forbidden("Only the booking owner can leave feedback")
	}
	if booking.Status != model.BookingCompleted {
		return nil, apperrors.PreconditionFailed("Feedback is only allowed on completed bookings")
	}

	feedback.Comment = sanitizer.SanitizeFreeText(feedback.Comment)

	if err := s.repo.SetFeedback(ctx, id, feedback); err != nil {
		if errors.Is(err, bookingserrors.ErrStatusConflict) {
			return nil, apperrors.PreconditionFailed("Feedback is only allowed on completed bookings")
		}
		return nil, apperrors.Internal("Failed to save feedback", err)
	}

	s.cfg.Log.Info("Booking feedback saved", "id", id, "rating", feedback.Rating)
	return s.fetch(ctx, id)
}

// --- Helpers ---

func (s *bookingService) fetch(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.repo.FindByID(ctx, id)
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

func (s *bookingService) authorizeRead(identity middleware.Identity, booking *model.Booking) error {
	if booking.IsOwnedBy(identity.UserID) ||
		identity.IsAdmin() ||
		(identity.IsCoach() && booking.CoachID == identity.CoachID) {
		return nil
	}
	return apperrors.Forbidden("Booking belongs to another user")
}

func (s *bookingService) resolveCoach(ctx context.Context, coachID string) (*model.Coach, error) {
	coach, err := s.coachRepo.FindByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, coachrepo.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Coach", coachID)
		}
		if errors.Is(err, coachrepo.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid coach ID format")
		}
		return nil, apperrors.Internal("Failed to resolve coach", err)
	}
	return coach, nil
}

func (s *bookingService) resolveSlot(ctx context.Context, slotID string) (*model.TimeSlot, error) {
	slot, err := s.slotRepo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, timesloterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Time slot", slotID)
		}
		if errors.Is(err, timesloterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid time slot ID format")
		}
		return nil, apperrors.Internal("Failed to resolve time slot", err)
	}
	return slot, nil
}

func (s *bookingService) checkCutoff(slot *model.TimeSlot, coach *model.Coach) error {
	startAt, err := slot.StartAt()
	if err != nil {
		return apperrors.Internal("Slot has an unparseable start time", err)
	}
	cutoffHours := slot.BookingCutoffHours
	if cutoffHours == 0 {
		cutoffHours = coach.CutoffHours(s.cfg.DefaultBookingCutoffHours)
	}
	if time.Until(startAt) < time.Duration(cutoffHours)*time.Hour {
		return apperrors.PreconditionFailed(
			fmt.Sprintf("Booking cutoff has passed: slots must be booked at least %d hours in advance", cutoffHours),
		)
	}
	return nil
}

func (s *bookingService) applyTransition(ctx context.Context, booking *model.Booking, to string) error {
	effect := model.SlotEffectFor(booking.Status, to)

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Transition(txCtx, booking.ID, booking.Status, to); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusConflict) {
				return apperrors.Conflict("Booking status changed, please retry")
			}
			return apperrors.Internal("Failed to update booking status", err)
		}
		if effect == model.SlotEffectRelease {
			if err := s.slotRepo.Release(txCtx, booking.TimeSlotID, booking.ID); err != nil {
				return apperrors.Internal("Failed to release time slot", err)
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to apply booking transition",
			"id", booking.ID,
			"from", booking.Status,
			"to", to,
			"error", err,
		)
	}
	return err
}
