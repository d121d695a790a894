package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	coachrepo "pitchside/internal/coaches/repository"
	timesloterrors "pitchside/internal/timeslots/errors"
	"pitchside/internal/timeslots/repository"
	"pitchside/internal/timeslots/validator"
	"pitchside/pkg/config"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/middleware"
	"pitchside/pkg/model"
)

type TimeSlotService interface {
	GetAvailability(ctx context.Context, coachID string, from, to *time.Time) ([]*model.AvailableSlot, error)
	GetCoachSlots(ctx context.Context, identity middleware.Identity, from, to *time.Time) ([]*model.TimeSlot, error)
	CreateSlot(ctx context.Context, identity middleware.Identity, slot *model.TimeSlot) error
	UpdateSlot(ctx context.Context, identity middleware.Identity, id string, updates *model.TimeSlotUpdate) (*model.TimeSlot, error)
	DeleteSlot(ctx context.Context, identity middleware.Identity, id string) error
	GenerateRecurring(ctx context.Context, identity middleware.Identity, templates []model.RecurringTemplate) (*repository.BulkInsertResult, error)
}

type timeSlotService struct {
	slotRepo  repository.TimeSlotRepository
	coachRepo coachrepo.CoachRepository
	validator *validator.TimeSlotValidator
	cfg       *config.Config
}

func NewTimeSlotService(
	slotRepo repository.TimeSlotRepository,
	coachRepo coachrepo.CoachRepository,
	validator *validator.TimeSlotValidator,
	cfg *config.Config,
) TimeSlotService {
	return &timeSlotService{
		slotRepo:  slotRepo,
		coachRepo: coachRepo,
		validator: validator,
		cfg:       cfg,
	}
}

// GetAvailability lists a coach's bookable slots. Slots whose start lies
// inside the booking cutoff are filtered out here so clients never see a slot
// they cannot book. Default window is today through Sunday of the current
// week (weeks start Monday).
func (s *timeSlotService) GetAvailability(ctx context.Context, coachID string, from, to *time.Time) ([]*model.AvailableSlot, error) {
	if coachID == "" {
		return nil, apperrors.InvalidInput("coach_id is required")
	}

	coach, err := s.resolveCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	if !coach.Approved {
		// Unapproved coaches are invisible to clients, same as unknown ones.
		return nil, apperrors.NotFoundWithID("Coach", coachID)
	}

	start, end := defaultAvailabilityWindow(time.Now().UTC())
	if from != nil {
		start = normalizeDate(*from)
	}
	if to != nil {
		end = normalizeDate(*to)
	}
	if end.Before(start) {
		return nil, apperrors.InvalidInput("end_date must not be before start_date")
	}

	slots, err := s.slotRepo.FindAvailableByCoach(ctx, coachID, start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to query available slots", "coach_id", coachID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve availability", err)
	}

	now := time.Now().UTC()
	available := make([]*model.AvailableSlot, 0, len(slots))
	for _, slot := range slots {
		bookable, err := s.isOutsideCutoff(slot, coach, now)
		if err != nil {
			s.cfg.Log.Warn("Skipping slot with unparseable start time", "slot_id", slot.ID, "error", err)
			continue
		}
		if !bookable {
			continue
		}
		available = append(available, &model.AvailableSlot{
			TimeSlot:   *slot,
			HourlyRate: coach.HourlyRate,
		})
	}

	return available, nil
}

func (s *timeSlotService) GetCoachSlots(ctx context.Context, identity middleware.Identity, from, to *time.Time) ([]*model.TimeSlot, error) {
	if !identity.IsCoach() {
		return nil, apperrors.Forbidden("Only coaches can view their schedule")
	}

	start := normalizeDate(time.Now().UTC())
	end := start.AddDate(0, 0, 7*s.cfg.RecurringWeeksAhead)
	if from != nil {
		start = normalizeDate(*from)
	}
	if to != nil {
		end = normalizeDate(*to)
	}
	if end.Before(start) {
		return nil, apperrors.InvalidInput("end_date must not be before start_date")
	}

	slots, err := s.slotRepo.FindByCoachAndDateRange(ctx, identity.CoachID, start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to list coach slots", "coach_id", identity.CoachID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}
	return slots, nil
}

func (s *timeSlotService) CreateSlot(ctx context.Context, identity middleware.Identity, slot *model.TimeSlot) error {
	if !identity.IsCoach() {
		return apperrors.Forbidden("Only coaches can manage slots")
	}

	// Ownership is asserted, never taken from the request body.
	slot.CoachID = identity.CoachID
	slot.Status = model.SlotAvailable
	slot.BookedCount = 0
	slot.BookingID = nil
	slot.Date = normalizeDate(slot.Date)

	coach, err := s.resolveCoach(ctx, identity.CoachID)
	if err != nil {
		return err
	}
	if slot.BookingCutoffHours == 0 {
		slot.BookingCutoffHours = coach.CutoffHours(s.cfg.DefaultBookingCutoffHours)
	}

	if err := s.checkLeadTime(slot, "created"); err != nil {
		return err
	}
	if err := s.applyDuration(slot); err != nil {
		return err
	}
	if err := s.validate(slot); err != nil {
		return err
	}

	err = s.slotRepo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.verifyNoOverlap(txCtx, slot, ""); err != nil {
			return err
		}
		if err := s.slotRepo.Create(txCtx, slot); err != nil {
			if errors.Is(err, timesloterrors.ErrDuplicateSlot) {
				return apperrors.Validation("A slot already exists at this start time", map[string]any{
					"date":       slot.Date.Format("2006-01-02"),
					"start_time": slot.StartTime,
				})
			}
			return apperrors.Internal("Failed to create time slot", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create time slot", "coach_id", slot.CoachID, "error", err)
		return err
	}

	s.cfg.Log.Info("Time slot created",
		"id", slot.ID,
		"coach_id", slot.CoachID,
		"date", slot.Date.Format("2006-01-02"),
		"start_time", slot.StartTime,
	)
	return nil
}

func (s *timeSlotService) UpdateSlot(ctx context.Context, identity middleware.Identity, id string, updates *model.TimeSlotUpdate) (*model.TimeSlot, error) {
	existing, err := s.getOwnedSlot(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeSlotUpdates(existing, updates)

	if merged.Capacity < merged.BookedCount {
		return nil, apperrors.Validation(
			fmt.Sprintf("Capacity cannot drop below current booked count (%d)", merged.BookedCount),
			map[string]any{"capacity": merged.Capacity, "booked_count": merged.BookedCount},
		)
	}

	if err := s.applyDuration(merged); err != nil {
		return nil, err
	}
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	timesChanged := merged.StartTime != existing.StartTime || merged.EndTime != existing.EndTime
	if timesChanged && existing.BookedCount > 0 {
		return nil, apperrors.PreconditionFailed("Cannot reschedule a slot with active bookings")
	}

	err = s.slotRepo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if timesChanged {
			if err := s.verifyNoOverlap(txCtx, merged, merged.ID); err != nil {
				return err
			}
		}
		if err := s.slotRepo.Update(txCtx, id, merged); err != nil {
			if errors.Is(err, timesloterrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Time slot", id)
			}
			return apperrors.Internal("Failed to update time slot", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update time slot", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Time slot updated", "id", id, "coach_id", merged.CoachID)
	return merged, nil
}

func (s *timeSlotService) DeleteSlot(ctx context.Context, identity middleware.Identity, id string) error {
	existing, err := s.getOwnedSlot(ctx, identity, id)
	if err != nil {
		return err
	}
	if existing.Status != model.SlotAvailable {
		return apperrors.PreconditionFailed("Only available slots can be deleted")
	}
	if err := s.checkLeadTime(existing, "deleted"); err != nil {
		return err
	}

	if err := s.slotRepo.DeleteAvailable(ctx, id); err != nil {
		if errors.Is(err, timesloterrors.ErrSlotUnavailable) {
			return apperrors.PreconditionFailed("Only available slots can be deleted")
		}
		s.cfg.Log.Error("Failed to delete time slot", "id", id, "error", err)
		return apperrors.Internal("Failed to delete time slot", err)
	}

	s.cfg.Log.Info("Time slot deleted", "id", id, "coach_id", existing.CoachID)
	return nil
}

// GenerateRecurring materializes a weekly template into concrete slots for
// the configured number of weeks ahead. Re-runs are safe: the unique
// (coach_id, date, start_time) index turns collisions into skips.
func (s *timeSlotService) GenerateRecurring(ctx context.Context, identity middleware.Identity, templates []model.RecurringTemplate) (*repository.BulkInsertResult, error) {
	if !identity.IsCoach() {
		return nil, apperrors.Forbidden("Only coaches can manage slots")
	}
	if len(templates) == 0 {
		return nil, apperrors.InvalidInput("At least one recurring template is required")
	}

	coach, err := s.resolveCoach(ctx, identity.CoachID)
	if err != nil {
		return nil, err
	}

	for i := range templates {
		if err := s.validator.ValidateTemplate(&templates[i]); err != nil {
			return nil, apperrors.Validation("Invalid recurring template", map[string]any{"error": err.Error()})
		}
	}

	today := normalizeDate(time.Now().UTC())
	var slots []*model.TimeSlot
	for offset := 0; offset < 7*s.cfg.RecurringWeeksAhead; offset++ {
		date := today.AddDate(0, 0, offset)
		for i := range templates {
			tpl := &templates[i]
			if int(date.Weekday()) != tpl.DayOfWeek {
				continue
			}
			cutoff := tpl.BookingCutoffHours
			if cutoff == 0 {
				cutoff = coach.CutoffHours(s.cfg.DefaultBookingCutoffHours)
			}
			slot := &model.TimeSlot{
				CoachID:            identity.CoachID,
				Date:               date,
				StartTime:          tpl.StartTime,
				EndTime:            tpl.EndTime,
				Status:             model.SlotAvailable,
				Capacity:           tpl.Capacity,
				BookingCutoffHours: cutoff,
			}
			if err := s.applyDuration(slot); err != nil {
				return nil, err
			}
			if err := s.validate(slot); err != nil {
				return nil, err
			}
			slots = append(slots, slot)
		}
	}

	if len(slots) == 0 {
		return &repository.BulkInsertResult{}, nil
	}

	result, err := s.slotRepo.InsertManySkipDuplicates(ctx, slots)
	if err != nil {
		s.cfg.Log.Error("Failed to generate recurring slots", "coach_id", identity.CoachID, "error", err)
		return nil, apperrors.Internal("Failed to generate recurring slots", err)
	}

	s.cfg.Log.Info("Recurring slots generated",
		"coach_id", identity.CoachID,
		"created", result.Created,
		"skipped", result.Skipped,
	)
	return result, nil
}

// --- Helpers ---

func (s *timeSlotService) resolveCoach(ctx context.Context, coachID string) (*model.Coach, error) {
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

func (s *timeSlotService) getOwnedSlot(ctx context.Context, identity middleware.Identity, id string) (*model.TimeSlot, error) {
	if !identity.IsCoach() && !identity.IsAdmin() {
		return nil, apperrors.Forbidden("Only coaches can manage slots")
	}
	if id == "" {
		return nil, apperrors.InvalidInput("Time slot ID cannot be empty")
	}

	slot, err := s.slotRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, timesloterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Time slot", id)
		}
		if errors.Is(err, timesloterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid time slot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve time slot", err)
	}

	if !identity.IsAdmin() && slot.CoachID != identity.CoachID {
		return nil, apperrors.Forbidden("Slot belongs to another coach")
	}
	return slot, nil
}

func (s *timeSlotService) applyDuration(slot *model.TimeSlot) error {
	minutes, err := model.MinutesBetween(slot.StartTime, slot.EndTime)
	if err != nil {
		return apperrors.Validation("Times must be 24-hour HH:mm", map[string]any{"error": err.Error()})
	}
	if minutes < s.cfg.MinSlotDurationMin || minutes > s.cfg.MaxSlotDurationMin {
		return apperrors.Validation(
			fmt.Sprintf("Slot duration must be between %d and %d minutes", s.cfg.MinSlotDurationMin, s.cfg.MaxSlotDurationMin),
			map[string]any{"duration_minutes": minutes},
		)
	}
	slot.DurationMinutes = minutes
	return nil
}

func (s *timeSlotService) validate(slot *model.TimeSlot) error {
	if err := s.validator.Validate(slot); err != nil {
		s.cfg.Log.Warn("Time slot validation failed", "error", err)
		return apperrors.Validation("Time slot validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *timeSlotService) mergeSlotUpdates(existing *model.TimeSlot, updates *model.TimeSlotUpdate) *model.TimeSlot {
	merged := *existing

	if updates.StartTime != "" {
		merged.StartTime = updates.StartTime
	}
	if updates.EndTime != "" {
		merged.EndTime = updates.EndTime
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	if updates.BookingCutoffHours != nil {
		merged.BookingCutoffHours = *updates.BookingCutoffHours
	}

	return &merged
}

func (s *timeSlotService) verifyNoOverlap(ctx context.Context, slot *model.TimeSlot, excludeID string) error {
	existing, err := s.slotRepo.FindOverlapping(ctx, slot.CoachID, slot.Date, slot.StartTime, slot.EndTime)
	if err != nil {
		return apperrors.Internal("Failed to check overlapping slots", err)
	}
	for _, other := range existing {
		if other.ID == excludeID {
			continue
		}
		return apperrors.Validation(
			fmt.Sprintf("Slot overlaps with an existing slot (%s - %s)", other.StartTime, other.EndTime),
			map[string]any{"conflicting_slot_id": other.ID},
		)
	}
	return nil
}

// checkLeadTime gates slot creation and deletion on the same cutoff window
// that gates bookings. A slot already inside the window, or dated in the
// past, cannot be touched.
func (s *timeSlotService) checkLeadTime(slot *model.TimeSlot, action string) error {
	startAt, err := slot.StartAt()
	if err != nil {
		return apperrors.Validation("Times must be 24-hour HH:mm", map[string]any{"error": err.Error()})
	}
	cutoffHours := slot.BookingCutoffHours
	if cutoffHours == 0 {
		cutoffHours = s.cfg.DefaultBookingCutoffHours
	}
	if time.Until(startAt) < time.Duration(cutoffHours)*time.Hour {
		return apperrors.PreconditionFailed(
			fmt.Sprintf("Slot starts within the %dh booking cutoff and can no longer be %s", cutoffHours, action),
		)
	}
	return nil
}

// isOutsideCutoff reports whether the slot's start is still at least the
// effective cutoff away. The slot's own cutoff wins over the coach's profile
// value.
func (s *timeSlotService) isOutsideCutoff(slot *model.TimeSlot, coach *model.Coach, now time.Time) (bool, error) {
	startAt, err := slot.StartAt()
	if err != nil {
		return false, err
	}
	cutoffHours := slot.BookingCutoffHours
	if cutoffHours == 0 {
		cutoffHours = coach.CutoffHours(s.cfg.DefaultBookingCutoffHours)
	}
	return startAt.Sub(now) >= time.Duration(cutoffHours)*time.Hour, nil
}

// defaultAvailabilityWindow is today through Sunday of the current week,
// treating Monday as the first day of the week.
func defaultAvailabilityWindow(now time.Time) (time.Time, time.Time) {
	start := normalizeDate(now)
	daysUntilSunday := (7 - int(start.Weekday())) % 7
	end := start.AddDate(0, 0, daysUntilSunday)
	return start, end
}

func normalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
