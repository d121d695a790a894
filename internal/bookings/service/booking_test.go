package service

import (
	"context"
	"testing"
	"time"

	bookingserrors "pitchside/internal/bookings/errors"
	timesloterrors "pitchside/internal/timeslots/errors"
	slotrepo "pitchside/internal/timeslots/repository"
	"pitchside/pkg/config"
	mongotx "pitchside/pkg/db/mongo"
	apperrors "pitchside/pkg/errors"
	"pitchside/pkg/events"
	"pitchside/pkg/logger"
	"pitchside/pkg/middleware"
	"pitchside/pkg/model"
)

const (
	testCoachID = "64a1f0c2e1b2c3d4e5f60718"
	testSlotID  = "64a1f0c2e1b2c3d4e5f60719"
	testBooking = "64a1f0c2e1b2c3d4e5f6071a"
)

// Mock collaborators

type mockBookingRepository struct {
	bookings          map[string]*model.Booking
	createFunc        func(ctx context.Context, booking *model.Booking) error
	transitionFunc    func(ctx context.Context, id, from, to string) error
	cancelFunc        func(ctx context.Context, id, from, reason, cancelledBy string) error
	setFeedbackFunc   func(ctx context.Context, id string, feedback *model.Feedback) error
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = testBooking
	if m.bookings != nil {
		m.bookings[booking.ID] = booking
	}
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) Find(ctx context.Context, userID, coachID string, limit int, offset int64) ([]*model.Booking, error) {
	var out []*model.Booking
	for _, b := range m.bookings {
		if userID != "" && b.UserID != userID {
			continue
		}
		if coachID != "" && b.CoachID != coachID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *mockBookingRepository) Count(ctx context.Context, userID, coachID string) (int64, error) {
	found, _ := m.Find(ctx, userID, coachID, 0, 0)
	return int64(len(found)), nil
}

func (m *mockBookingRepository) Transition(ctx context.Context, id, from, to string) error {
	if m.transitionFunc != nil {
		return m.transitionFunc(ctx, id, from, to)
	}
	if b, ok := m.bookings[id]; ok && b.Status == from {
		b.Status = to
		return nil
	}
	return bookingserrors.ErrStatusConflict
}

func (m *mockBookingRepository) Cancel(ctx context.Context, id, from, reason, cancelledBy string) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id, from, reason, cancelledBy)
	}
	if b, ok := m.bookings[id]; ok && b.Status == from {
		now := time.Now().UTC()
		b.Status = model.BookingCancelled
		b.CancellationReason = reason
		b.CancelledAt = &now
		b.CancelledBy = cancelledBy
		return nil
	}
	return bookingserrors.ErrStatusConflict
}

func (m *mockBookingRepository) MarkPaid(ctx context.Context, id string) error          { return nil }
func (m *mockBookingRepository) MarkPaymentFailed(ctx context.Context, id string) error { return nil }
func (m *mockBookingRepository) MarkRefunded(ctx context.Context, id string) error      { return nil }

func (m *mockBookingRepository) SetFeedback(ctx context.Context, id string, feedback *model.Feedback) error {
	if m.setFeedbackFunc != nil {
		return m.setFeedbackFunc(ctx, id, feedback)
	}
	if b, ok := m.bookings[id]; ok && b.Status == model.BookingCompleted {
		b.Feedback = feedback
		return nil
	}
	return bookingserrors.ErrStatusConflict
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type mockSlotLockRepository struct {
	acquireFunc func(ctx context.Context, slotID string) (string, error)
	released    []string
}

func (m *mockSlotLockRepository) Acquire(ctx context.Context, slotID string) (string, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, slotID)
	}
	return "slot_lock_" + slotID, nil
}

func (m *mockSlotLockRepository) Release(ctx context.Context, lockID string) error {
	m.released = append(m.released, lockID)
	return nil
}

type mockSlotRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.TimeSlot, error)
	claimFunc    func(ctx context.Context, slotID, bookingID string) error
	releases     []string
}

func (m *mockSlotRepo) Create(ctx context.Context, slot *model.TimeSlot) error { return nil }

func (m *mockSlotRepo) FindByID(ctx context.Context, id string) (*model.TimeSlot, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, timesloterrors.ErrNotFound
}

func (m *mockSlotRepo) Update(ctx context.Context, id string, slot *model.TimeSlot) error { return nil }
func (m *mockSlotRepo) DeleteAvailable(ctx context.Context, id string) error              { return nil }

func (m *mockSlotRepo) FindByCoachAndDateRange(ctx context.Context, coachID string, from, to time.Time) ([]*model.TimeSlot, error) {
	return nil, nil
}

func (m *mockSlotRepo) FindAvailableByCoach(ctx context.Context, coachID string, from, to time.Time) ([]*model.TimeSlot, error) {
	return nil, nil
}

func (m *mockSlotRepo) FindOverlapping(ctx context.Context, coachID string, date time.Time, startTime, endTime string) ([]*model.TimeSlot, error) {
	return nil, nil
}

func (m *mockSlotRepo) InsertManySkipDuplicates(ctx context.Context, slots []*model.TimeSlot) (*slotrepo.BulkInsertResult, error) {
	return &slotrepo.BulkInsertResult{}, nil
}

func (m *mockSlotRepo) Claim(ctx context.Context, slotID, bookingID string) error {
	if m.claimFunc != nil {
		return m.claimFunc(ctx, slotID, bookingID)
	}
	return nil
}

func (m *mockSlotRepo) Release(ctx context.Context, slotID, bookingID string) error {
	m.releases = append(m.releases, slotID)
	return nil
}

func (m *mockSlotRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type mockCoachRepo struct {
	coach *model.Coach
}

func (m *mockCoachRepo) FindByID(ctx context.Context, id string) (*model.Coach, error) {
	if m.coach != nil {
		return m.coach, nil
	}
	return &model.Coach{ID: id, Approved: true, HourlyRate: 50}, nil
}

type mockPayments struct {
	createIntentFunc func(ctx context.Context, booking *model.Booking) (*model.Payment, error)
	refunds          []string
}

func (m *mockPayments) CreateIntent(ctx context.Context, booking *model.Booking) (*model.Payment, error) {
	if m.createIntentFunc != nil {
		return m.createIntentFunc(ctx, booking)
	}
	return &model.Payment{IntentID: "pi_test", ClientSecret: "secret_test"}, nil
}

func (m *mockPayments) Refund(ctx context.Context, booking *model.Booking, reason string) (*model.Payment, error) {
	m.refunds = append(m.refunds, booking.ID)
	return &model.Payment{Status: model.IntentRefunded}, nil
}

func testConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.FormatJSON,
		Service: "test",
	})
	return &config.Config{
		Log:                       log,
		ReadTimeout:               5 * time.Second,
		WriteTimeout:              5 * time.Second,
		DefaultBookingCutoffHours: 12,
		SlotLockTTL:               10 * time.Second,
	}
}

type fixtures struct {
	repo     *mockBookingRepository
	lockRepo *mockSlotLockRepository
	slotRepo *mockSlotRepo
	coaches  *mockCoachRepo
	payments *mockPayments
}

func newTestService(f *fixtures) *bookingService {
	return &bookingService{
		repo:      f.repo,
		lockRepo:  f.lockRepo,
		slotRepo:  f.slotRepo,
		coachRepo: f.coaches,
		payments:  f.payments,
		publisher: events.NoopPublisher{},
		cfg:       testConfig(),
	}
}

func defaultFixtures() *fixtures {
	return &fixtures{
		repo:     &mockBookingRepository{bookings: map[string]*model.Booking{}},
		lockRepo: &mockSlotLockRepository{},
		slotRepo: &mockSlotRepo{},
		coaches:  &mockCoachRepo{},
		payments: &mockPayments{},
	}
}

func bookableSlot(hoursAhead int) *model.TimeSlot {
	at := time.Now().UTC().Add(time.Duration(hoursAhead) * time.Hour)
	return &model.TimeSlot{
		ID:                 testSlotID,
		CoachID:            testCoachID,
		Date:               time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:          at.Format("15:04"),
		EndTime:            at.Add(time.Hour).Format("15:04"),
		DurationMinutes:    60,
		Status:             model.SlotAvailable,
		Capacity:           1,
		BookingCutoffHours: 12,
	}
}

func clientIdentity() middleware.Identity {
	return middleware.Identity{UserID: "user-1", Role: middleware.RoleClient}
}

func TestCreate_ComputesPaymentAmountFromRateAndDuration(t *testing.T) {
	f := defaultFixtures()
	f.slotRepo.findByIDFunc = func(ctx context.Context, id string) (*model.TimeSlot, error) {
		return bookableSlot(48), nil
	}
	svc := newTestService(f)

	result, err := svc.Create(context.Background(), clientIdentity(), &CreateBookingRequest{
		CoachID:    testCoachID,
		TimeSlotID: testSlotID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Hourly rate 50 against a 60-minute slot.
	if result.Booking.PaymentAmount != 50.00 {
		t.Errorf("expected payment amount 50.00, got %v", result.Booking.PaymentAmount)
	}
	if result.Booking.Status != model.BookingPending {
		t.Errorf("expected new booking pending, got %s", result.Booking.Status)
	}
	if result.Booking.PaymentStatus != model.PaymentPending {
		t.Errorf("expected payment status pending, got %s", result.Booking.PaymentStatus)
	}
	if result.PaymentIntent == nil || result.PaymentIntent.ClientSecret != "secret_test" {
		t.Errorf("expected gateway client secret in result, got %+v", result.PaymentIntent)
	}
	if len(f.lockRepo.released) != 1 {
		t.Errorf("expected advisory lock released, got %d releases", len(f.lockRepo.released))
	}
}

func TestCreate_RejectsInsideCutoff(t *testing.T) {
	f := defaultFixtures()
	f.slotRepo.findByIDFunc = func(ctx context.Context, id string) (*model.TimeSlot, error) {
		// 11 hours ahead against a 12-hour cutoff.
		return bookableSlot(11), nil
	}
	svc := newTestService(f)

	_, err := svc.Create(context.Background(), clientIdentity(), &CreateBookingRequest{
		CoachID:    testCoachID,
		TimeSlotID: testSlotID,
	})

	if !apperrors.IsCode(err, apperrors.CodePreconditionFailed) {
		t.Fatalf("expected PRECONDITION_FAILED inside cutoff, got %v", err)
	}
}

func TestCreate_RejectsUnapprovedCoach(t *testing.T) {
	f := defaultFixtures()
	f.coaches.coach = &model.Coach{ID: testCoachID, Approved: false, HourlyRate: 50}
	svc := newTestService(f)

	_, err := svc.Create(context.Background(), clientIdentity(), &CreateBookingRequest{
		CoachID:    testCoachID,
		TimeSlotID: testSlotID,
	})

	if !apperrors.IsCode(err, apperrors.CodePreconditionFailed) {
		t.Fatalf("expected PRECONDITION_FAILED for unapproved coach, got %v", err)
	}
}

func TestCreate_RejectsNonAvailableSlot(t *testing.T) {
	f := defaultFixtures()
	f.slotRepo.findByIDFunc = func(ctx context.Context, id string) (*model.TimeSlot, error) {
		slot := bookableSlot(48)
		slot.Status = model.SlotBooked
		return slot, nil
	}
	svc := newTestService(f)

	_, err := svc.Create(context.Background(), clientIdentity(), &CreateBookingRequest{
		CoachID:    testCoachID,
		TimeSlotID: testSlotID,
	})

	if !apperrors.IsCode(err, apperrors.CodePreconditionFailed) {
		t.Fatalf("expected PRECONDITION_FAILED for booked slot, got %v", err)
	}
}

func TestCreate_LockContentionReturnsConflict(t *testing.T) {
	f := defaultFixtures()
	f.slotRepo.findByIDFunc = func(ctx context.Context, id string) (*model.TimeSlot, error) {
		return bookableSlot(48), nil
	}
	f.lockRepo.acquireFunc = func(ctx context.Context, slotID string) (string, error) {
		return "", bookingserrors.ErrLockHeld
	}
	svc := newTestService(f)

	_, err := svc.Create(context.Background(), clientIdentity(), &CreateBookingRequest{
		CoachID:    testCoachID,
		TimeSlotID: testSlotID,
	})

	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT on lock contention, got %v", err)
	}
}

func TestCreate_TwoRacersOneWinner(t *testing.T) {
	f := defaultFixtures()
	f.slotRepo.findByIDFunc = func(ctx context.Context, id string) (*model.TimeSlot, error) {
		return bookableSlot(48), nil
	}
	claims := 0
	f.slotRepo.claimFunc = func(ctx context.Context, slotID, bookingID string) error {
		claims++
		if claims > 1 {
			return timesloterrors.ErrSlotUnavailable
		}
		return nil
	}
	ids := 0
	f.repo.createFunc = func(ctx context.Context, booking *model.Booking) error {
		ids++
		booking.ID = testBooking[:len(testBooking)-1] + string(rune('0'+ids))
		f.repo.bookings[booking.ID] = booking
		return nil
	}
	svc := newTestService(f)

	req := &CreateBookingRequest{CoachID: testCoachID, TimeSlotID: testSlotID}

	_, err1 := svc.Create(context.Background(), clientIdentity(), req)
	_, err2 := svc.Create(context.Background(), middleware.Identity{UserID: "user-2", Role: middleware.RoleClient}, req)

	if err1 != nil {
		t.Fatalf("expected first claim to win, got %v", err1)
	}
	if !apperrors.IsCode(err2, apperrors.CodePreconditionFailed) {
		t.Fatalf("expected second claim rejected, got %v", err2)
	}
}

func TestCreate_GatewayFailureStillReturnsBooking(t *testing.T) {
	f := defaultFixtures()
	f.slotRepo.findByIDFunc = func(ctx context.Context, id string) (*model.TimeSlot, error) {
		return bookableSlot(48), nil
	}
	f.payments.createIntentFunc = func(ctx context.Context, booking *model.Booking) (*model.Payment, error) {
		return nil, apperrors.Gateway("gateway unreachable", nil)
	}
	svc := newTestService(f)

	result, err := svc.Create(context.Background(), clientIdentity(), &CreateBookingRequest{
		CoachID:    testCoachID,
		TimeSlotID: testSlotID,
	})
	if err != nil {
		t.Fatalf("expected booking to survive gateway failure, got %v", err)
	}
	if result.PaymentIntent != nil {
		t.Error("expected no payment intent on gateway failure")
	}
	if result.Booking.Status != model.BookingPending {
		t.Errorf("expected booking still pending, got %s", result.Booking.Status)
	}
}

func TestCancel_RoundTripReleasesSlot(t *testing.T) {
	f := defaultFixtures()
	f.repo.bookings[testBooking] = &model.Booking{
		ID:            testBooking,
		UserID:        "user-1",
		CoachID:       testCoachID,
		TimeSlotID:    testSlotID,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentPending,
	}
	svc := newTestService(f)

	booking, err := svc.Cancel(context.Background(), clientIdentity(), testBooking, "change of plans")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.Status != model.BookingCancelled {
		t.Errorf("expected cancelled, got %s", booking.Status)
	}
	if booking.CancellationReason != "change of plans" {
		t.Errorf("expected reason recorded, got %q", booking.CancellationReason)
	}
	if len(f.slotRepo.releases) != 1 || f.slotRepo.releases[0] != testSlotID {
		t.Errorf("expected slot released exactly once, got %v", f.slotRepo.releases)
	}
	if len(f.payments.refunds) != 0 {
		t.Error("expected no refund for unpaid booking")
	}
}

func TestCancel_PaidBookingTriggersRefund(t *testing.T) {
	f := defaultFixtures()
	f.repo.bookings[testBooking] = &model.Booking{
		ID:            testBooking,
		UserID:        "user-1",
		CoachID:       testCoachID,
		TimeSlotID:    testSlotID,
		Status:        model.BookingConfirmed,
		PaymentStatus: model.PaymentPaid,
	}
	svc := newTestService(f)

	_, err := svc.Cancel(context.Background(), clientIdentity(), testBooking, "injury")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.payments.refunds) != 1 {
		t.Fatalf("expected one refund, got %d", len(f.payments.refunds))
	}
	if len(f.slotRepo.releases) != 1 {
		t.Errorf("expected slot released, got %v", f.slotRepo.releases)
	}
}

func TestCancel_ForbiddenForOtherUser(t *testing.T) {
	f := defaultFixtures()
	f.repo.bookings[testBooking] = &model.Booking{
		ID:     testBooking,
		UserID: "someone-else",
		Status: model.BookingPending,
	}
	svc := newTestService(f)

	_, err := svc.Cancel(context.Background(), clientIdentity(), testBooking, "")

	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestUpdateStatus_InvalidTransitionRejected(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
	}{
		{"completed cannot confirm", model.BookingCompleted, model.BookingConfirmed},
		{"pending cannot complete", model.BookingPending, model.BookingCompleted},
		{"pending cannot no-show", model.BookingPending, model.BookingNoShow},
		{"cancelled is terminal", model.BookingCancelled, model.BookingConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := defaultFixtures()
			f.repo.bookings[testBooking] = &model.Booking{
				ID:      testBooking,
				UserID:  "user-1",
				CoachID: testCoachID,
				Status:  tt.from,
			}
			svc := newTestService(f)

			identity := middleware.Identity{UserID: "coach-user", Role: middleware.RoleCoach, CoachID: testCoachID}
			_, err := svc.UpdateStatus(context.Background(), identity, testBooking, tt.to, "")

			if !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
				t.Fatalf("expected INVALID_TRANSITION, got %v", err)
			}
			if f.repo.bookings[testBooking].Status != tt.from {
				t.Errorf("expected state unchanged, got %s", f.repo.bookings[testBooking].Status)
			}
		})
	}
}

func TestUpdateStatus_CoachConfirms(t *testing.T) {
	f := defaultFixtures()
	f.repo.bookings[testBooking] = &model.Booking{
		ID:      testBooking,
		UserID:  "user-1",
		CoachID: testCoachID,
		Status:  model.BookingPending,
	}
	svc := newTestService(f)

	identity := middleware.Identity{UserID: "coach-user", Role: middleware.RoleCoach, CoachID: testCoachID}
	booking, err := svc.UpdateStatus(context.Background(), identity, testBooking, model.BookingConfirmed, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != model.BookingConfirmed {
		t.Errorf("expected confirmed, got %s", booking.Status)
	}
}

func TestUpdateStatus_ClientForbidden(t *testing.T) {
	f := defaultFixtures()
	f.repo.bookings[testBooking] = &model.Booking{
		ID:      testBooking,
		UserID:  "user-1",
		CoachID: testCoachID,
		Status:  model.BookingPending,
	}
	svc := newTestService(f)

	_, err := svc.UpdateStatus(context.Background(), clientIdentity(), testBooking, model.BookingConfirmed, "")

	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for client-driven transition, got %v", err)
	}
}

func TestSubmitFeedback_OnlyOnCompleted(t *testing.T) {
	f := defaultFixtures()
	f.repo.bookings[testBooking] = &model.Booking{
		ID:     testBooking,
		UserID: "user-1",
		Status: model.BookingConfirmed,
	}
	svc := newTestService(f)

	_, err := svc.SubmitFeedback(context.Background(), clientIdentity(), testBooking, &model.Feedback{Rating: 5})

	if !apperrors.IsCode(err, apperrors.CodePreconditionFailed) {
		t.Fatalf("expected PRECONDITION_FAILED for non-completed booking, got %v", err)
	}
}

func TestSubmitFeedback_SanitizesComment(t *testing.T) {
	f := defaultFixtures()
	f.repo.bookings[testBooking] = &model.Booking{
		ID:     testBooking,
		UserID: "user-1",
		Status: model.BookingCompleted,
	}
	svc := newTestService(f)

	booking, err := svc.SubmitFeedback(context.Background(), clientIdentity(), testBooking, &model.Feedback{
		Rating:  4,
		Comment: "  great   cover-drive\tdrills ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Feedback == nil || booking.Feedback.Comment != "great cover-drive drills" {
		t.Errorf("expected sanitized comment, got %+v", booking.Feedback)
	}
}

func TestSubmitFeedback_RatingBounds(t *testing.T) {
	svc := newTestService(defaultFixtures())

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.SubmitFeedback(context.Background(), clientIdentity(), testBooking, &model.Feedback{Rating: rating})
		if !apperrors.IsCode(err, apperrors.CodeValidation) {
			t.Errorf("rating %d: expected VALIDATION_ERROR, got %v", rating, err)
		}
	}
}

func TestList_ScopedByRole(t *testing.T) {
	f := defaultFixtures()
	f.repo.bookings["b1"] = &model.Booking{ID: "b1", UserID: "user-1", CoachID: testCoachID}
	f.repo.bookings["b2"] = &model.Booking{ID: "b2", UserID: "user-2", CoachID: "other-coach"}
	svc := newTestService(f)

	own, total, err := svc.List(context.Background(), clientIdentity(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(own) != 1 || own[0].UserID != "user-1" {
		t.Errorf("expected client to see only own booking, got %d/%d", len(own), total)
	}

	coach := middleware.Identity{UserID: "coach-user", Role: middleware.RoleCoach, CoachID: testCoachID}
	coachView, _, err := svc.List(context.Background(), coach, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(coachView) != 1 || coachView[0].CoachID != testCoachID {
		t.Errorf("expected coach to see own schedule, got %+v", coachView)
	}

	admin := middleware.Identity{UserID: "admin", Role: middleware.RoleAdmin}
	all, _, err := svc.List(context.Background(), admin, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected admin to see all bookings, got %d", len(all))
	}
}
