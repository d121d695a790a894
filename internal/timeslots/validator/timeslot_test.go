package validator

import (
	"testing"
	"time"

	"pitchside/pkg/logger"
	"pitchside/pkg/model"
)

func testValidator() *TimeSlotValidator {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.FormatJSON,
		Service: "test",
	})
	return NewTimeSlotValidator(log)
}

func validSlot() *model.TimeSlot {
	return &model.TimeSlot{
		CoachID:            "64a1f0c2e1b2c3d4e5f60718",
		Date:               time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		StartTime:          "10:00",
		EndTime:            "11:00",
		DurationMinutes:    60,
		Status:             "available",
		Capacity:           1,
		BookingCutoffHours: 12,
	}
}

func TestValidate_AcceptsValidSlot(t *testing.T) {
	v := testValidator()
	if err := v.Validate(validSlot()); err != nil {
		t.Fatalf("expected valid slot to pass, got %v", err)
	}
}

func TestValidate_TimeFormat(t *testing.T) {
	tests := []struct {
		name      string
		startTime string
		endTime   string
		wantErr   bool
	}{
		{"valid times", "09:30", "10:45", false},
		{"midnight start", "00:00", "01:00", false},
		{"missing leading zero", "9:30", "10:30", true},
		{"hour out of range", "25:00", "26:00", true},
		{"minute out of range", "10:61", "11:00", true},
		{"not a time", "morning", "midday", true},
		{"seconds not allowed", "10:00:00", "11:00:00", true},
	}

	v := testValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := validSlot()
			slot.StartTime = tt.startTime
			slot.EndTime = tt.endTime
			err := v.Validate(slot)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %s-%s, got nil", tt.startTime, tt.endTime)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected %s-%s to pass, got %v", tt.startTime, tt.endTime, err)
			}
		})
	}
}

func TestValidate_Capacity(t *testing.T) {
	v := testValidator()

	slot := validSlot()
	slot.Capacity = 0
	if err := v.Validate(slot); err == nil {
		t.Error("expected error for zero capacity")
	}

	slot = validSlot()
	slot.Capacity = 51
	if err := v.Validate(slot); err == nil {
		t.Error("expected error for capacity above limit")
	}
}

func TestValidate_Status(t *testing.T) {
	v := testValidator()

	slot := validSlot()
	slot.Status = "pending"
	if err := v.Validate(slot); err == nil {
		t.Error("expected error for unknown slot status")
	}
}

func TestValidateUpdate_PartialFields(t *testing.T) {
	v := testValidator()

	capacity := 3
	if err := v.ValidateUpdate(&model.TimeSlotUpdate{Capacity: &capacity}); err != nil {
		t.Errorf("expected capacity-only update to pass, got %v", err)
	}

	if err := v.ValidateUpdate(&model.TimeSlotUpdate{StartTime: "not-a-time"}); err == nil {
		t.Error("expected error for malformed start time")
	}
}

func TestValidateTemplate(t *testing.T) {
	v := testValidator()

	tpl := &model.RecurringTemplate{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", Capacity: 2}
	if err := v.ValidateTemplate(tpl); err != nil {
		t.Errorf("expected valid template to pass, got %v", err)
	}

	tpl = &model.RecurringTemplate{DayOfWeek: 9, StartTime: "09:00", EndTime: "10:00", Capacity: 2}
	if err := v.ValidateTemplate(tpl); err == nil {
		t.Error("expected error for day_of_week out of range")
	}
}
