package model

import "testing"

func TestCanTransitionBooking(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending to confirmed", BookingPending, BookingConfirmed, true},
		{"pending to cancelled", BookingPending, BookingCancelled, true},
		{"confirmed to completed", BookingConfirmed, BookingCompleted, true},
		{"confirmed to cancelled", BookingConfirmed, BookingCancelled, true},
		{"confirmed to no-show", BookingConfirmed, BookingNoShow, true},
		{"pending to completed", BookingPending, BookingCompleted, false},
		{"pending to no-show", BookingPending, BookingNoShow, false},
		{"completed is terminal", BookingCompleted, BookingCancelled, false},
		{"cancelled is terminal", BookingCancelled, BookingPending, false},
		{"no-show is terminal", BookingNoShow, BookingConfirmed, false},
		{"confirmed back to pending", BookingConfirmed, BookingPending, false},
		{"unknown from state", "archived", BookingCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransitionBooking(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransitionBooking(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestCanTransitionPayment(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending to paid", PaymentPending, PaymentPaid, true},
		{"pending to failed", PaymentPending, PaymentFailed, true},
		{"paid to refunded", PaymentPaid, PaymentRefunded, true},
		{"failed retried to paid", PaymentFailed, PaymentPaid, true},
		{"refunded is terminal", PaymentRefunded, PaymentPaid, false},
		{"paid back to pending", PaymentPaid, PaymentPending, false},
		{"pending straight to refunded", PaymentPending, PaymentRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransitionPayment(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransitionPayment(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestSlotEffectFor(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		to     string
		effect SlotEffect
	}{
		{"cancel pending frees slot", BookingPending, BookingCancelled, SlotEffectRelease},
		{"cancel confirmed frees slot", BookingConfirmed, BookingCancelled, SlotEffectRelease},
		{"confirm keeps slot claimed", BookingPending, BookingConfirmed, SlotEffectNone},
		{"complete keeps slot claimed", BookingConfirmed, BookingCompleted, SlotEffectNone},
		{"no-show keeps slot claimed", BookingConfirmed, BookingNoShow, SlotEffectNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SlotEffectFor(tt.from, tt.to); got != tt.effect {
				t.Errorf("SlotEffectFor(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.effect)
			}
		})
	}
}
