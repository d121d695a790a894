package model

// Booking status values. A booking always starts pending; cancelled and
// no-show are terminal.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
	BookingNoShow    = "no-show"
)

// Payment status values mirrored from the gateway. Refunded is terminal;
// failed may be retried into paid.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
	PaymentFailed   = "failed"
)

// Gateway-side payment record states.
const (
	IntentPending   = "pending"
	IntentSucceeded = "succeeded"
	IntentFailed    = "failed"
	IntentRefunded  = "refunded"
)

// Time slot status values.
const (
	SlotAvailable = "available"
	SlotBooked    = "booked"
	SlotCancelled = "cancelled"
)

var bookingTransitions = map[string][]string{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled, BookingNoShow},
	BookingCompleted: {},
	BookingCancelled: {},
	BookingNoShow:    {},
}

var paymentTransitions = map[string][]string{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   {PaymentPaid},
	PaymentRefunded: {},
}

func IsValidBookingStatus(status string) bool {
	_, ok := bookingTransitions[status]
	return ok
}

func IsValidPaymentStatus(status string) bool {
	_, ok := paymentTransitions[status]
	return ok
}

func CanTransitionBooking(from, to string) bool {
	return canTransition(bookingTransitions, from, to)
}

func CanTransitionPayment(from, to string) bool {
	return canTransition(paymentTransitions, from, to)
}

func canTransition(table map[string][]string, from, to string) bool {
	allowed, ok := table[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// SlotEffect is the time-slot mutation a booking status change requires.
// Exposing it as data keeps the side effect explicit so the service layer can
// apply the booking update and the slot update in one transaction.
type SlotEffect int

const (
	SlotEffectNone SlotEffect = iota
	// SlotEffectClaim marks the slot booked and links the booking.
	SlotEffectClaim
	// SlotEffectRelease returns the slot's capacity and clears the booking link.
	SlotEffectRelease
)

// SlotEffectFor reports the slot mutation required when a booking moves from
// one status to another. Cancelling from any live status frees the slot;
// everything else leaves the slot as the claim left it.
func SlotEffectFor(from, to string) SlotEffect {
	if to == BookingCancelled && (from == BookingPending || from == BookingConfirmed) {
		return SlotEffectRelease
	}
	return SlotEffectNone
}
