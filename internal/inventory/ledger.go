package inventory

import (
	"fmt"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
)

// Ledger is the seat state of one flight as committed in the store. Booked
// is summed from the live booking set, including the booking being updated.
type Ledger struct {
	Capacity int
	Booked   int
}

func (l Ledger) Available() int {
	return l.Capacity - l.Booked
}

// Reserve checks that moving a booking from prior to requested seats keeps the
// flight within capacity. prior is the booking's committed seat count on this
// flight (0 for new bookings or bookings moving in from another flight), so
// reductions always pass.
func (l Ledger) Reserve(requested, prior int) error {
	delta := requested - prior
	if delta > l.Available() {
		return domain.FieldError(domain.ErrOverbooking,
			fmt.Sprintf("exceeds available seats (%d left)", l.Available()+prior), "no_of_seats")
	}
	return nil
}

// CheckDeparture rejects bookings on flights departing at or before now.
func CheckDeparture(departsAt, now time.Time) error {
	if !departsAt.After(now) {
		return domain.FieldError(domain.ErrPastDeparture, "can't be in the past", "flight")
	}
	return nil
}
