package booking

import (
	"time"

	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
)

// Window is a half-open stay [CheckIn, CheckOut). A nil CheckOut is open
// ended.
type Window struct {
	CheckIn  time.Time
	CheckOut *time.Time
}

func NewWindow(checkIn time.Time, checkOut *time.Time) Window {
	return Window{CheckIn: checkIn, CheckOut: checkOut}
}

func (w Window) Overlaps(other Window) bool {
	if w.CheckOut != nil && !day(other.CheckIn).Before(day(*w.CheckOut)) {
		return false
	}
	if other.CheckOut != nil && !day(w.CheckIn).Before(day(*other.CheckOut)) {
		return false
	}
	return true
}

// FindOverlap returns the first live booking whose stay intersects candidate,
// or nil. excludeID skips one booking, used when a booking is checked against
// its own extension. Payment initiation and materialization both call this so
// the fast rejection and the race-closing check agree.
func FindOverlap(existing []*bookingdm.Booking, candidate Window, excludeID int64) *bookingdm.Booking {
	for _, b := range existing {
		if b == nil || b.ID == excludeID || !b.Status.IsLive() {
			continue
		}
		if NewWindow(b.CheckInDate, b.CheckOutDate).Overlaps(candidate) {
			return b
		}
	}
	return nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
