package ledger

import (
	"errors"
	"fmt"
	"time"
)

const (
	PendingBookingSnapshotVersion = 1
	ExtensionSnapshotVersion      = 1
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// PendingBookingSnapshot holds the booking request captured at initiation. It
// is turned into a booking once the gateway confirms the payment.
type PendingBookingSnapshot struct {
	Version        int       `json:"version"`
	PropertyID     int64     `json:"propertyId"`
	RateCardID     int64     `json:"rateCardId"`
	RoomType       string    `json:"roomType"`
	CheckInDate    time.Time `json:"checkInDate"`
	CheckOutDate   time.Time `json:"checkOutDate"`
	DurationMonths int       `json:"durationMonths"`
	MonthlyRent    int64     `json:"monthlyRent"`
	TotalAmount    int64     `json:"totalAmount"`
}

func (s *PendingBookingSnapshot) Validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: pending booking data is missing", ErrInvalidSnapshot)
	case s.Version != PendingBookingSnapshotVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, s.Version)
	case s.PropertyID <= 0:
		return fmt.Errorf("%w: propertyId is required", ErrInvalidSnapshot)
	case s.CheckInDate.IsZero() || s.CheckOutDate.IsZero():
		return fmt.Errorf("%w: stay dates are required", ErrInvalidSnapshot)
	case !s.CheckOutDate.After(s.CheckInDate):
		return fmt.Errorf("%w: checkOutDate must be after checkInDate", ErrInvalidSnapshot)
	case s.DurationMonths <= 0:
		return fmt.Errorf("%w: durationMonths must be positive", ErrInvalidSnapshot)
	case s.MonthlyRent <= 0 || s.TotalAmount <= 0:
		return fmt.Errorf("%w: amounts must be positive", ErrInvalidSnapshot)
	}
	return nil
}

// ExtensionSnapshot holds a requested stay extension until its payment lands.
type ExtensionSnapshot struct {
	Version              int       `json:"version"`
	CurrentCheckOutDate  time.Time `json:"currentCheckOutDate"`
	ProposedCheckOutDate time.Time `json:"proposedCheckOutDate"`
	AdditionalMonths     int       `json:"additionalMonths"`
	AdditionalAmount     int64     `json:"additionalAmount"`
}

func (s *ExtensionSnapshot) Validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: extension data is missing", ErrInvalidSnapshot)
	case s.Version != ExtensionSnapshotVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, s.Version)
	case s.AdditionalMonths <= 0:
		return fmt.Errorf("%w: additionalMonths must be positive", ErrInvalidSnapshot)
	case !s.ProposedCheckOutDate.After(s.CurrentCheckOutDate):
		return fmt.Errorf("%w: proposed checkout must be after the current one", ErrInvalidSnapshot)
	case s.AdditionalAmount <= 0:
		return fmt.Errorf("%w: additionalAmount must be positive", ErrInvalidSnapshot)
	}
	return nil
}
