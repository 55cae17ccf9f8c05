package booking_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/booking-ledger/internal/booking"
	"github.com/frahmantamala/booking-ledger/internal/core/database/dbtest"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
)

var _ = Describe("FindOverlap", func() {
	existing := func(id int64, status bookingdm.Status, in time.Time, out *time.Time) *bookingdm.Booking {
		return &bookingdm.Booking{ID: id, Status: status, CheckInDate: in, CheckOutDate: out}
	}
	window := func(in, out time.Time) booking.Window {
		return booking.NewWindow(in, &out)
	}

	janToMar := existing(1, bookingdm.StatusApproved, dbtest.Date(2025, 1, 1), dbtest.Ptr(dbtest.Date(2025, 3, 1)))

	It("rejects a stay that starts inside an approved booking", func() {
		hit := booking.FindOverlap([]*bookingdm.Booking{janToMar}, window(dbtest.Date(2025, 2, 1), dbtest.Date(2025, 4, 1)), 0)
		Expect(hit).ToNot(BeNil())
		Expect(hit.ID).To(Equal(int64(1)))
	})

	It("accepts a stay starting on the previous checkout day", func() {
		hit := booking.FindOverlap([]*bookingdm.Booking{janToMar}, window(dbtest.Date(2025, 3, 1), dbtest.Date(2025, 5, 1)), 0)
		Expect(hit).To(BeNil())
	})

	It("accepts a stay ending on the existing check-in day", func() {
		hit := booking.FindOverlap([]*bookingdm.Booking{janToMar}, window(dbtest.Date(2024, 11, 1), dbtest.Date(2025, 1, 1)), 0)
		Expect(hit).To(BeNil())
	})

	It("rejects a stay that contains an existing one", func() {
		hit := booking.FindOverlap([]*bookingdm.Booking{janToMar}, window(dbtest.Date(2024, 12, 1), dbtest.Date(2025, 6, 1)), 0)
		Expect(hit).ToNot(BeNil())
	})

	It("treats an open-ended checkout as unbounded", func() {
		open := existing(2, bookingdm.StatusActive, dbtest.Date(2025, 1, 1), nil)
		hit := booking.FindOverlap([]*bookingdm.Booking{open}, window(dbtest.Date(2030, 1, 1), dbtest.Date(2030, 2, 1)), 0)
		Expect(hit).ToNot(BeNil())

		before := booking.FindOverlap([]*bookingdm.Booking{open}, window(dbtest.Date(2024, 10, 1), dbtest.Date(2024, 12, 1)), 0)
		Expect(before).To(BeNil())
	})

	It("ignores bookings that no longer hold their dates", func() {
		cancelled := existing(3, bookingdm.StatusCancelled, dbtest.Date(2025, 1, 1), dbtest.Ptr(dbtest.Date(2025, 3, 1)))
		rejected := existing(4, bookingdm.StatusRejected, dbtest.Date(2025, 1, 1), dbtest.Ptr(dbtest.Date(2025, 3, 1)))
		completed := existing(5, bookingdm.StatusCompleted, dbtest.Date(2025, 1, 1), dbtest.Ptr(dbtest.Date(2025, 3, 1)))

		hit := booking.FindOverlap([]*bookingdm.Booking{cancelled, rejected, completed}, window(dbtest.Date(2025, 2, 1), dbtest.Date(2025, 4, 1)), 0)
		Expect(hit).To(BeNil())
	})

	It("counts pending bookings", func() {
		pending := existing(6, bookingdm.StatusPending, dbtest.Date(2025, 1, 1), dbtest.Ptr(dbtest.Date(2025, 3, 1)))
		hit := booking.FindOverlap([]*bookingdm.Booking{pending}, window(dbtest.Date(2025, 2, 1), dbtest.Date(2025, 4, 1)), 0)
		Expect(hit).ToNot(BeNil())
	})

	It("skips the excluded booking", func() {
		hit := booking.FindOverlap([]*bookingdm.Booking{janToMar}, window(dbtest.Date(2025, 2, 1), dbtest.Date(2025, 4, 1)), janToMar.ID)
		Expect(hit).To(BeNil())
	})

	It("compares calendar days regardless of time of day", func() {
		late := time.Date(2025, 3, 1, 22, 30, 0, 0, time.UTC)
		hit := booking.FindOverlap([]*bookingdm.Booking{janToMar}, booking.NewWindow(late, dbtest.Ptr(dbtest.Date(2025, 4, 1))), 0)
		Expect(hit).To(BeNil())
	})
})
