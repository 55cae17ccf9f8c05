package ledger_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
)

var _ = Describe("ComputeBalance", func() {
	DescribeTable("derives remaining amount and payment status",
		func(total int64, totals ledger.Totals, remaining int64, status bookingdm.PaymentStatus) {
			b := ledger.ComputeBalance(total, totals)
			Expect(b.RemainingAmount).To(Equal(remaining))
			Expect(b.PaymentStatus).To(Equal(status))
		},
		Entry("nothing paid", int64(1500), ledger.Totals{}, int64(1500), bookingdm.PaymentInitiated),
		Entry("fully paid", int64(1500), ledger.Totals{Paid: 150000}, int64(0), bookingdm.PaymentCompleted),
		Entry("partially refunded", int64(1500), ledger.Totals{Paid: 150000, Refunded: 50000}, int64(500), bookingdm.PaymentPartial),
		Entry("overpaid clamps remaining to zero", int64(1500), ledger.Totals{Paid: 200000}, int64(0), bookingdm.PaymentCompleted),
		Entry("refund above paid clamps net to zero", int64(1500), ledger.Totals{Paid: 10000, Refunded: 20000}, int64(1500), bookingdm.PaymentInitiated),
		Entry("rounds remaining paise half up", int64(1500), ledger.Totals{Paid: 149950}, int64(1), bookingdm.PaymentPartial),
		Entry("rounds remaining paise down", int64(1500), ledger.Totals{Paid: 149951}, int64(0), bookingdm.PaymentPartial),
	)

	It("never reports a negative net paid", func() {
		Expect(ledger.Totals{Paid: 100, Refunded: 300}.NetPaid()).To(Equal(int64(0)))
	})
})
