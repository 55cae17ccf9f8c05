package ledger_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/core/database"
	"github.com/frahmantamala/booking-ledger/internal/core/database/dbtest"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
	"github.com/frahmantamala/booking-ledger/internal/ledger/postgres"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

var _ = Describe("Reconciler", func() {
	var (
		ctx        context.Context
		db         *gorm.DB
		fx         dbtest.Fixtures
		repo       *postgres.LedgerRepository
		reconciler *ledger.Reconciler
		booking    *bookingdm.Booking
	)

	charge := func(merchantOrderID string, amount int64, status ledgerdm.TransactionStatus) *ledgerdm.PaymentTransaction {
		return fx.Transaction(&ledgerdm.PaymentTransaction{
			UserID:          7,
			MerchantOrderID: merchantOrderID,
			Amount:          amount,
			Type:            ledgerdm.TypeInitial,
			Status:          status,
			BookingID:       &booking.ID,
		})
	}

	refund := func(merchantRefundID, original string, amount int64, status ledgerdm.TransactionStatus) *ledgerdm.PaymentTransaction {
		return fx.Transaction(&ledgerdm.PaymentTransaction{
			UserID:                  7,
			MerchantOrderID:         merchantRefundID,
			MerchantRefundID:        dbtest.Ptr(merchantRefundID),
			OriginalMerchantOrderID: dbtest.Ptr(original),
			Amount:                  amount,
			Type:                    ledgerdm.TypeRefund,
			Status:                  status,
			BookingID:               &booking.ID,
		})
	}

	reload := func() *bookingdm.Booking {
		var b bookingdm.Booking
		Expect(db.First(&b, booking.ID).Error).ToNot(HaveOccurred())
		return &b
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).ToNot(HaveOccurred())
		fx = dbtest.Fixtures{DB: db}

		property := fx.Property("Koregaon Residency")
		booking = fx.Booking(7, property.ID, bookingdm.StatusApproved, dbtest.Date(2025, 1, 1), dbtest.Ptr(dbtest.Date(2025, 3, 1)), 1500)

		repo = postgres.NewLedgerRepository(db)
		reconciler = ledger.NewReconciler(database.NewTransactionManager(db), repo, logger.Discard())
	})

	It("completes a booking once the full amount settles", func() {
		charge("b-1-full-100", 150000, ledgerdm.StatusSuccess)

		b, err := reconciler.RecomputeBookingTotals(ctx, booking.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(b.PaymentStatus).To(Equal(bookingdm.PaymentCompleted))
		Expect(b.RemainingAmount).To(Equal(int64(0)))

		stored := reload()
		Expect(stored.PaymentStatus).To(Equal(bookingdm.PaymentCompleted))
		Expect(stored.RemainingAmount).To(Equal(int64(0)))
	})

	It("moves back to partial after a settled refund", func() {
		charge("b-1-full-100", 150000, ledgerdm.StatusSuccess)
		refund("r-1", "b-1-full-100", 50000, ledgerdm.StatusSuccess)

		b, err := reconciler.RecomputeBookingTotals(ctx, booking.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(b.PaymentStatus).To(Equal(bookingdm.PaymentPartial))
		Expect(b.RemainingAmount).To(Equal(int64(500)))
	})

	It("counts settled extension charges once the total covers them", func() {
		charge("b-1-full-100", 150000, ledgerdm.StatusSuccess)
		fx.Transaction(&ledgerdm.PaymentTransaction{
			UserID:          7,
			MerchantOrderID: "b-1-ext-200",
			Amount:          50000,
			Type:            ledgerdm.TypeExtension,
			Status:          ledgerdm.StatusSuccess,
			BookingID:       &booking.ID,
		})
		Expect(db.Model(&bookingdm.Booking{}).Where("id = ?", booking.ID).
			Update("total_amount", 2000).Error).ToNot(HaveOccurred())

		b, err := reconciler.RecomputeBookingTotals(ctx, booking.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(b.PaymentStatus).To(Equal(bookingdm.PaymentCompleted))
		Expect(b.RemainingAmount).To(Equal(int64(0)))
	})

	It("subtracts refunds of extension charges", func() {
		charge("b-1-full-100", 150000, ledgerdm.StatusSuccess)
		fx.Transaction(&ledgerdm.PaymentTransaction{
			UserID:          7,
			MerchantOrderID: "b-1-ext-200",
			Amount:          50000,
			Type:            ledgerdm.TypeExtension,
			Status:          ledgerdm.StatusSuccess,
			BookingID:       &booking.ID,
		})
		refund("r-1", "b-1-ext-200", 50000, ledgerdm.StatusSuccess)
		Expect(db.Model(&bookingdm.Booking{}).Where("id = ?", booking.ID).
			Update("total_amount", 2000).Error).ToNot(HaveOccurred())

		b, err := reconciler.RecomputeBookingTotals(ctx, booking.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(b.PaymentStatus).To(Equal(bookingdm.PaymentPartial))
		Expect(b.RemainingAmount).To(Equal(int64(500)))
	})

	It("ignores pending and failed rows", func() {
		charge("b-1-full-100", 150000, ledgerdm.StatusSuccess)
		charge("b-1-partial-200", 10000, ledgerdm.StatusPending)
		charge("b-1-partial-300", 10000, ledgerdm.StatusFailed)
		refund("r-1", "b-1-full-100", 50000, ledgerdm.StatusPending)
		refund("r-2", "b-1-full-100", 50000, ledgerdm.StatusFailed)

		b, err := reconciler.RecomputeBookingTotals(ctx, booking.ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(b.PaymentStatus).To(Equal(bookingdm.PaymentCompleted))
		Expect(b.RemainingAmount).To(Equal(int64(0)))
	})

	It("is idempotent", func() {
		charge("b-1-partial-100", 50000, ledgerdm.StatusSuccess)

		first, err := reconciler.RecomputeBookingTotals(ctx, booking.ID)
		Expect(err).ToNot(HaveOccurred())
		second, err := reconciler.RecomputeBookingTotals(ctx, booking.ID)
		Expect(err).ToNot(HaveOccurred())

		Expect(second.RemainingAmount).To(Equal(first.RemainingAmount))
		Expect(second.PaymentStatus).To(Equal(first.PaymentStatus))
		Expect(reload().RemainingAmount).To(Equal(int64(1000)))
	})

	It("joins an open transaction and rolls back with it", func() {
		tm := database.NewTransactionManager(db)
		txn := charge("b-1-full-100", 150000, ledgerdm.StatusPending)

		err := tm.RunInTransaction(ctx, func(ctx context.Context) error {
			locked, err := repo.GetTransactionForUpdate(ctx, txn.ID)
			Expect(err).ToNot(HaveOccurred())
			locked.Status = ledgerdm.StatusSuccess
			Expect(repo.SaveTransaction(ctx, locked)).To(Succeed())

			b, err := reconciler.RecomputeBookingTotals(ctx, booking.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(b.PaymentStatus).To(Equal(bookingdm.PaymentCompleted))
			return context.Canceled
		})
		Expect(err).To(MatchError(context.Canceled))

		stored := reload()
		Expect(stored.PaymentStatus).To(Equal(bookingdm.PaymentInitiated))
		Expect(stored.RemainingAmount).To(Equal(int64(1500)))
	})

	It("returns not found for a missing booking", func() {
		_, err := reconciler.RecomputeBookingTotals(ctx, 999)
		Expect(err).To(MatchError(internal.ErrBookingNotFound))
	})
})
