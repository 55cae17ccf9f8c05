package poller_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/frahmantamala/booking-ledger/internal/booking"
	bookingpg "github.com/frahmantamala/booking-ledger/internal/booking/postgres"
	"github.com/frahmantamala/booking-ledger/internal/core/database"
	"github.com/frahmantamala/booking-ledger/internal/core/database/dbtest"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	paymentgatewaytypes "github.com/frahmantamala/booking-ledger/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
	ledgerpg "github.com/frahmantamala/booking-ledger/internal/ledger/postgres"
	"github.com/frahmantamala/booking-ledger/internal/payment"
	"github.com/frahmantamala/booking-ledger/internal/paymentgateway"
	"github.com/frahmantamala/booking-ledger/internal/poller"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

type stubGateway struct {
	mu       sync.Mutex
	orders   map[string]*paymentgatewaytypes.OrderStatusResponse
	refunds  map[string]*paymentgatewaytypes.RefundStatusResponse
	orderErr error
	calls    int
}

func (g *stubGateway) OrderStatus(_ context.Context, merchantOrderID string) (*paymentgatewaytypes.OrderStatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	if resp, ok := g.orders[merchantOrderID]; ok {
		return resp, nil
	}
	return &paymentgatewaytypes.OrderStatusResponse{State: paymentgatewaytypes.StatePending}, nil
}

func (g *stubGateway) RefundStatus(_ context.Context, merchantRefundID string) (*paymentgatewaytypes.RefundStatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if resp, ok := g.refunds[merchantRefundID]; ok {
		return resp, nil
	}
	return &paymentgatewaytypes.RefundStatusResponse{MerchantRefundID: merchantRefundID, State: paymentgatewaytypes.StatePending}, nil
}

var _ = Describe("Poller", func() {
	const userID = int64(3)

	var (
		ctx     context.Context
		db      *gorm.DB
		fx      dbtest.Fixtures
		gateway *stubGateway
		p       *poller.Poller
		cfg     poller.Config
		build   func()
	)

	pendingAt := func(merchantOrderID string, typ ledgerdm.TransactionType, age time.Duration) *ledgerdm.PaymentTransaction {
		return fx.Transaction(&ledgerdm.PaymentTransaction{
			UserID:          userID,
			MerchantOrderID: merchantOrderID,
			Amount:          100000,
			Type:            typ,
			Status:          ledgerdm.StatusPending,
			CreatedAt:       time.Now().UTC().Add(-age),
		})
	}

	jobOf := func(txn *ledgerdm.PaymentTransaction) poller.Job {
		return poller.Job{TransactionID: txn.ID, MerchantOrderID: txn.MerchantOrderID, Type: txn.Type, CreatedAt: txn.CreatedAt}
	}

	reload := func(id int64) *ledgerdm.PaymentTransaction {
		var txn ledgerdm.PaymentTransaction
		Expect(db.First(&txn, id).Error).ToNot(HaveOccurred())
		return &txn
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).ToNot(HaveOccurred())
		fx = dbtest.Fixtures{DB: db}
		gateway = &stubGateway{
			orders:  map[string]*paymentgatewaytypes.OrderStatusResponse{},
			refunds: map[string]*paymentgatewaytypes.RefundStatusResponse{},
		}
		cfg = poller.Config{
			Interval:     20 * time.Millisecond,
			StaleAfter:   5 * time.Minute,
			ExpireAfter:  time.Hour,
			BatchSize:    10,
			MaxWorkers:   2,
			JobQueueSize: 10,
		}

		build = func() {
			tx := database.NewTransactionManager(db)
			ledgerRepo := ledgerpg.NewLedgerRepository(db)
			bookingRepo := bookingpg.NewBookingRepository(db)
			reconciler := ledger.NewReconciler(tx, ledgerRepo, logger.Discard())
			processor := payment.NewProcessor(tx, ledgerRepo,
				booking.NewMaterializer(tx, bookingRepo, ledgerRepo, reconciler, logger.Discard()),
				reconciler,
				payment.NewRefundHandler(ledgerRepo, reconciler, logger.Discard()),
				payment.NewExtensionProcessor(bookingRepo, ledgerRepo, logger.Discard()),
				nil, logger.Discard())
			p = poller.New(ledgerRepo, gateway, processor, cfg, logger.Discard())
		}
		build()
	})

	Describe("Check", func() {
		It("settles a balance payment the gateway reports as completed", func() {
			property := fx.Property("Hadapsar Heights")
			b := fx.Booking(userID, property.ID, bookingdm.StatusApproved, dbtest.Date(2025, 1, 1), dbtest.Ptr(dbtest.Date(2025, 2, 1)), 1000)
			txn := pendingAt("b-1-full-100", ledgerdm.TypeInitial, 10*time.Minute)
			Expect(db.Model(txn).Update("booking_id", b.ID).Error).ToNot(HaveOccurred())
			gateway.orders["b-1-full-100"] = &paymentgatewaytypes.OrderStatusResponse{
				OrderID: "OMO1", State: paymentgatewaytypes.StateCompleted, Amount: 100000,
			}

			result, err := p.Check(ctx, jobOf(txn))
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Outcome).To(Equal(payment.OutcomeProcessed))

			stored := reload(txn.ID)
			Expect(stored.Status).To(Equal(ledgerdm.StatusSuccess))
			Expect(*stored.GatewayOrderID).To(Equal("OMO1"))

			var settled bookingdm.Booking
			Expect(db.First(&settled, b.ID).Error).ToNot(HaveOccurred())
			Expect(settled.PaymentStatus).To(Equal(bookingdm.PaymentCompleted))

			again, err := p.Check(ctx, jobOf(txn))
			Expect(err).ToNot(HaveOccurred())
			Expect(again.Outcome).To(Equal(payment.OutcomeDuplicate))
		})

		It("leaves a young pending order alone", func() {
			txn := pendingAt("b-new-full-1", ledgerdm.TypeInitial, 10*time.Minute)

			result, err := p.Check(ctx, jobOf(txn))
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Outcome).To(Equal(payment.OutcomeIgnored))
			Expect(reload(txn.ID).Status).To(Equal(ledgerdm.StatusPending))
		})

		It("expires an order still pending past the expiry window", func() {
			txn := pendingAt("b-new-full-2", ledgerdm.TypeInitial, 2*time.Hour)

			result, err := p.Check(ctx, jobOf(txn))
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Outcome).To(Equal(payment.OutcomeProcessed))

			stored := reload(txn.ID)
			Expect(stored.Status).To(Equal(ledgerdm.StatusExpired))
			Expect(stored.FailureReason).ToNot(BeNil())
		})

		It("expires an old order the gateway does not know", func() {
			gateway.orderErr = fmt.Errorf("%w: 404 ORDER_NOT_FOUND", paymentgateway.ErrGatewayRejected)
			txn := pendingAt("b-new-full-3", ledgerdm.TypeInitial, 2*time.Hour)

			_, err := p.Check(ctx, jobOf(txn))
			Expect(err).ToNot(HaveOccurred())
			Expect(reload(txn.ID).Status).To(Equal(ledgerdm.StatusExpired))
		})

		It("keeps the row pending when the gateway is unavailable", func() {
			gateway.orderErr = fmt.Errorf("%w: 503", paymentgateway.ErrGatewayUnavailable)
			txn := pendingAt("b-new-full-4", ledgerdm.TypeInitial, 2*time.Hour)

			_, err := p.Check(ctx, jobOf(txn))
			Expect(err).To(MatchError(paymentgateway.ErrGatewayUnavailable))
			Expect(reload(txn.ID).Status).To(Equal(ledgerdm.StatusPending))
		})

		It("applies a completed refund and links it to the booking", func() {
			property := fx.Property("Hadapsar Heights")
			b := fx.Booking(userID, property.ID, bookingdm.StatusApproved, dbtest.Date(2025, 1, 1), dbtest.Ptr(dbtest.Date(2025, 2, 1)), 1000)
			fx.Transaction(&ledgerdm.PaymentTransaction{
				UserID: userID, MerchantOrderID: "b-1-full-200", Amount: 100000,
				Type: ledgerdm.TypeInitial, Status: ledgerdm.StatusSuccess, BookingID: &b.ID,
			})
			refund := fx.Transaction(&ledgerdm.PaymentTransaction{
				UserID: userID, MerchantOrderID: "r-1", MerchantRefundID: dbtest.Ptr("r-1"),
				OriginalMerchantOrderID: dbtest.Ptr("b-1-full-200"),
				Amount:                  40000, Type: ledgerdm.TypeRefund, Status: ledgerdm.StatusPending,
				CreatedAt: time.Now().UTC().Add(-10 * time.Minute),
			})
			gateway.refunds["r-1"] = &paymentgatewaytypes.RefundStatusResponse{
				MerchantRefundID: "r-1", RefundID: "OMR1", OriginalMerchantOrderID: "b-1-full-200",
				Amount: 40000, State: paymentgatewaytypes.StateCompleted,
			}

			result, err := p.Check(ctx, jobOf(refund))
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Event).To(Equal("REFUND_EVENT"))

			stored := reload(refund.ID)
			Expect(stored.Status).To(Equal(ledgerdm.StatusSuccess))
			Expect(stored.BookingID).To(HaveValue(Equal(b.ID)))

			var reopened bookingdm.Booking
			Expect(db.First(&reopened, b.ID).Error).ToNot(HaveOccurred())
			Expect(reopened.RemainingAmount).To(Equal(int64(400)))
			Expect(reopened.PaymentStatus).To(Equal(bookingdm.PaymentPartial))
		})
	})

	Describe("Sweep", func() {
		It("queues stale rows once and skips fresh ones", func() {
			pendingAt("b-new-full-5", ledgerdm.TypeInitial, 10*time.Minute)
			pendingAt("b-new-full-6", ledgerdm.TypeInitial, 20*time.Minute)
			pendingAt("b-new-full-7", ledgerdm.TypeInitial, time.Minute)

			queued, err := p.Sweep(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(queued).To(Equal(2))

			queued, err = p.Sweep(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(queued).To(BeZero())
		})

		It("defers rows that do not fit in the queue", func() {
			cfg.JobQueueSize = 1
			build()
			pendingAt("b-new-full-8", ledgerdm.TypeInitial, 10*time.Minute)
			pendingAt("b-new-full-9", ledgerdm.TypeInitial, 20*time.Minute)

			queued, err := p.Sweep(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(queued).To(Equal(1))
		})
	})

	Describe("Start and Stop", func() {
		It("reconciles stale rows in the background until stopped", func() {
			txn := pendingAt("b-new-full-10", ledgerdm.TypeInitial, 2*time.Hour)

			p.Start(ctx)
			p.Start(ctx)
			Eventually(func() ledgerdm.TransactionStatus {
				var stored ledgerdm.PaymentTransaction
				if err := db.First(&stored, txn.ID).Error; err != nil {
					return ""
				}
				return stored.Status
			}, 2*time.Second, 20*time.Millisecond).Should(Equal(ledgerdm.StatusExpired))

			done := make(chan struct{})
			go func() {
				p.Stop()
				close(done)
			}()
			Eventually(done, 2*time.Second).Should(BeClosed())
			p.Stop()
		})
	})
})
