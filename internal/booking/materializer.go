package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/booking-ledger/internal/core/database"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
)

type MaterializeOutcome string

const (
	MaterializeCreated          MaterializeOutcome = "created"
	MaterializeDuplicate        MaterializeOutcome = "duplicate"
	MaterializeOverlapSkipped   MaterializeOutcome = "overlap_skipped"
	MaterializeSnapshotRejected MaterializeOutcome = "snapshot_rejected"
)

type MaterializeResult struct {
	Outcome          MaterializeOutcome
	Transaction      *ledgerdm.PaymentTransaction
	Booking          *bookingdm.Booking
	OverlapBookingID int64
}

// Materializer turns a confirmed first payment into a booking.
type Materializer struct {
	tx         database.TxManager
	bookings   Repository
	ledger     TransactionStore
	reconciler BalanceReconciler
	logger     *slog.Logger
	now        func() time.Time
}

func NewMaterializer(tx database.TxManager, bookings Repository, ledger TransactionStore, reconciler BalanceReconciler, logger *slog.Logger) *Materializer {
	return &Materializer{
		tx:         tx,
		bookings:   bookings,
		ledger:     ledger,
		reconciler: reconciler,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Materialize settles transactionID and creates its booking from the pending
// snapshot. A payment whose stay now overlaps another live booking is settled
// but flagged for an operator instead of creating a second booking. A snapshot
// that fails validation is flagged the same way.
func (m *Materializer) Materialize(ctx context.Context, transactionID int64, gatewayOrderID string) (*MaterializeResult, error) {
	var result *MaterializeResult
	err := m.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		txn, err := m.ledger.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		result = &MaterializeResult{Transaction: txn}

		if txn.Processed() || txn.BookingID != nil {
			result.Outcome = MaterializeDuplicate
			return nil
		}

		now := m.now()
		txn.Status = ledgerdm.StatusSuccess
		txn.WebhookProcessedAt = &now
		txn.FailureReason = nil
		if gatewayOrderID != "" {
			txn.GatewayOrderID = &gatewayOrderID
		}

		snapshot := txn.PendingBookingData
		if err := snapshot.Validate(); err != nil {
			reason := err.Error()
			txn.SnapshotRejectedReason = &reason
			m.logger.Error("pending booking snapshot rejected, payment needs operator attention",
				"transaction_id", txn.ID,
				"merchant_order_id", txn.MerchantOrderID,
				"reason", reason)
			result.Outcome = MaterializeSnapshotRejected
			return m.ledger.SaveTransaction(ctx, txn)
		}

		existing, err := m.bookings.ListLiveByUser(ctx, txn.UserID, true)
		if err != nil {
			return fmt.Errorf("list bookings for user %d: %w", txn.UserID, err)
		}

		candidate := NewWindow(snapshot.CheckInDate, &snapshot.CheckOutDate)
		if conflict := FindOverlap(existing, candidate, 0); conflict != nil {
			txn.BookingSkippedDueToOverlap = true
			txn.OverlapBookingID = &conflict.ID
			m.logger.Warn("payment captured but booking skipped due to overlap",
				"transaction_id", txn.ID,
				"merchant_order_id", txn.MerchantOrderID,
				"user_id", txn.UserID,
				"overlap_booking_id", conflict.ID)
			result.Outcome = MaterializeOverlapSkipped
			result.OverlapBookingID = conflict.ID
			return m.ledger.SaveTransaction(ctx, txn)
		}

		b := newBookingFromSnapshot(txn.UserID, snapshot)
		if err := m.bookings.Create(ctx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		txn.BookingID = &b.ID
		txn.PendingBookingData = nil
		if err := m.ledger.SaveTransaction(ctx, txn); err != nil {
			return fmt.Errorf("link transaction %d to booking %d: %w", txn.ID, b.ID, err)
		}

		reconciled, err := m.reconciler.RecomputeBookingTotals(ctx, b.ID)
		if err != nil {
			return err
		}

		m.logger.Info("booking materialized",
			"booking_id", b.ID,
			"transaction_id", txn.ID,
			"merchant_order_id", txn.MerchantOrderID,
			"payment_status", reconciled.PaymentStatus)

		result.Outcome = MaterializeCreated
		result.Booking = reconciled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func newBookingFromSnapshot(userID int64, s *ledgerdm.PendingBookingSnapshot) *bookingdm.Booking {
	checkOut := s.CheckOutDate
	b := &bookingdm.Booking{
		UserID:          userID,
		PropertyID:      s.PropertyID,
		RoomType:        s.RoomType,
		Status:          bookingdm.StatusPending,
		PaymentStatus:   bookingdm.PaymentInitiated,
		CheckInDate:     s.CheckInDate,
		CheckOutDate:    &checkOut,
		DurationMonths:  s.DurationMonths,
		MonthlyRent:     s.MonthlyRent,
		TotalAmount:     s.TotalAmount,
		RemainingAmount: s.TotalAmount,
	}
	if s.RateCardID > 0 {
		rateCardID := s.RateCardID
		b.RateCardID = &rateCardID
	}
	return b
}
