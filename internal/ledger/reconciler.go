package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/booking-ledger/internal/core/database"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
)

// Reconciler rederives a booking's remaining amount and payment status from
// the ledger. It never accumulates, so running it twice is a no-op.
type Reconciler struct {
	tx     database.TxManager
	repo   Repository
	logger *slog.Logger
}

func NewReconciler(tx database.TxManager, repo Repository, logger *slog.Logger) *Reconciler {
	return &Reconciler{tx: tx, repo: repo, logger: logger}
}

// RecomputeBookingTotals locks the booking, sums its settled transactions and
// writes the derived balance. Called inside an open transaction it joins it,
// so the sum sees the status change that triggered it.
func (r *Reconciler) RecomputeBookingTotals(ctx context.Context, bookingID int64) (*bookingdm.Booking, error) {
	var result *bookingdm.Booking
	err := r.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := r.repo.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		totals, err := r.repo.SumBookingLedger(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("sum ledger for booking %d: %w", bookingID, err)
		}

		balance := ComputeBalance(b.TotalAmount, totals)
		result = b
		if b.RemainingAmount == balance.RemainingAmount && b.PaymentStatus == balance.PaymentStatus {
			return nil
		}

		if err := r.repo.UpdateBookingBalance(ctx, bookingID, balance); err != nil {
			return fmt.Errorf("update balance for booking %d: %w", bookingID, err)
		}

		r.logger.Info("booking balance recomputed",
			"booking_id", bookingID,
			"net_paid", balance.NetPaid,
			"remaining_amount", balance.RemainingAmount,
			"previous_payment_status", b.PaymentStatus,
			"payment_status", balance.PaymentStatus)

		b.RemainingAmount = balance.RemainingAmount
		b.PaymentStatus = balance.PaymentStatus
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
