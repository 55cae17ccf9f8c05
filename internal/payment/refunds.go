package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/booking-ledger/internal"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	"github.com/frahmantamala/booking-ledger/internal/core/events"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
)

// RefundHandler applies refund state changes reported by the gateway. It runs
// inside the caller's transaction.
type RefundHandler struct {
	ledger     ledger.Repository
	reconciler BalanceReconciler
	logger     *slog.Logger
	now        func() time.Time
}

func NewRefundHandler(ledgerRepo ledger.Repository, reconciler BalanceReconciler, logger *slog.Logger) *RefundHandler {
	return &RefundHandler{
		ledger:     ledgerRepo,
		reconciler: reconciler,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Handle moves a refund row to the reported state. A terminal state is never
// moved back to PENDING and SUCCESS is never replaced by FAILED. The first
// time a refund reaches SUCCESS a refund.succeeded event is returned.
func (h *RefundHandler) Handle(ctx context.Context, e RefundUpdate) (*Result, []events.Event, error) {
	found, err := h.ledger.FindByRefundRef(ctx, e.MerchantRefundID, e.GatewayRefundID)
	if errors.Is(err, internal.ErrTransactionNotFound) {
		h.logger.Warn("refund notification for unknown refund",
			"merchant_refund_id", e.MerchantRefundID,
			"refund_id", e.GatewayRefundID)
		return &Result{Outcome: OutcomeNotFound}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	txn, err := h.ledger.GetTransactionForUpdate(ctx, found.ID)
	if err != nil {
		return nil, nil, err
	}

	result := &Result{TransactionID: txn.ID, BookingID: txn.BookingID}
	target := RefundStatus(e.State)
	changed := false

	switch {
	case target == txn.Status:
	case target == ledgerdm.StatusPending && txn.Status.IsTerminal():
		h.logger.Info("stale pending refund notification ignored", "transaction_id", txn.ID, "status", txn.Status)
	case target == ledgerdm.StatusFailed && txn.Status == ledgerdm.StatusSuccess:
		h.logger.Warn("refund failure reported after success, keeping SUCCESS", "transaction_id", txn.ID)
	default:
		txn.Status = target
		changed = true
		if target == ledgerdm.StatusFailed && e.Reason != "" {
			txn.FailureReason = &e.Reason
		}
	}

	if txn.GatewayRefundID == nil && e.GatewayRefundID != "" {
		txn.GatewayRefundID = &e.GatewayRefundID
		changed = true
	}
	if txn.BookingID == nil {
		linked, err := h.linkOriginal(ctx, txn)
		if err != nil {
			return nil, nil, err
		}
		changed = changed || linked
	}

	var pending []events.Event
	if txn.Status == ledgerdm.StatusSuccess && txn.RefundNotifiedAt == nil {
		now := h.now()
		txn.RefundNotifiedAt = &now
		txn.WebhookProcessedAt = &now
		changed = true
		pending = append(pending, events.NewRefundSucceededEvent(
			txn.ID, txn.UserID, deref(txn.MerchantRefundID), deref(txn.OriginalMerchantOrderID), txn.Amount))
	}

	if !changed {
		result.Outcome = OutcomeDuplicate
		return result, nil, nil
	}

	if err := h.ledger.SaveTransaction(ctx, txn); err != nil {
		return nil, nil, fmt.Errorf("update refund %d: %w", txn.ID, err)
	}

	if txn.BookingID != nil {
		if _, err := h.reconciler.RecomputeBookingTotals(ctx, *txn.BookingID); err != nil {
			return nil, nil, err
		}
	}

	h.logger.Info("refund updated",
		"transaction_id", txn.ID,
		"merchant_refund_id", deref(txn.MerchantRefundID),
		"original_merchant_order_id", deref(txn.OriginalMerchantOrderID),
		"status", txn.Status,
		"booking_id", txn.BookingID)

	result.BookingID = txn.BookingID
	result.Outcome = OutcomeProcessed
	return result, pending, nil
}

// linkOriginal copies the booking of the refunded charge onto the refund row.
func (h *RefundHandler) linkOriginal(ctx context.Context, txn *ledgerdm.PaymentTransaction) (bool, error) {
	if txn.OriginalMerchantOrderID == nil {
		return false, nil
	}
	original, err := h.ledger.GetByMerchantOrderID(ctx, *txn.OriginalMerchantOrderID)
	if errors.Is(err, internal.ErrTransactionNotFound) {
		h.logger.Warn("refund references an unknown charge",
			"transaction_id", txn.ID,
			"original_merchant_order_id", *txn.OriginalMerchantOrderID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if original.BookingID == nil {
		return false, nil
	}
	txn.BookingID = original.BookingID
	return true, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
