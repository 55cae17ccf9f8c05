package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/booking"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	"github.com/frahmantamala/booking-ledger/internal/core/events"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
)

// ExtensionProcessor turns a settled extension payment into a pending
// extension request. The booking itself is left alone until the request is
// approved.
type ExtensionProcessor struct {
	bookings booking.Repository
	ledger   ledger.Repository
	logger   *slog.Logger
	now      func() time.Time
}

func NewExtensionProcessor(bookings booking.Repository, ledgerRepo ledger.Repository, logger *slog.Logger) *ExtensionProcessor {
	return &ExtensionProcessor{
		bookings: bookings,
		ledger:   ledgerRepo,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply expects txn to be locked by the caller.
func (x *ExtensionProcessor) Apply(ctx context.Context, txn *ledgerdm.PaymentTransaction, gatewayOrderID string) (*Result, []events.Event, error) {
	result := &Result{TransactionID: txn.ID, BookingID: txn.BookingID}

	existing, err := x.bookings.GetExtensionByTransactionID(ctx, txn.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("look up extension for transaction %d: %w", txn.ID, err)
	}
	if existing != nil || txn.Processed() {
		if !txn.Processed() {
			x.markSucceeded(txn, gatewayOrderID)
			if err := x.ledger.SaveTransaction(ctx, txn); err != nil {
				return nil, nil, fmt.Errorf("settle transaction %d: %w", txn.ID, err)
			}
		}
		result.Outcome = OutcomeDuplicate
		return result, nil, nil
	}

	x.markSucceeded(txn, gatewayOrderID)

	b, reason, err := x.target(ctx, txn)
	if err != nil {
		return nil, nil, err
	}
	if reason != "" {
		txn.SnapshotRejectedReason = &reason
		x.logger.Error("extension payment captured but cannot be applied, needs operator attention",
			"transaction_id", txn.ID,
			"merchant_order_id", txn.MerchantOrderID,
			"reason", reason)
		if err := x.ledger.SaveTransaction(ctx, txn); err != nil {
			return nil, nil, fmt.Errorf("flag transaction %d: %w", txn.ID, err)
		}
		result.Outcome = OutcomeSnapshotRejected
		return result, nil, nil
	}

	snapshot := txn.ExtensionData
	ext := &bookingdm.BookingExtension{
		BookingID:            b.ID,
		TransactionID:        txn.ID,
		Status:               bookingdm.ExtensionPending,
		CurrentCheckOutDate:  snapshot.CurrentCheckOutDate,
		ProposedCheckOutDate: snapshot.ProposedCheckOutDate,
		AdditionalMonths:     snapshot.AdditionalMonths,
		AdditionalAmount:     snapshot.AdditionalAmount,
	}
	if err := x.bookings.CreateExtension(ctx, ext); err != nil {
		return nil, nil, fmt.Errorf("create extension for booking %d: %w", b.ID, err)
	}
	if err := x.ledger.SaveTransaction(ctx, txn); err != nil {
		return nil, nil, fmt.Errorf("settle transaction %d: %w", txn.ID, err)
	}

	x.logger.Info("extension requested",
		"extension_id", ext.ID,
		"booking_id", b.ID,
		"transaction_id", txn.ID,
		"proposed_check_out_date", ext.ProposedCheckOutDate)

	result.Outcome = OutcomeProcessed
	return result, []events.Event{
		events.NewExtensionRequestedEvent(ext.ID, b.ID, txn.ID, ext.ProposedCheckOutDate),
	}, nil
}

// target returns the booking being extended, or a reason the payment cannot
// be applied.
func (x *ExtensionProcessor) target(ctx context.Context, txn *ledgerdm.PaymentTransaction) (*bookingdm.Booking, string, error) {
	if txn.BookingID == nil {
		return nil, "extension payment is not linked to a booking", nil
	}
	if err := txn.ExtensionData.Validate(); err != nil {
		return nil, err.Error(), nil
	}
	b, err := x.bookings.GetByID(ctx, *txn.BookingID)
	if errors.Is(err, internal.ErrBookingNotFound) {
		return nil, fmt.Sprintf("booking %d no longer exists", *txn.BookingID), nil
	}
	if err != nil {
		return nil, "", err
	}
	return b, "", nil
}

func (x *ExtensionProcessor) markSucceeded(txn *ledgerdm.PaymentTransaction, gatewayOrderID string) {
	now := x.now()
	txn.Status = ledgerdm.StatusSuccess
	txn.WebhookProcessedAt = &now
	txn.FailureReason = nil
	if gatewayOrderID != "" {
		txn.GatewayOrderID = &gatewayOrderID
	}
}
