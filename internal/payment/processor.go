package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/booking"
	"github.com/frahmantamala/booking-ledger/internal/core/database"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	"github.com/frahmantamala/booking-ledger/internal/core/events"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeOverlapSkipped   Outcome = "overlap_skipped"
	OutcomeSnapshotRejected Outcome = "snapshot_rejected"
)

type Result struct {
	Event         string  `json:"event"`
	Outcome       Outcome `json:"outcome"`
	TransactionID int64   `json:"transactionId,omitempty"`
	BookingID     *int64  `json:"bookingId,omitempty"`
}

// Processor applies classified gateway events to the ledger. Webhooks and the
// status poller both go through it so an event has the same effect whichever
// path delivers it first.
type Processor struct {
	tx           database.TxManager
	ledger       ledger.Repository
	materializer Materializer
	reconciler   BalanceReconciler
	refunds      *RefundHandler
	extensions   *ExtensionProcessor
	publisher    EventPublisher
	logger       *slog.Logger
	now          func() time.Time
}

func NewProcessor(
	tx database.TxManager,
	ledgerRepo ledger.Repository,
	materializer Materializer,
	reconciler BalanceReconciler,
	refunds *RefundHandler,
	extensions *ExtensionProcessor,
	publisher EventPublisher,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		tx:           tx,
		ledger:       ledgerRepo,
		materializer: materializer,
		reconciler:   reconciler,
		refunds:      refunds,
		extensions:   extensions,
		publisher:    publisher,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Process dispatches ev inside one database transaction. Domain events are
// published only after it commits.
func (p *Processor) Process(ctx context.Context, ev Event) (*Result, error) {
	var (
		result  *Result
		pending []events.Event
	)

	err := p.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		switch e := ev.(type) {
		case OrderSuccess:
			result, pending, err = p.orderSuccess(ctx, e)
		case OrderFailure:
			result, err = p.orderFailure(ctx, e)
		case RefundUpdate:
			result, pending, err = p.refunds.Handle(ctx, e)
		case Unhandled:
			logger.From(ctx).Info("gateway notification ignored", "reason", e.Reason)
			result = &Result{Outcome: OutcomeIgnored}
		default:
			err = fmt.Errorf("unsupported payment event %T", ev)
		}
		return err
	})
	if err != nil {
		p.logger.Error("payment event processing failed, rolled back",
			"event", ev.Kind(),
			"error", err)
		return nil, err
	}

	result.Event = ev.Kind()
	p.publish(ctx, pending)
	return result, nil
}

func (p *Processor) publish(ctx context.Context, pending []events.Event) {
	if p.publisher == nil {
		return
	}
	for _, e := range pending {
		if err := p.publisher.Publish(ctx, e); err != nil {
			p.logger.Error("failed to publish event", "event_type", e.EventType(), "error", err)
		}
	}
}

// lockOrder resolves a charge by merchant order id, falling back to the
// gateway order id, and locks it.
func (p *Processor) lockOrder(ctx context.Context, merchantOrderID, gatewayOrderID string) (*ledgerdm.PaymentTransaction, error) {
	found, err := p.ledger.FindByOrderRef(ctx, merchantOrderID, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	return p.ledger.GetTransactionForUpdate(ctx, found.ID)
}

func (p *Processor) orderSuccess(ctx context.Context, e OrderSuccess) (*Result, []events.Event, error) {
	txn, err := p.lockOrder(ctx, e.MerchantOrderID, e.GatewayOrderID)
	if errors.Is(err, internal.ErrTransactionNotFound) {
		p.logger.Warn("order success for unknown transaction",
			"merchant_order_id", e.MerchantOrderID,
			"gateway_order_id", e.GatewayOrderID)
		return &Result{Outcome: OutcomeNotFound}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	if e.Amount > 0 && e.Amount != txn.Amount {
		p.logger.Warn("gateway amount differs from ledger amount",
			"transaction_id", txn.ID,
			"merchant_order_id", txn.MerchantOrderID,
			"ledger_amount", txn.Amount,
			"gateway_amount", e.Amount)
	}

	switch {
	case txn.Type == ledgerdm.TypeExtension:
		return p.extensions.Apply(ctx, txn, e.GatewayOrderID)
	case txn.Type == ledgerdm.TypeInitial && txn.BookingID == nil:
		return p.materialize(ctx, txn, e.GatewayOrderID)
	case txn.Type == ledgerdm.TypeInitial:
		res, err := p.settleBalancePayment(ctx, txn, e.GatewayOrderID)
		return res, nil, err
	}

	p.logger.Warn("order success for a refund row ignored", "transaction_id", txn.ID)
	return &Result{Outcome: OutcomeIgnored, TransactionID: txn.ID}, nil, nil
}

func (p *Processor) materialize(ctx context.Context, txn *ledgerdm.PaymentTransaction, gatewayOrderID string) (*Result, []events.Event, error) {
	res, err := p.materializer.Materialize(ctx, txn.ID, gatewayOrderID)
	if err != nil {
		return nil, nil, err
	}

	result := &Result{TransactionID: txn.ID, BookingID: res.Transaction.BookingID}
	var pending []events.Event
	switch res.Outcome {
	case booking.MaterializeCreated:
		result.Outcome = OutcomeProcessed
		pending = append(pending, events.NewBookingMaterializedEvent(res.Booking.ID, txn.UserID, txn.ID, txn.MerchantOrderID))
	case booking.MaterializeOverlapSkipped:
		result.Outcome = OutcomeOverlapSkipped
		pending = append(pending, events.NewBookingOverlapSkippedEvent(txn.ID, txn.UserID, txn.MerchantOrderID, res.OverlapBookingID, txn.Amount))
	case booking.MaterializeSnapshotRejected:
		result.Outcome = OutcomeSnapshotRejected
	default:
		result.Outcome = OutcomeDuplicate
	}
	return result, pending, nil
}

// settleBalancePayment handles a later payment against an existing booking.
func (p *Processor) settleBalancePayment(ctx context.Context, txn *ledgerdm.PaymentTransaction, gatewayOrderID string) (*Result, error) {
	result := &Result{TransactionID: txn.ID, BookingID: txn.BookingID}
	if txn.Processed() {
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	p.markSucceeded(txn, gatewayOrderID)
	if err := p.ledger.SaveTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("settle transaction %d: %w", txn.ID, err)
	}

	b, err := p.reconciler.RecomputeBookingTotals(ctx, *txn.BookingID)
	if err != nil {
		return nil, err
	}

	p.logger.Info("balance payment settled",
		"transaction_id", txn.ID,
		"booking_id", b.ID,
		"remaining_amount", b.RemainingAmount,
		"payment_status", b.PaymentStatus)

	result.Outcome = OutcomeProcessed
	return result, nil
}

func (p *Processor) orderFailure(ctx context.Context, e OrderFailure) (*Result, error) {
	txn, err := p.lockOrder(ctx, e.MerchantOrderID, e.GatewayOrderID)
	if errors.Is(err, internal.ErrTransactionNotFound) {
		p.logger.Warn("order failure for unknown transaction",
			"merchant_order_id", e.MerchantOrderID,
			"gateway_order_id", e.GatewayOrderID)
		return &Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &Result{TransactionID: txn.ID, BookingID: txn.BookingID}
	if txn.Type == ledgerdm.TypeRefund {
		result.Outcome = OutcomeIgnored
		return result, nil
	}
	if txn.Status == ledgerdm.StatusSuccess {
		p.logger.Warn("failure reported for a settled transaction, keeping SUCCESS",
			"transaction_id", txn.ID,
			"merchant_order_id", txn.MerchantOrderID,
			"reported_status", e.Status)
		result.Outcome = OutcomeIgnored
		return result, nil
	}
	if txn.Status.IsTerminal() {
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	now := p.now()
	reason := e.Reason
	if reason == "" {
		reason = "payment " + string(e.Status)
	}
	txn.Status = e.Status
	txn.FailureReason = &reason
	txn.WebhookProcessedAt = &now
	if txn.GatewayOrderID == nil && e.GatewayOrderID != "" {
		txn.GatewayOrderID = &e.GatewayOrderID
	}
	if err := p.ledger.SaveTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("fail transaction %d: %w", txn.ID, err)
	}

	p.logger.Info("payment marked unsuccessful",
		"transaction_id", txn.ID,
		"merchant_order_id", txn.MerchantOrderID,
		"status", txn.Status,
		"reason", reason)

	result.Outcome = OutcomeProcessed
	return result, nil
}

func (p *Processor) markSucceeded(txn *ledgerdm.PaymentTransaction, gatewayOrderID string) {
	now := p.now()
	txn.Status = ledgerdm.StatusSuccess
	txn.WebhookProcessedAt = &now
	txn.FailureReason = nil
	if gatewayOrderID != "" {
		txn.GatewayOrderID = &gatewayOrderID
	}
}
