package ledger

import (
	"context"
	"time"

	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	"github.com/frahmantamala/booking-ledger/internal/core/money"
)

// Repository is the ledger store. Methods suffixed ForUpdate take a row lock
// and must be called inside a transaction opened by database.TxManager.
// Lookups return internal.ErrTransactionNotFound or internal.ErrBookingNotFound
// when nothing matches.
type Repository interface {
	CreateTransaction(ctx context.Context, txn *ledgerdm.PaymentTransaction) error
	SaveTransaction(ctx context.Context, txn *ledgerdm.PaymentTransaction) error
	GetTransaction(ctx context.Context, id int64) (*ledgerdm.PaymentTransaction, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (*ledgerdm.PaymentTransaction, error)
	GetByMerchantOrderID(ctx context.Context, merchantOrderID string) (*ledgerdm.PaymentTransaction, error)
	FindByOrderRef(ctx context.Context, merchantOrderID, gatewayOrderID string) (*ledgerdm.PaymentTransaction, error)
	FindByRefundRef(ctx context.Context, merchantRefundID, gatewayRefundID string) (*ledgerdm.PaymentTransaction, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*ledgerdm.PaymentTransaction, error)

	// The methods below touch only the named columns so they can run after a
	// gateway call without overwriting a status a webhook wrote meanwhile.
	SetGatewayOrder(ctx context.Context, id int64, gatewayOrderID, redirectURL string) error
	SetGatewayRefundID(ctx context.Context, id int64, gatewayRefundID string) error
	FailIfPending(ctx context.Context, id int64, reason string) (bool, error)

	SumBookingLedger(ctx context.Context, bookingID int64) (Totals, error)
	SumRefunds(ctx context.Context, originalMerchantOrderID string) (RefundTotals, error)

	GetBookingForUpdate(ctx context.Context, bookingID int64) (*bookingdm.Booking, error)
	UpdateBookingBalance(ctx context.Context, bookingID int64, balance Balance) error
}

// Totals are the settled sums for one booking, in paise.
type Totals struct {
	Paid     int64
	Refunded int64
}

func (t Totals) NetPaid() int64 {
	if net := t.Paid - t.Refunded; net > 0 {
		return net
	}
	return 0
}

// RefundTotals are the refund sums against one charge, in paise.
type RefundTotals struct {
	Succeeded int64
	Pending   int64
}

// Balance is the derived payment state of a booking. NetPaid is in paise,
// RemainingAmount in rupees.
type Balance struct {
	NetPaid         int64
	RemainingAmount int64
	PaymentStatus   bookingdm.PaymentStatus
}

// ComputeBalance derives a booking's balance from its rupee total and its
// settled ledger sums.
func ComputeBalance(totalAmount int64, t Totals) Balance {
	netPaid := t.NetPaid()
	totalMinor := money.ToMinor(totalAmount)

	remainingMinor := totalMinor - netPaid
	if remainingMinor < 0 {
		remainingMinor = 0
	}

	status := bookingdm.PaymentPartial
	switch {
	case netPaid == 0:
		status = bookingdm.PaymentInitiated
	case netPaid >= totalMinor:
		status = bookingdm.PaymentCompleted
	}

	return Balance{
		NetPaid:         netPaid,
		RemainingAmount: money.ToMajor(remainingMinor),
		PaymentStatus:   status,
	}
}
