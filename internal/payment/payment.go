package payment

import (
	"context"

	"github.com/frahmantamala/booking-ledger/internal/booking"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	paymentgatewaytypes "github.com/frahmantamala/booking-ledger/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/booking-ledger/internal/core/events"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
)

// Gateway is the payment provider. Implementations must bound every call
// with a timeout and never be called while a database transaction is open.
type Gateway interface {
	CreatePayment(ctx context.Context, req *paymentgatewaytypes.CreatePaymentRequest) (*paymentgatewaytypes.CreatePaymentResponse, error)
	OrderStatus(ctx context.Context, merchantOrderID string) (*paymentgatewaytypes.OrderStatusResponse, error)
	Refund(ctx context.Context, req *paymentgatewaytypes.RefundRequest) (*paymentgatewaytypes.RefundResponse, error)
	RefundStatus(ctx context.Context, merchantRefundID string) (*paymentgatewaytypes.RefundStatusResponse, error)
}

type Materializer interface {
	Materialize(ctx context.Context, transactionID int64, gatewayOrderID string) (*booking.MaterializeResult, error)
}

type BalanceReconciler interface {
	RecomputeBookingTotals(ctx context.Context, bookingID int64) (*bookingdm.Booking, error)
}

type RefundCalculator interface {
	Refundable(ctx context.Context, txn *ledgerdm.PaymentTransaction) (*ledger.RefundInfo, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
