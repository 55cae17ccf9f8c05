package payment

import (
	"strings"

	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	paymentgatewaytypes "github.com/frahmantamala/booking-ledger/internal/core/datamodel/paymentgateway"
)

// Gateway event names the classifier knows by name. Anything else is
// classified by its payload state.
const (
	GatewayEventOrderCompleted  = "checkout.order.completed"
	GatewayEventOrderFailed     = "checkout.order.failed"
	GatewayEventRefundAccepted  = "pg.refund.accepted"
	GatewayEventRefundCompleted = "pg.refund.completed"
	GatewayEventRefundFailed    = "pg.refund.failed"
)

// Notification is a gateway callback, or a status poll reshaped into one.
type Notification struct {
	Event   string              `json:"event"`
	Payload NotificationPayload `json:"payload"`
}

type NotificationPayload struct {
	State                   string `json:"state"`
	MerchantOrderID         string `json:"merchantOrderId,omitempty"`
	OrderID                 string `json:"orderId,omitempty"`
	MerchantRefundID        string `json:"merchantRefundId,omitempty"`
	RefundID                string `json:"refundId,omitempty"`
	OriginalMerchantOrderID string `json:"originalMerchantOrderId,omitempty"`
	Amount                  int64  `json:"amount,omitempty"`
	ErrorCode               string `json:"errorCode,omitempty"`
	DetailedErrorCode       string `json:"detailedErrorCode,omitempty"`
}

// Event is the classified form of a Notification. The concrete types are
// OrderSuccess, OrderFailure, RefundUpdate and Unhandled.
type Event interface {
	Kind() string
	isEvent()
}

type OrderSuccess struct {
	MerchantOrderID string
	GatewayOrderID  string
	Amount          int64
}

// OrderFailure carries FAILED or EXPIRED.
type OrderFailure struct {
	MerchantOrderID string
	GatewayOrderID  string
	Status          ledgerdm.TransactionStatus
	Reason          string
}

type RefundUpdate struct {
	MerchantRefundID        string
	GatewayRefundID         string
	OriginalMerchantOrderID string
	State                   string
	Reason                  string
}

type Unhandled struct {
	Reason string
}

func (OrderSuccess) Kind() string { return "ORDER_SUCCESS" }
func (OrderFailure) Kind() string { return "ORDER_FAILURE" }
func (RefundUpdate) Kind() string { return "REFUND_EVENT" }
func (Unhandled) Kind() string    { return "UNHANDLED" }

func (OrderSuccess) isEvent() {}
func (OrderFailure) isEvent() {}
func (RefundUpdate) isEvent() {}
func (Unhandled) isEvent()    {}

// Classify maps a notification to exactly one event. Any refund identifier
// makes it a refund, whatever the event name says.
func Classify(n Notification) Event {
	p := n.Payload
	state := strings.ToUpper(strings.TrimSpace(p.State))
	name := strings.ToLower(strings.TrimSpace(n.Event))

	if p.MerchantRefundID != "" || p.RefundID != "" {
		return RefundUpdate{
			MerchantRefundID:        p.MerchantRefundID,
			GatewayRefundID:         p.RefundID,
			OriginalMerchantOrderID: p.OriginalMerchantOrderID,
			State:                   refundState(name, state),
			Reason:                  failureReason(p),
		}
	}

	if p.MerchantOrderID == "" && p.OrderID == "" {
		return Unhandled{Reason: "notification carries no order or refund reference"}
	}

	success := OrderSuccess{MerchantOrderID: p.MerchantOrderID, GatewayOrderID: p.OrderID, Amount: p.Amount}
	failure := func(status ledgerdm.TransactionStatus) OrderFailure {
		return OrderFailure{
			MerchantOrderID: p.MerchantOrderID,
			GatewayOrderID:  p.OrderID,
			Status:          status,
			Reason:          failureReason(p),
		}
	}

	switch name {
	case GatewayEventOrderCompleted:
		if state == string(paymentgatewaytypes.StateCompleted) {
			return success
		}
		return Unhandled{Reason: "order completed event with state " + state}
	case GatewayEventOrderFailed:
		if state == string(paymentgatewaytypes.StateExpired) {
			return failure(ledgerdm.StatusExpired)
		}
		return failure(ledgerdm.StatusFailed)
	}

	switch paymentgatewaytypes.OrderState(state) {
	case paymentgatewaytypes.StateCompleted:
		return success
	case paymentgatewaytypes.StateFailed:
		return failure(ledgerdm.StatusFailed)
	case paymentgatewaytypes.StateExpired:
		return failure(ledgerdm.StatusExpired)
	}
	return Unhandled{Reason: "order state " + state + " needs no action"}
}

// refundState prefers the payload state and falls back to the event name.
func refundState(name, state string) string {
	if state != "" {
		return state
	}
	switch name {
	case GatewayEventRefundCompleted:
		return string(paymentgatewaytypes.StateCompleted)
	case GatewayEventRefundFailed:
		return string(paymentgatewaytypes.StateFailed)
	}
	return string(paymentgatewaytypes.StatePending)
}

func failureReason(p NotificationPayload) string {
	switch {
	case p.DetailedErrorCode != "":
		return p.DetailedErrorCode
	case p.ErrorCode != "":
		return p.ErrorCode
	}
	return ""
}

// RefundStatus maps a gateway refund state onto the ledger.
func RefundStatus(state string) ledgerdm.TransactionStatus {
	switch paymentgatewaytypes.OrderState(strings.ToUpper(state)) {
	case paymentgatewaytypes.StateCompleted, paymentgatewaytypes.StateConfirmed:
		return ledgerdm.StatusSuccess
	case paymentgatewaytypes.StateFailed:
		return ledgerdm.StatusFailed
	}
	return ledgerdm.StatusPending
}
