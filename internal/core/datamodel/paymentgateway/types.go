package paymentgateway

import (
	"errors"
	"time"
)

// OrderState is the gateway's view of a checkout order or a refund.
type OrderState string

const (
	StatePending   OrderState = "PENDING"
	StateCompleted OrderState = "COMPLETED"
	StateConfirmed OrderState = "CONFIRMED"
	StateFailed    OrderState = "FAILED"
	StateExpired   OrderState = "EXPIRED"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (t TokenResponse) Expiry() time.Time {
	return time.Unix(t.ExpiresAt, 0)
}

// CreatePaymentRequest amounts are in paise.
type CreatePaymentRequest struct {
	MerchantOrderID string `json:"merchantOrderId"`
	Amount          int64  `json:"amount"`
	ExpireAfter     int64  `json:"expireAfter,omitempty"`
	RedirectURL     string `json:"-"`
}

func (r *CreatePaymentRequest) Validate() error {
	if r.MerchantOrderID == "" {
		return errors.New("merchantOrderId is required")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	return nil
}

type CreatePaymentResponse struct {
	OrderID     string     `json:"orderId"`
	State       OrderState `json:"state"`
	ExpireAt    int64      `json:"expireAt"`
	RedirectURL string     `json:"redirectUrl"`
}

type PaymentAttempt struct {
	TransactionID string     `json:"transactionId"`
	PaymentMode   string     `json:"paymentMode"`
	Amount        int64      `json:"amount"`
	State         OrderState `json:"state"`
	ErrorCode     string     `json:"errorCode,omitempty"`
}

type OrderStatusResponse struct {
	OrderID        string           `json:"orderId"`
	State          OrderState       `json:"state"`
	Amount         int64            `json:"amount"`
	ExpireAt       int64            `json:"expireAt"`
	ErrorCode      string           `json:"errorCode,omitempty"`
	PaymentDetails []PaymentAttempt `json:"paymentDetails,omitempty"`
}

// RefundRequest amounts are in paise.
type RefundRequest struct {
	MerchantRefundID string `json:"merchantRefundId"`
	OriginalOrderID  string `json:"originalMerchantOrderId"`
	Amount           int64  `json:"amount"`
}

func (r *RefundRequest) Validate() error {
	if r.MerchantRefundID == "" {
		return errors.New("merchantRefundId is required")
	}
	if r.OriginalOrderID == "" {
		return errors.New("originalMerchantOrderId is required")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	return nil
}

type RefundResponse struct {
	RefundID string     `json:"refundId"`
	Amount   int64      `json:"amount"`
	State    OrderState `json:"state"`
}

type RefundStatusResponse struct {
	MerchantRefundID        string     `json:"merchantRefundId"`
	OriginalMerchantOrderID string     `json:"originalMerchantOrderId"`
	RefundID                string     `json:"refundId"`
	Amount                  int64      `json:"amount"`
	State                   OrderState `json:"state"`
	ErrorCode               string     `json:"errorCode,omitempty"`
}
