package payment

import (
	"strings"
	"time"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/core/common/validation"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	paymentgatewaytypes "github.com/frahmantamala/booking-ledger/internal/core/datamodel/paymentgateway"
)

const dateLayout = "2006-01-02"

const (
	PaymentTypeFull    = "full"
	PaymentTypePartial = "partial"
)

// InitiateBookingRequest pays for a new stay. Amount is whole rupees and only
// read for partial payments; it defaults to one month of rent.
type InitiateBookingRequest struct {
	RateCardID     int64  `json:"rateCardId"`
	CheckInDate    string `json:"checkInDate"`
	DurationMonths int    `json:"durationMonths"`
	PaymentType    string `json:"paymentType"`
	Amount         int64  `json:"amount,omitempty"`
}

func (r *InitiateBookingRequest) Validate() *internal.AppError {
	r.PaymentType = strings.ToLower(strings.TrimSpace(r.PaymentType))
	if r.PaymentType == "" {
		r.PaymentType = PaymentTypeFull
	}

	v := validation.NewValidator()
	v.Field("rateCardId", r.RateCardID).Required().Positive(internal.ErrCodeValidationFailed)
	v.Field("checkInDate", r.CheckInDate).Required().Custom(func(value interface{}) *internal.AppError {
		if _, err := time.Parse(dateLayout, r.CheckInDate); err != nil && r.CheckInDate != "" {
			return internal.NewValidationFieldError("checkInDate", "checkInDate must be YYYY-MM-DD", internal.ErrCodeInvalidDate)
		}
		return nil
	})
	v.Field("paymentType", r.PaymentType).Custom(func(value interface{}) *internal.AppError {
		if r.PaymentType != PaymentTypeFull && r.PaymentType != PaymentTypePartial {
			return internal.NewValidationFieldError("paymentType", "paymentType must be full or partial", internal.ErrCodeValidationFailed)
		}
		return nil
	})
	v.Field("amount", r.Amount).MinInt(0, internal.ErrCodeInvalidAmount)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return validation.ValidateStay(r.CheckIn(), r.DurationMonths)
}

func (r *InitiateBookingRequest) CheckIn() time.Time {
	t, _ := time.Parse(dateLayout, r.CheckInDate)
	return t.UTC()
}

// PayBalanceRequest Amount is whole rupees and defaults to the remaining
// balance.
type PayBalanceRequest struct {
	Amount int64 `json:"amount,omitempty"`
}

func (r *PayBalanceRequest) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("amount", r.Amount).MinInt(0, internal.ErrCodeInvalidAmount)
	return v.Validate()
}

type ExtensionRequest struct {
	AdditionalMonths int `json:"additionalMonths"`
}

func (r *ExtensionRequest) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("additionalMonths", r.AdditionalMonths).
		Required().
		Positive(internal.ErrCodeValidationFailed).
		MaxInt(12, internal.ErrCodeValidationFailed)
	return v.Validate()
}

// RefundRequest Amount is in paise.
type RefundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (r *RefundRequest) Validate() *internal.AppError {
	if appErr := validation.ValidatePaymentAmount("amount", r.Amount); appErr != nil {
		return appErr
	}
	v := validation.NewValidator()
	v.Field("reason", r.Reason).MaxLength(255)
	return v.Validate()
}

// InitiatePaymentResponse Amount is in paise.
type InitiatePaymentResponse struct {
	TransactionID   int64                      `json:"transactionId"`
	MerchantOrderID string                     `json:"merchantOrderId"`
	Type            ledgerdm.TransactionType   `json:"type"`
	Amount          int64                      `json:"amount"`
	Status          ledgerdm.TransactionStatus `json:"status"`
	RedirectURL     string                     `json:"redirectUrl"`
	ExpiresAt       *time.Time                 `json:"expiresAt,omitempty"`
}

type OrderStatusResponse struct {
	MerchantOrderID string                         `json:"merchantOrderId"`
	GatewayOrderID  string                         `json:"gatewayOrderId,omitempty"`
	GatewayState    paymentgatewaytypes.OrderState `json:"gatewayState"`
	LedgerStatus    ledgerdm.TransactionStatus     `json:"ledgerStatus"`
	Amount          int64                          `json:"amount"`
	ErrorCode       string                         `json:"errorCode,omitempty"`
}

type RefundResponse struct {
	TransactionID           int64                      `json:"transactionId"`
	MerchantRefundID        string                     `json:"merchantRefundId"`
	OriginalMerchantOrderID string                     `json:"originalMerchantOrderId"`
	Amount                  int64                      `json:"amount"`
	Status                  ledgerdm.TransactionStatus `json:"status"`
}

type WebhookResponse struct {
	Status  string `json:"status"`
	Event   string `json:"event"`
	Outcome string `json:"outcome"`
}
