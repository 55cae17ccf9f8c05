package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeBookingMaterialized   = "booking.materialized"
	EventTypeBookingOverlapSkipped = "booking.overlap_skipped"
	EventTypeRefundSucceeded       = "refund.succeeded"
	EventTypeExtensionRequested    = "extension.requested"
)

// DomainEventTypes lists every event the payment core publishes.
var DomainEventTypes = []string{
	EventTypeBookingMaterialized,
	EventTypeBookingOverlapSkipped,
	EventTypeRefundSucceeded,
	EventTypeExtensionRequested,
}

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type BookingMaterializedEvent struct {
	BaseEvent
	BookingID       int64  `json:"booking_id"`
	UserID          int64  `json:"user_id"`
	TransactionID   int64  `json:"transaction_id"`
	MerchantOrderID string `json:"merchant_order_id"`
}

func NewBookingMaterializedEvent(bookingID, userID, transactionID int64, merchantOrderID string) *BookingMaterializedEvent {
	return &BookingMaterializedEvent{
		BaseEvent: newBase(EventTypeBookingMaterialized, map[string]interface{}{
			"booking_id":        bookingID,
			"user_id":           userID,
			"transaction_id":    transactionID,
			"merchant_order_id": merchantOrderID,
		}),
		BookingID:       bookingID,
		UserID:          userID,
		TransactionID:   transactionID,
		MerchantOrderID: merchantOrderID,
	}
}

// BookingOverlapSkippedEvent is raised when a payment was captured but its
// booking was not created because the stay overlaps another live booking.
// An operator has to refund or resolve it.
type BookingOverlapSkippedEvent struct {
	BaseEvent
	TransactionID    int64  `json:"transaction_id"`
	UserID           int64  `json:"user_id"`
	MerchantOrderID  string `json:"merchant_order_id"`
	OverlapBookingID int64  `json:"overlap_booking_id"`
	Amount           int64  `json:"amount"`
}

func NewBookingOverlapSkippedEvent(transactionID, userID int64, merchantOrderID string, overlapBookingID, amount int64) *BookingOverlapSkippedEvent {
	return &BookingOverlapSkippedEvent{
		BaseEvent: newBase(EventTypeBookingOverlapSkipped, map[string]interface{}{
			"transaction_id":     transactionID,
			"user_id":            userID,
			"merchant_order_id":  merchantOrderID,
			"overlap_booking_id": overlapBookingID,
			"amount":             amount,
		}),
		TransactionID:    transactionID,
		UserID:           userID,
		MerchantOrderID:  merchantOrderID,
		OverlapBookingID: overlapBookingID,
		Amount:           amount,
	}
}

type RefundSucceededEvent struct {
	BaseEvent
	TransactionID           int64  `json:"transaction_id"`
	UserID                  int64  `json:"user_id"`
	MerchantRefundID        string `json:"merchant_refund_id"`
	OriginalMerchantOrderID string `json:"original_merchant_order_id"`
	Amount                  int64  `json:"amount"`
}

func NewRefundSucceededEvent(transactionID, userID int64, merchantRefundID, originalMerchantOrderID string, amount int64) *RefundSucceededEvent {
	return &RefundSucceededEvent{
		BaseEvent: newBase(EventTypeRefundSucceeded, map[string]interface{}{
			"transaction_id":             transactionID,
			"user_id":                    userID,
			"merchant_refund_id":         merchantRefundID,
			"original_merchant_order_id": originalMerchantOrderID,
			"amount":                     amount,
		}),
		TransactionID:           transactionID,
		UserID:                  userID,
		MerchantRefundID:        merchantRefundID,
		OriginalMerchantOrderID: originalMerchantOrderID,
		Amount:                  amount,
	}
}

type ExtensionRequestedEvent struct {
	BaseEvent
	ExtensionID          int64     `json:"extension_id"`
	BookingID            int64     `json:"booking_id"`
	TransactionID        int64     `json:"transaction_id"`
	ProposedCheckOutDate time.Time `json:"proposed_check_out_date"`
}

func NewExtensionRequestedEvent(extensionID, bookingID, transactionID int64, proposed time.Time) *ExtensionRequestedEvent {
	return &ExtensionRequestedEvent{
		BaseEvent: newBase(EventTypeExtensionRequested, map[string]interface{}{
			"extension_id":            extensionID,
			"booking_id":              bookingID,
			"transaction_id":          transactionID,
			"proposed_check_out_date": proposed.Format("2006-01-02"),
		}),
		ExtensionID:          extensionID,
		BookingID:            bookingID,
		TransactionID:        transactionID,
		ProposedCheckOutDate: proposed,
	}
}
