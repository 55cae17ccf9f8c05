package ledger

import "time"

type TransactionType string

const (
	TypeInitial   TransactionType = "INITIAL"
	TypeExtension TransactionType = "EXTENSION"
	TypeRefund    TransactionType = "REFUND"
)

type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING"
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
	StatusExpired TransactionStatus = "EXPIRED"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusExpired
}

// PaymentTransaction is one row of the payment ledger. Amount is in paise.
// INITIAL and EXTENSION rows are charges, REFUND rows reverse part of a
// charge identified by OriginalMerchantOrderID.
type PaymentTransaction struct {
	ID              int64             `gorm:"primaryKey" json:"id"`
	UserID          int64             `gorm:"column:user_id;not null;index" json:"userId"`
	MerchantOrderID string            `gorm:"column:merchant_order_id;not null;uniqueIndex" json:"merchantOrderId"`
	GatewayOrderID  *string           `gorm:"column:gateway_order_id;index" json:"gatewayOrderId,omitempty"`
	Amount          int64             `gorm:"column:amount;not null" json:"amount"`
	Type            TransactionType   `gorm:"column:type;not null" json:"type"`
	Status          TransactionStatus `gorm:"column:status;not null;index" json:"status"`
	BookingID       *int64            `gorm:"column:booking_id;index" json:"bookingId,omitempty"`
	RedirectURL     *string           `gorm:"column:redirect_url" json:"redirectUrl,omitempty"`

	PendingBookingData *PendingBookingSnapshot `gorm:"column:pending_booking_data;serializer:json" json:"pendingBookingData,omitempty"`
	ExtensionData      *ExtensionSnapshot      `gorm:"column:extension_data;serializer:json" json:"extensionData,omitempty"`

	MerchantRefundID        *string `gorm:"column:merchant_refund_id;uniqueIndex" json:"merchantRefundId,omitempty"`
	GatewayRefundID         *string `gorm:"column:gateway_refund_id;index" json:"gatewayRefundId,omitempty"`
	OriginalMerchantOrderID *string `gorm:"column:original_merchant_order_id;index" json:"originalMerchantOrderId,omitempty"`

	WebhookProcessedAt         *time.Time `gorm:"column:webhook_processed_at" json:"webhookProcessedAt,omitempty"`
	BookingSkippedDueToOverlap bool       `gorm:"column:booking_skipped_due_to_overlap;not null;default:false" json:"bookingSkippedDueToOverlap"`
	OverlapBookingID           *int64     `gorm:"column:overlap_booking_id" json:"overlapBookingId,omitempty"`
	SnapshotRejectedReason     *string    `gorm:"column:snapshot_rejected_reason" json:"snapshotRejectedReason,omitempty"`
	RefundNotifiedAt           *time.Time `gorm:"column:refund_notified_at" json:"refundNotifiedAt,omitempty"`
	FailureReason              *string    `gorm:"column:failure_reason" json:"failureReason,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

func (t *PaymentTransaction) IsCharge() bool {
	return t.Type == TypeInitial || t.Type == TypeExtension
}

// Processed reports whether the success path has already run for this row.
func (t *PaymentTransaction) Processed() bool {
	return t.Status == StatusSuccess && t.WebhookProcessedAt != nil
}

// NeedsAttention reports rows that were paid but produced no booking effect.
func (t *PaymentTransaction) NeedsAttention() bool {
	return t.BookingSkippedDueToOverlap || t.SnapshotRejectedReason != nil
}
