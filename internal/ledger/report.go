package ledger

import (
	"context"
	"time"
)

// AttentionItem is a settled payment that produced no booking effect and
// needs an operator to refund or resolve it by hand.
type AttentionItem struct {
	TransactionID          int64     `db:"id" json:"transactionId"`
	UserID                 int64     `db:"user_id" json:"userId"`
	MerchantOrderID        string    `db:"merchant_order_id" json:"merchantOrderId"`
	Amount                 int64     `db:"amount" json:"amount"`
	Type                   string    `db:"type" json:"type"`
	OverlapBookingID       *int64    `db:"overlap_booking_id" json:"overlapBookingId,omitempty"`
	SnapshotRejectedReason *string   `db:"snapshot_rejected_reason" json:"snapshotRejectedReason,omitempty"`
	RefundedAmount         int64     `db:"refunded_amount" json:"refundedAmount"`
	CreatedAt              time.Time `db:"created_at" json:"createdAt"`
}

func (a AttentionItem) Reason() string {
	if a.OverlapBookingID != nil {
		return "overlap"
	}
	return "snapshot_rejected"
}

type ReportReader interface {
	ListAttention(ctx context.Context, limit int) ([]AttentionItem, error)
}
