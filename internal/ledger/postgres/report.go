package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/booking-ledger/internal/ledger"
)

// ReportRepository serves read-only operator reports with hand written SQL.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

var _ ledger.ReportReader = (*ReportRepository)(nil)

const attentionQuery = `
SELECT t.id, t.user_id, t.merchant_order_id, t.amount, t.type,
       t.overlap_booking_id, t.snapshot_rejected_reason, t.created_at,
       COALESCE((SELECT SUM(r.amount) FROM payment_transactions r
                 WHERE r.type = 'REFUND' AND r.status = 'SUCCESS'
                   AND r.original_merchant_order_id = t.merchant_order_id), 0) AS refunded_amount
FROM payment_transactions t
WHERE t.status = 'SUCCESS'
  AND (t.booking_skipped_due_to_overlap = ? OR t.snapshot_rejected_reason IS NOT NULL)
ORDER BY t.created_at ASC, t.id ASC
LIMIT ?`

// ListAttention lists settled payments that created no booking, oldest first.
func (r *ReportRepository) ListAttention(ctx context.Context, limit int) ([]ledger.AttentionItem, error) {
	items := []ledger.AttentionItem{}
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(attentionQuery), true, limit); err != nil {
		return nil, err
	}
	return items, nil
}
