package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/core/database"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ ledger.Repository = (*LedgerRepository)(nil)

func (r *LedgerRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *LedgerRepository) CreateTransaction(ctx context.Context, txn *ledgerdm.PaymentTransaction) error {
	return r.conn(ctx).Create(txn).Error
}

func (r *LedgerRepository) SaveTransaction(ctx context.Context, txn *ledgerdm.PaymentTransaction) error {
	return r.conn(ctx).Save(txn).Error
}

func (r *LedgerRepository) GetTransaction(ctx context.Context, id int64) (*ledgerdm.PaymentTransaction, error) {
	var txn ledgerdm.PaymentTransaction
	if err := r.conn(ctx).First(&txn, id).Error; err != nil {
		return nil, txnErr(err)
	}
	return &txn, nil
}

func (r *LedgerRepository) GetTransactionForUpdate(ctx context.Context, id int64) (*ledgerdm.PaymentTransaction, error) {
	var txn ledgerdm.PaymentTransaction
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, id).Error
	if err != nil {
		return nil, txnErr(err)
	}
	return &txn, nil
}

func (r *LedgerRepository) GetByMerchantOrderID(ctx context.Context, merchantOrderID string) (*ledgerdm.PaymentTransaction, error) {
	var txn ledgerdm.PaymentTransaction
	err := r.conn(ctx).Where("merchant_order_id = ?", merchantOrderID).First(&txn).Error
	if err != nil {
		return nil, txnErr(err)
	}
	return &txn, nil
}

// FindByOrderRef matches on the merchant order id first and falls back to
// the gateway order id.
func (r *LedgerRepository) FindByOrderRef(ctx context.Context, merchantOrderID, gatewayOrderID string) (*ledgerdm.PaymentTransaction, error) {
	if merchantOrderID != "" {
		txn, err := r.GetByMerchantOrderID(ctx, merchantOrderID)
		if err == nil || !errors.Is(err, internal.ErrTransactionNotFound) {
			return txn, err
		}
	}
	if gatewayOrderID == "" {
		return nil, internal.ErrTransactionNotFound
	}

	var txn ledgerdm.PaymentTransaction
	err := r.conn(ctx).
		Where("gateway_order_id = ? AND type <> ?", gatewayOrderID, ledgerdm.TypeRefund).
		First(&txn).Error
	if err != nil {
		return nil, txnErr(err)
	}
	return &txn, nil
}

func (r *LedgerRepository) FindByRefundRef(ctx context.Context, merchantRefundID, gatewayRefundID string) (*ledgerdm.PaymentTransaction, error) {
	q := r.conn(ctx).Where("type = ?", ledgerdm.TypeRefund)
	switch {
	case merchantRefundID != "" && gatewayRefundID != "":
		q = q.Where("merchant_refund_id = ? OR gateway_refund_id = ?", merchantRefundID, gatewayRefundID)
	case merchantRefundID != "":
		q = q.Where("merchant_refund_id = ?", merchantRefundID)
	case gatewayRefundID != "":
		q = q.Where("gateway_refund_id = ?", gatewayRefundID)
	default:
		return nil, internal.ErrTransactionNotFound
	}

	var txn ledgerdm.PaymentTransaction
	if err := q.Order("id").First(&txn).Error; err != nil {
		return nil, txnErr(err)
	}
	return &txn, nil
}

func (r *LedgerRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*ledgerdm.PaymentTransaction, error) {
	var txns []*ledgerdm.PaymentTransaction
	err := r.conn(ctx).
		Where("status = ? AND created_at < ?", ledgerdm.StatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *LedgerRepository) SetGatewayOrder(ctx context.Context, id int64, gatewayOrderID, redirectURL string) error {
	updates := map[string]interface{}{}
	if gatewayOrderID != "" {
		updates["gateway_order_id"] = gatewayOrderID
	}
	if redirectURL != "" {
		updates["redirect_url"] = redirectURL
	}
	if len(updates) == 0 {
		return nil
	}
	return r.conn(ctx).
		Model(&ledgerdm.PaymentTransaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *LedgerRepository) SetGatewayRefundID(ctx context.Context, id int64, gatewayRefundID string) error {
	return r.conn(ctx).
		Model(&ledgerdm.PaymentTransaction{}).
		Where("id = ? AND gateway_refund_id IS NULL", id).
		Update("gateway_refund_id", gatewayRefundID).Error
}

// FailIfPending marks the row FAILED unless something already settled it.
func (r *LedgerRepository) FailIfPending(ctx context.Context, id int64, reason string) (bool, error) {
	res := r.conn(ctx).
		Model(&ledgerdm.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, ledgerdm.StatusPending).
		Updates(map[string]interface{}{
			"status":         ledgerdm.StatusFailed,
			"failure_reason": reason,
		})
	return res.RowsAffected > 0, res.Error
}

// SumBookingLedger sums settled charges of any kind and the refunds linked to
// the booking.
func (r *LedgerRepository) SumBookingLedger(ctx context.Context, bookingID int64) (ledger.Totals, error) {
	var row struct {
		Paid     int64
		Refunded int64
	}
	err := r.conn(ctx).
		Model(&ledgerdm.PaymentTransaction{}).
		Select(`COALESCE(SUM(CASE WHEN type <> ? THEN amount ELSE 0 END), 0) AS paid,
			COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS refunded`,
			ledgerdm.TypeRefund, ledgerdm.TypeRefund).
		Where("booking_id = ? AND status = ?", bookingID, ledgerdm.StatusSuccess).
		Scan(&row).Error
	if err != nil {
		return ledger.Totals{}, err
	}
	return ledger.Totals{Paid: row.Paid, Refunded: row.Refunded}, nil
}

func (r *LedgerRepository) SumRefunds(ctx context.Context, originalMerchantOrderID string) (ledger.RefundTotals, error) {
	var row struct {
		Succeeded int64
		Pending   int64
	}
	err := r.conn(ctx).
		Model(&ledgerdm.PaymentTransaction{}).
		Select(`COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS succeeded,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS pending`,
			ledgerdm.StatusSuccess, ledgerdm.StatusPending).
		Where("type = ? AND original_merchant_order_id = ?", ledgerdm.TypeRefund, originalMerchantOrderID).
		Scan(&row).Error
	if err != nil {
		return ledger.RefundTotals{}, err
	}
	return ledger.RefundTotals{Succeeded: row.Succeeded, Pending: row.Pending}, nil
}

func (r *LedgerRepository) GetBookingForUpdate(ctx context.Context, bookingID int64) (*bookingdm.Booking, error) {
	var b bookingdm.Booking
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, bookingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *LedgerRepository) UpdateBookingBalance(ctx context.Context, bookingID int64, balance ledger.Balance) error {
	return r.conn(ctx).
		Model(&bookingdm.Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"remaining_amount": balance.RemainingAmount,
			"payment_status":   balance.PaymentStatus,
		}).Error
}

func txnErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internal.ErrTransactionNotFound
	}
	return err
}
