package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/booking-ledger/internal"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
)

var ErrNotRefundable = internal.NewBusinessRuleError("only settled charges can be refunded", internal.ErrCodeNotRefundable)

// RefundInfo amounts are in paise.
type RefundInfo struct {
	TransactionID   int64  `json:"transactionId"`
	MerchantOrderID string `json:"merchantOrderId"`
	Paid            int64  `json:"paid"`
	Refunded        int64  `json:"refunded"`
	PendingRefunds  int64  `json:"pendingRefunds"`
	MaxRefundable   int64  `json:"maxRefundable"`
}

type ServiceAPI interface {
	RefundInfo(ctx context.Context, user *internal.User, transactionID int64) (*RefundInfo, error)
	AttentionReport(ctx context.Context, limit int) ([]AttentionItem, error)
}

type Service struct {
	repo   Repository
	report ReportReader
	logger *slog.Logger
}

func NewService(repo Repository, report ReportReader, logger *slog.Logger) *Service {
	return &Service{repo: repo, report: report, logger: logger}
}

// RefundInfo reports how much of a charge can still be refunded. Callers
// other than admins only see their own transactions.
func (s *Service) RefundInfo(ctx context.Context, user *internal.User, transactionID int64) (*RefundInfo, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if user != nil && !user.IsAdmin() && txn.UserID != user.ID {
		return nil, internal.ErrTransactionNotFound
	}
	return s.Refundable(ctx, txn)
}

// Refundable computes the refund position of txn. Pending refunds count
// against the limit so two concurrent refund requests cannot both pass.
func (s *Service) Refundable(ctx context.Context, txn *ledgerdm.PaymentTransaction) (*RefundInfo, error) {
	if !txn.IsCharge() {
		return nil, ErrNotRefundable
	}

	info := &RefundInfo{
		TransactionID:   txn.ID,
		MerchantOrderID: txn.MerchantOrderID,
	}
	if txn.Status == ledgerdm.StatusSuccess {
		info.Paid = txn.Amount
	}

	refunds, err := s.repo.SumRefunds(ctx, txn.MerchantOrderID)
	if err != nil {
		return nil, fmt.Errorf("sum refunds for %s: %w", txn.MerchantOrderID, err)
	}
	info.Refunded = refunds.Succeeded
	info.PendingRefunds = refunds.Pending

	if max := info.Paid - info.Refunded - info.PendingRefunds; max > 0 {
		info.MaxRefundable = max
	}
	return info, nil
}

func (s *Service) AttentionReport(ctx context.Context, limit int) ([]AttentionItem, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.report.ListAttention(ctx, limit)
}
