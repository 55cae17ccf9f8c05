package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/booking"
	"github.com/frahmantamala/booking-ledger/internal/core/common/validation"
	"github.com/frahmantamala/booking-ledger/internal/core/database"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	paymentgatewaytypes "github.com/frahmantamala/booking-ledger/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/booking-ledger/internal/core/money"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
	"github.com/frahmantamala/booking-ledger/internal/paymentgateway"
)

var ErrBookingNotPayable = internal.NewBusinessRuleError("booking does not accept payments in its current status", internal.ErrCodeInvalidBookingState)

type ServiceAPI interface {
	InitiateBooking(ctx context.Context, user *internal.User, req InitiateBookingRequest) (*InitiatePaymentResponse, error)
	PayBalance(ctx context.Context, user *internal.User, bookingID int64, req PayBalanceRequest) (*InitiatePaymentResponse, error)
	RequestExtension(ctx context.Context, user *internal.User, bookingID int64, req ExtensionRequest) (*InitiatePaymentResponse, error)
	OrderStatus(ctx context.Context, user *internal.User, merchantOrderID string) (*OrderStatusResponse, error)
	InitiateRefund(ctx context.Context, admin *internal.User, transactionID int64, req RefundRequest) (*RefundResponse, error)
}

type Config struct {
	RedirectURL string
	OrderExpiry time.Duration
}

// Service starts payments. Each initiation writes a PENDING ledger row in its
// own transaction, then calls the gateway with no transaction open.
type Service struct {
	tx       database.TxManager
	ledger   ledger.Repository
	bookings booking.Repository
	refunds  RefundCalculator
	gateway  Gateway
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(
	tx database.TxManager,
	ledgerRepo ledger.Repository,
	bookings booking.Repository,
	refunds RefundCalculator,
	gateway Gateway,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		tx:       tx,
		ledger:   ledgerRepo,
		bookings: bookings,
		refunds:  refunds,
		gateway:  gateway,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) InitiateBooking(ctx context.Context, user *internal.User, req InitiateBookingRequest) (*InitiatePaymentResponse, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	rateCard, err := s.bookings.GetRateCard(ctx, req.RateCardID)
	if err != nil {
		return nil, err
	}
	if !rateCard.IsActive {
		return nil, internal.ErrRateCardNotFound
	}

	checkIn := req.CheckIn()
	checkOut := checkIn.AddDate(0, req.DurationMonths, 0)
	total := rateCard.MonthlyRent * int64(req.DurationMonths)

	if err := s.checkOverlap(ctx, user.ID, booking.NewWindow(checkIn, &checkOut), 0); err != nil {
		return nil, err
	}

	amount := total
	kind := orderKindFull
	if req.PaymentType == PaymentTypePartial {
		amount = req.Amount
		if amount == 0 {
			amount = rateCard.MonthlyRent
		}
		if amount > total {
			return nil, internal.NewValidationError("amount exceeds the booking total", internal.ErrCodeAmountTooHigh)
		}
		if amount < total {
			kind = orderKindPartial
		}
	}

	txn := &ledgerdm.PaymentTransaction{
		UserID:          user.ID,
		MerchantOrderID: NewMerchantOrderID(0, kind, s.now()),
		Amount:          money.ToMinor(amount),
		Type:            ledgerdm.TypeInitial,
		Status:          ledgerdm.StatusPending,
		PendingBookingData: &ledgerdm.PendingBookingSnapshot{
			Version:        ledgerdm.PendingBookingSnapshotVersion,
			PropertyID:     rateCard.PropertyID,
			RateCardID:     rateCard.ID,
			RoomType:       rateCard.RoomType,
			CheckInDate:    checkIn,
			CheckOutDate:   checkOut,
			DurationMonths: req.DurationMonths,
			MonthlyRent:    rateCard.MonthlyRent,
			TotalAmount:    total,
		},
	}
	return s.startPayment(ctx, txn)
}

// PayBalance charges part or all of an existing booking's remaining amount.
func (s *Service) PayBalance(ctx context.Context, user *internal.User, bookingID int64, req PayBalanceRequest) (*InitiatePaymentResponse, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	b, err := s.ownedBooking(ctx, user, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Status.IsLive() {
		return nil, ErrBookingNotPayable
	}
	if b.RemainingAmount <= 0 {
		return nil, internal.ErrBookingSettled
	}

	amount := req.Amount
	if amount == 0 {
		amount = b.RemainingAmount
	}
	if amount > b.RemainingAmount {
		return nil, internal.NewValidationError("amount exceeds the remaining balance", internal.ErrCodeAmountTooHigh)
	}
	kind := orderKindFull
	if amount < b.RemainingAmount {
		kind = orderKindPartial
	}

	txn := &ledgerdm.PaymentTransaction{
		UserID:          user.ID,
		MerchantOrderID: NewMerchantOrderID(b.ID, kind, s.now()),
		Amount:          money.ToMinor(amount),
		Type:            ledgerdm.TypeInitial,
		Status:          ledgerdm.StatusPending,
		BookingID:       &b.ID,
	}
	return s.startPayment(ctx, txn)
}

// RequestExtension charges for moving a booking's checkout date out by whole
// months at the booking's monthly rent.
func (s *Service) RequestExtension(ctx context.Context, user *internal.User, bookingID int64, req ExtensionRequest) (*InitiatePaymentResponse, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	b, err := s.ownedBooking(ctx, user, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Status.IsLive() {
		return nil, ErrBookingNotPayable
	}
	if b.CheckOutDate == nil {
		return nil, internal.NewBusinessRuleError("an open-ended booking cannot be extended", internal.ErrCodeInvalidBookingState)
	}

	current := *b.CheckOutDate
	proposed := current.AddDate(0, req.AdditionalMonths, 0)
	if err := s.checkOverlap(ctx, user.ID, booking.NewWindow(current, &proposed), b.ID); err != nil {
		return nil, err
	}

	additional := b.MonthlyRent * int64(req.AdditionalMonths)
	txn := &ledgerdm.PaymentTransaction{
		UserID:          user.ID,
		MerchantOrderID: NewMerchantOrderID(b.ID, orderKindExtension, s.now()),
		Amount:          money.ToMinor(additional),
		Type:            ledgerdm.TypeExtension,
		Status:          ledgerdm.StatusPending,
		BookingID:       &b.ID,
		ExtensionData: &ledgerdm.ExtensionSnapshot{
			Version:              ledgerdm.ExtensionSnapshotVersion,
			CurrentCheckOutDate:  current,
			ProposedCheckOutDate: proposed,
			AdditionalMonths:     req.AdditionalMonths,
			AdditionalAmount:     additional,
		},
	}
	return s.startPayment(ctx, txn)
}

// OrderStatus asks the gateway about an order without changing the ledger.
func (s *Service) OrderStatus(ctx context.Context, user *internal.User, merchantOrderID string) (*OrderStatusResponse, error) {
	txn, err := s.ledger.GetByMerchantOrderID(ctx, merchantOrderID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() && txn.UserID != user.ID {
		return nil, internal.ErrTransactionNotFound
	}

	status, err := s.gateway.OrderStatus(ctx, merchantOrderID)
	if err != nil {
		return nil, gatewayError(err)
	}

	return &OrderStatusResponse{
		MerchantOrderID: txn.MerchantOrderID,
		GatewayOrderID:  status.OrderID,
		GatewayState:    status.State,
		LedgerStatus:    txn.Status,
		Amount:          txn.Amount,
		ErrorCode:       status.ErrorCode,
	}, nil
}

// InitiateRefund records a PENDING refund against a settled charge and asks
// the gateway to pay it out. The charge row stays locked while the refundable
// amount is checked, so concurrent refunds cannot exceed it together.
func (s *Service) InitiateRefund(ctx context.Context, admin *internal.User, transactionID int64, req RefundRequest) (*RefundResponse, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	var refund *ledgerdm.PaymentTransaction
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		original, err := s.ledger.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if !original.IsCharge() || original.Status != ledgerdm.StatusSuccess {
			return ledger.ErrNotRefundable
		}

		info, err := s.refunds.Refundable(ctx, original)
		if err != nil {
			return err
		}
		if req.Amount > info.MaxRefundable {
			return internal.NewValidationError(
				fmt.Sprintf("amount exceeds the refundable %d paise", info.MaxRefundable),
				internal.ErrCodeRefundTooHigh)
		}

		merchantRefundID := NewMerchantRefundID()
		refund = &ledgerdm.PaymentTransaction{
			UserID:                  original.UserID,
			MerchantOrderID:         merchantRefundID,
			MerchantRefundID:        &merchantRefundID,
			OriginalMerchantOrderID: &original.MerchantOrderID,
			Amount:                  req.Amount,
			Type:                    ledgerdm.TypeRefund,
			Status:                  ledgerdm.StatusPending,
			BookingID:               original.BookingID,
		}
		s.logger.Info("refund requested",
			"transaction_id", original.ID,
			"amount", req.Amount,
			"max_refundable", info.MaxRefundable,
			"reason", req.Reason,
			"admin_id", admin.ID)
		return s.ledger.CreateTransaction(ctx, refund)
	})
	if err != nil {
		return nil, err
	}

	resp := &RefundResponse{
		TransactionID:           refund.ID,
		MerchantRefundID:        *refund.MerchantRefundID,
		OriginalMerchantOrderID: *refund.OriginalMerchantOrderID,
		Amount:                  refund.Amount,
		Status:                  ledgerdm.StatusPending,
	}

	gwResp, err := s.gateway.Refund(ctx, &paymentgatewaytypes.RefundRequest{
		MerchantRefundID: resp.MerchantRefundID,
		OriginalOrderID:  resp.OriginalMerchantOrderID,
		Amount:           refund.Amount,
	})
	if err != nil {
		return nil, s.handleGatewayFailure(ctx, refund, err)
	}

	if gwResp.RefundID != "" {
		if err := s.ledger.SetGatewayRefundID(ctx, refund.ID, gwResp.RefundID); err != nil {
			s.logger.Error("failed to record gateway refund id", "transaction_id", refund.ID, "error", err)
		}
	}

	s.logger.Info("refund initiated",
		"transaction_id", refund.ID,
		"merchant_refund_id", resp.MerchantRefundID,
		"original_merchant_order_id", resp.OriginalMerchantOrderID,
		"amount", refund.Amount,
		"gateway_state", gwResp.State,
		"admin_id", admin.ID)
	return resp, nil
}

// startPayment writes the PENDING row, commits, then creates the gateway
// order. A rejected order is marked FAILED. When the gateway cannot be reached
// the row stays PENDING for the status poller.
func (s *Service) startPayment(ctx context.Context, txn *ledgerdm.PaymentTransaction) (*InitiatePaymentResponse, error) {
	if appErr := validation.ValidatePaymentAmount("amount", txn.Amount); appErr != nil {
		return nil, appErr
	}

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.ledger.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction %s: %w", txn.MerchantOrderID, err)
	}

	req := &paymentgatewaytypes.CreatePaymentRequest{
		MerchantOrderID: txn.MerchantOrderID,
		Amount:          txn.Amount,
		RedirectURL:     s.cfg.RedirectURL,
	}
	if s.cfg.OrderExpiry > 0 {
		req.ExpireAfter = int64(s.cfg.OrderExpiry.Seconds())
	}

	resp, err := s.gateway.CreatePayment(ctx, req)
	if err != nil {
		return nil, s.handleGatewayFailure(ctx, txn, err)
	}

	if err := s.ledger.SetGatewayOrder(ctx, txn.ID, resp.OrderID, resp.RedirectURL); err != nil {
		s.logger.Error("failed to record gateway order", "transaction_id", txn.ID, "error", err)
	}

	s.logger.Info("payment initiated",
		"transaction_id", txn.ID,
		"merchant_order_id", txn.MerchantOrderID,
		"type", txn.Type,
		"amount", txn.Amount,
		"user_id", txn.UserID,
		"booking_id", txn.BookingID)

	out := &InitiatePaymentResponse{
		TransactionID:   txn.ID,
		MerchantOrderID: txn.MerchantOrderID,
		Type:            txn.Type,
		Amount:          txn.Amount,
		Status:          txn.Status,
		RedirectURL:     resp.RedirectURL,
	}
	if resp.ExpireAt > 0 {
		expiresAt := time.UnixMilli(resp.ExpireAt).UTC()
		out.ExpiresAt = &expiresAt
	}
	return out, nil
}

func (s *Service) handleGatewayFailure(ctx context.Context, txn *ledgerdm.PaymentTransaction, err error) error {
	if errors.Is(err, paymentgateway.ErrGatewayRejected) {
		if _, failErr := s.ledger.FailIfPending(ctx, txn.ID, err.Error()); failErr != nil {
			s.logger.Error("failed to mark rejected transaction", "transaction_id", txn.ID, "error", failErr)
		}
		s.logger.Warn("gateway rejected payment request",
			"transaction_id", txn.ID,
			"merchant_order_id", txn.MerchantOrderID,
			"error", err)
		return internal.NewExternalError("payment gateway rejected the request", internal.ErrCodePaymentFailed, err)
	}

	s.logger.Error("gateway call failed, transaction left pending",
		"transaction_id", txn.ID,
		"merchant_order_id", txn.MerchantOrderID,
		"error", err)
	return internal.NewExternalError("payment gateway unavailable, please retry", internal.ErrCodeGatewayUnavailable, err)
}

func (s *Service) ownedBooking(ctx context.Context, user *internal.User, bookingID int64) (*bookingdm.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != user.ID {
		return nil, internal.ErrBookingNotFound
	}
	return b, nil
}

// checkOverlap is the fast rejection at initiation. The materializer repeats
// it under lock when the payment lands.
func (s *Service) checkOverlap(ctx context.Context, userID int64, window booking.Window, excludeID int64) error {
	existing, err := s.bookings.ListLiveByUser(ctx, userID, false)
	if err != nil {
		return fmt.Errorf("list bookings for user %d: %w", userID, err)
	}
	if conflict := booking.FindOverlap(existing, window, excludeID); conflict != nil {
		s.logger.Info("payment rejected, stay overlaps an existing booking",
			"user_id", userID,
			"overlap_booking_id", conflict.ID)
		return internal.ErrOverlappingBooking
	}
	return nil
}

func gatewayError(err error) error {
	if errors.Is(err, paymentgateway.ErrGatewayRejected) {
		return internal.NewExternalError("payment gateway rejected the request", internal.ErrCodePaymentFailed, err)
	}
	return internal.NewExternalError("payment gateway unavailable, please retry", internal.ErrCodeGatewayUnavailable, err)
}

var _ ServiceAPI = (*Service)(nil)
