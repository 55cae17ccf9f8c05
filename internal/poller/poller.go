package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	paymentgatewaytypes "github.com/frahmantamala/booking-ledger/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/booking-ledger/internal/payment"
	"github.com/frahmantamala/booking-ledger/internal/paymentgateway"
)

type Store interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*ledgerdm.PaymentTransaction, error)
}

type StatusGateway interface {
	OrderStatus(ctx context.Context, merchantOrderID string) (*paymentgatewaytypes.OrderStatusResponse, error)
	RefundStatus(ctx context.Context, merchantRefundID string) (*paymentgatewaytypes.RefundStatusResponse, error)
}

type EventProcessor interface {
	Process(ctx context.Context, ev payment.Event) (*payment.Result, error)
}

type Config struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	ExpireAfter  time.Duration
	BatchSize    int
	MaxWorkers   int
	JobQueueSize int
	CheckTimeout time.Duration
}

// Poller finds ledger rows still PENDING after StaleAfter, asks the gateway
// for their state and feeds the answer through the webhook processor. Charges
// still pending at the gateway after ExpireAfter are expired locally.
type Poller struct {
	store     Store
	gateway   StatusGateway
	processor EventProcessor
	registry  *Registry
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	jobQueue   chan Job
	workerPool chan chan Job

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(store Store, gateway StatusGateway, processor EventProcessor, cfg Config, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = 30 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.JobQueueSize <= 0 {
		cfg.JobQueueSize = 100
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 30 * time.Second
	}

	return &Poller{
		store:      store,
		gateway:    gateway,
		processor:  processor,
		registry:   NewRegistry(),
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		jobQueue:   make(chan Job, cfg.JobQueueSize),
		workerPool: make(chan chan Job, cfg.MaxWorkers),
	}
}

// Start launches the workers, the dispatcher and the sweep ticker. Calling
// Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.cfg.MaxWorkers; i++ {
		NewWorker(i, p.workerPool, p.logger).Start(ctx, &p.wg, func(job Job) { p.handle(ctx, job) })
	}

	p.wg.Add(2)
	go p.dispatch(ctx)
	go p.loop(ctx)

	p.logger.Info("status poller started",
		"interval", p.cfg.Interval,
		"stale_after", p.cfg.StaleAfter,
		"expire_after", p.cfg.ExpireAfter,
		"max_workers", p.cfg.MaxWorkers,
		"queue_size", cap(p.jobQueue))
}

// Stop cancels the sweep loop and waits for in-flight checks to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	p.logger.Info("shutting down status poller")
	cancel()
	p.wg.Wait()
	p.logger.Info("status poller shutdown complete")
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.Sweep(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("status poll sweep failed", "error", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) dispatch(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-ctx.Done():
					p.registry.Release(job.MerchantOrderID)
					return
				}
			case <-ctx.Done():
				p.registry.Release(job.MerchantOrderID)
				return
			}
		case <-ctx.Done():
			p.logger.Info("status poller dispatcher shutting down")
			return
		}
	}
}

// Sweep queues every stale pending row that is not already being checked and
// returns how many were queued.
func (p *Poller) Sweep(ctx context.Context) (int, error) {
	stale, err := p.store.ListStalePending(ctx, p.now().Add(-p.cfg.StaleAfter), p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale pending transactions: %w", err)
	}

	queued := 0
	for _, txn := range stale {
		if !p.registry.TryAcquire(txn.MerchantOrderID) {
			continue
		}
		select {
		case p.jobQueue <- jobFor(txn):
			queued++
		default:
			p.registry.Release(txn.MerchantOrderID)
			p.logger.Warn("status poll queue full, deferring to next sweep",
				"merchant_order_id", txn.MerchantOrderID,
				"queue_capacity", cap(p.jobQueue))
		}
	}

	if queued > 0 {
		p.logger.Info("status poll sweep queued transactions", "queued", queued, "stale", len(stale))
	}
	return queued, nil
}

func (p *Poller) handle(ctx context.Context, job Job) {
	defer p.registry.Release(job.MerchantOrderID)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
	defer cancel()

	result, err := p.Check(ctx, job)
	if err != nil {
		p.logger.Warn("status check failed, will retry on next sweep",
			"merchant_order_id", job.MerchantOrderID,
			"error", err)
		return
	}
	p.logger.Info("status check applied",
		"merchant_order_id", job.MerchantOrderID,
		"event", result.Event,
		"outcome", result.Outcome)
}

// Check asks the gateway about one row and applies the answer.
func (p *Poller) Check(ctx context.Context, job Job) (*payment.Result, error) {
	var (
		ev  payment.Event
		err error
	)
	if job.Type == ledgerdm.TypeRefund {
		ev, err = p.refundEvent(ctx, job)
	} else {
		ev, err = p.orderEvent(ctx, job)
	}
	if err != nil {
		return nil, err
	}
	return p.processor.Process(ctx, ev)
}

func (p *Poller) orderEvent(ctx context.Context, job Job) (payment.Event, error) {
	expired := p.now().Sub(job.CreatedAt) >= p.cfg.ExpireAfter

	status, err := p.gateway.OrderStatus(ctx, job.MerchantOrderID)
	if err != nil {
		if expired && errors.Is(err, paymentgateway.ErrGatewayRejected) {
			return p.expire(job, "", "order unknown to the gateway"), nil
		}
		return nil, err
	}

	if status.State == paymentgatewaytypes.StatePending && expired {
		return p.expire(job, status.OrderID, "no payment before local expiry"), nil
	}

	return payment.Classify(payment.Notification{
		Payload: payment.NotificationPayload{
			State:           string(status.State),
			MerchantOrderID: job.MerchantOrderID,
			OrderID:         status.OrderID,
			Amount:          status.Amount,
			ErrorCode:       status.ErrorCode,
		},
	}), nil
}

func (p *Poller) refundEvent(ctx context.Context, job Job) (payment.Event, error) {
	status, err := p.gateway.RefundStatus(ctx, job.MerchantOrderID)
	if err != nil {
		return nil, err
	}

	merchantRefundID := status.MerchantRefundID
	if merchantRefundID == "" {
		merchantRefundID = job.MerchantOrderID
	}
	return payment.Classify(payment.Notification{
		Payload: payment.NotificationPayload{
			State:                   string(status.State),
			MerchantRefundID:        merchantRefundID,
			RefundID:                status.RefundID,
			OriginalMerchantOrderID: status.OriginalMerchantOrderID,
			Amount:                  status.Amount,
			ErrorCode:               status.ErrorCode,
		},
	}), nil
}

func (p *Poller) expire(job Job, gatewayOrderID, reason string) payment.Event {
	p.logger.Info("expiring pending transaction",
		"transaction_id", job.TransactionID,
		"merchant_order_id", job.MerchantOrderID,
		"age", p.now().Sub(job.CreatedAt),
		"reason", reason)
	return payment.OrderFailure{
		MerchantOrderID: job.MerchantOrderID,
		GatewayOrderID:  gatewayOrderID,
		Status:          ledgerdm.StatusExpired,
		Reason:          reason,
	}
}
