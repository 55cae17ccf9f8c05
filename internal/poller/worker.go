package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
)

// Job is one pending ledger row to reconcile against the gateway.
type Job struct {
	TransactionID   int64
	MerchantOrderID string
	Type            ledgerdm.TransactionType
	CreatedAt       time.Time
}

func jobFor(txn *ledgerdm.PaymentTransaction) Job {
	return Job{
		TransactionID:   txn.ID,
		MerchantOrderID: txn.MerchantOrderID,
		Type:            txn.Type,
		CreatedAt:       txn.CreatedAt,
	}
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

// Start registers the worker's channel with the pool each time it is idle
// and runs processFunc for every job it receives.
func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("poller worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("poller worker checking transaction",
					"worker_id", w.ID,
					"merchant_order_id", job.MerchantOrderID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("poller worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}
