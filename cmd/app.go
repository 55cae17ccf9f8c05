package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/booking"
	bookingpg "github.com/frahmantamala/booking-ledger/internal/booking/postgres"
	"github.com/frahmantamala/booking-ledger/internal/core/database"
	"github.com/frahmantamala/booking-ledger/internal/core/events"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
	ledgerpg "github.com/frahmantamala/booking-ledger/internal/ledger/postgres"
	"github.com/frahmantamala/booking-ledger/internal/notification"
	"github.com/frahmantamala/booking-ledger/internal/payment"
	"github.com/frahmantamala/booking-ledger/internal/paymentgateway"
)

// Dependencies is everything the server and the worker share. Both build it
// the same way so a webhook and a poller check run the identical pipeline.
type Dependencies struct {
	Config *internal.Config
	Logger *slog.Logger

	DB    *gorm.DB
	SQL   *sql.DB
	SQLX  *sqlx.DB
	Tx    database.TxManager
	Bus   *events.EventBus
	Redis *notification.RedisPublisher

	LedgerRepo  *ledgerpg.LedgerRepository
	BookingRepo *bookingpg.BookingRepository

	Gateway    *paymentgateway.Client
	Processor  *payment.Processor
	Ledger     *ledger.Service
	Payments   *payment.Service
	Allocation *booking.AllocationManager
}

func initializeDependencies(ctx context.Context, cfg *internal.Config, lg *slog.Logger) (*Dependencies, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	reportDB, err := database.SQLX(db, "pgx")
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: lg,
		DB:     db,
		SQL:    sqlDB,
		SQLX:   reportDB,
		Tx:     database.NewTransactionManager(db, database.WithTxOptions(cfg.Database.TxOptions())),
		Bus:    events.NewEventBus(lg),
	}

	if err := deps.initNotifications(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	deps.LedgerRepo = ledgerpg.NewLedgerRepository(db)
	deps.BookingRepo = bookingpg.NewBookingRepository(db)

	reconciler := ledger.NewReconciler(deps.Tx, deps.LedgerRepo, lg)
	materializer := booking.NewMaterializer(deps.Tx, deps.BookingRepo, deps.LedgerRepo, reconciler, lg)
	refunds := payment.NewRefundHandler(deps.LedgerRepo, reconciler, lg)
	extensions := payment.NewExtensionProcessor(deps.BookingRepo, deps.LedgerRepo, lg)

	deps.Processor = payment.NewProcessor(deps.Tx, deps.LedgerRepo, materializer, reconciler, refunds, extensions, deps.Bus, lg)
	deps.Gateway = paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		AuthURL:        cfg.Gateway.AuthURL,
		ClientID:       cfg.Gateway.ClientID,
		ClientSecret:   cfg.Gateway.ClientSecret,
		ClientVersion:  cfg.Gateway.ClientVersion,
		RequestTimeout: cfg.Gateway.RequestTimeout,
	}, lg)

	deps.Ledger = ledger.NewService(deps.LedgerRepo, ledgerpg.NewReportRepository(reportDB), lg)
	deps.Payments = payment.NewService(deps.Tx, deps.LedgerRepo, deps.BookingRepo, deps.Ledger, deps.Gateway, payment.Config{
		RedirectURL: cfg.Gateway.RedirectURL,
		OrderExpiry: cfg.Gateway.OrderExpiry,
	}, lg)
	deps.Allocation = booking.NewAllocationManager(deps.Tx, deps.BookingRepo, lg)

	return deps, nil
}

// initNotifications forwards committed domain events to Redis, or to the log
// when Redis is disabled.
func (d *Dependencies) initNotifications(ctx context.Context) error {
	var publisher notification.Publisher = notification.LogPublisher{Logger: d.Logger}
	if d.Config.Redis.Enabled {
		redisPublisher, err := notification.NewRedisPublisher(ctx, d.Config.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		d.Redis = redisPublisher
		publisher = redisPublisher
	}

	notification.NewNotifier(publisher, d.Config.Redis.Channel, d.Logger).Register(d.Bus)
	return nil
}

// Close waits for in-flight event handlers before releasing connections.
func (d *Dependencies) Close(ctx context.Context) {
	if err := d.Bus.Drain(ctx); err != nil {
		d.Logger.Warn("event handlers still running at shutdown", "error", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.SQL.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}
