package booking

import (
	"context"

	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	roomdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/room"
)

// Repository persists bookings, rooms and their allocations. ForUpdate
// methods take a row lock and must run inside a database.TxManager
// transaction. Missing rows are reported as internal.ErrBookingNotFound,
// internal.ErrRoomNotFound or internal.ErrRateCardNotFound.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*bookingdm.Booking, error)
	GetForUpdate(ctx context.Context, id int64) (*bookingdm.Booking, error)
	GetWithRoomAndProperty(ctx context.Context, id int64) (*bookingdm.Booking, error)
	Create(ctx context.Context, b *bookingdm.Booking) error
	Save(ctx context.Context, b *bookingdm.Booking) error
	ListLiveByUser(ctx context.Context, userID int64, forUpdate bool) ([]*bookingdm.Booking, error)
	CountLiveByRoom(ctx context.Context, roomID, excludeBookingID int64) (int, error)

	GetRoomForUpdate(ctx context.Context, id int64) (*roomdm.Room, error)
	SaveRoom(ctx context.Context, room *roomdm.Room) error
	GetRateCard(ctx context.Context, id int64) (*roomdm.RateCard, error)

	GetInventoryItemsForUpdate(ctx context.Context, ids []int64) ([]*roomdm.InventoryItem, error)
	SaveInventoryItem(ctx context.Context, item *roomdm.InventoryItem) error
	ListInventoryAllocations(ctx context.Context, bookingID int64) ([]*bookingdm.BookingInventoryItem, error)
	CreateInventoryAllocation(ctx context.Context, alloc *bookingdm.BookingInventoryItem) error

	// GetExtensionByTransactionID returns nil without error when the payment
	// has not produced an extension yet.
	GetExtensionByTransactionID(ctx context.Context, transactionID int64) (*bookingdm.BookingExtension, error)
	CreateExtension(ctx context.Context, ext *bookingdm.BookingExtension) error
}

// TransactionStore is the slice of the ledger the materializer writes to.
type TransactionStore interface {
	GetTransactionForUpdate(ctx context.Context, id int64) (*ledgerdm.PaymentTransaction, error)
	SaveTransaction(ctx context.Context, txn *ledgerdm.PaymentTransaction) error
}

type BalanceReconciler interface {
	RecomputeBookingTotals(ctx context.Context, bookingID int64) (*bookingdm.Booking, error)
}
