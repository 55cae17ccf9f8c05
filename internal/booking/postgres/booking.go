package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/booking"
	"github.com/frahmantamala/booking-ledger/internal/core/database"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	roomdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/room"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

var _ booking.Repository = (*BookingRepository)(nil)

func (r *BookingRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*bookingdm.Booking, error) {
	var b bookingdm.Booking
	if err := r.conn(ctx).First(&b, id).Error; err != nil {
		return nil, notFound(err, internal.ErrBookingNotFound)
	}
	return &b, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, id int64) (*bookingdm.Booking, error) {
	var b bookingdm.Booking
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, id).Error
	if err != nil {
		return nil, notFound(err, internal.ErrBookingNotFound)
	}
	return &b, nil
}

func (r *BookingRepository) GetWithRoomAndProperty(ctx context.Context, id int64) (*bookingdm.Booking, error) {
	var b bookingdm.Booking
	err := r.conn(ctx).
		Preload("Room").
		Preload("Property").
		First(&b, id).Error
	if err != nil {
		return nil, notFound(err, internal.ErrBookingNotFound)
	}
	return &b, nil
}

func (r *BookingRepository) Create(ctx context.Context, b *bookingdm.Booking) error {
	return r.conn(ctx).Omit(clause.Associations).Create(b).Error
}

func (r *BookingRepository) Save(ctx context.Context, b *bookingdm.Booking) error {
	return r.conn(ctx).Omit(clause.Associations).Save(b).Error
}

func (r *BookingRepository) ListLiveByUser(ctx context.Context, userID int64, forUpdate bool) ([]*bookingdm.Booking, error) {
	q := r.conn(ctx).
		Where("user_id = ? AND status IN ?", userID, bookingdm.LiveStatuses).
		Order("check_in_date ASC, id ASC")
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var bookings []*bookingdm.Booking
	if err := q.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *BookingRepository) CountLiveByRoom(ctx context.Context, roomID, excludeBookingID int64) (int, error) {
	q := r.conn(ctx).
		Model(&bookingdm.Booking{}).
		Where("room_id = ? AND status IN ?", roomID, bookingdm.LiveStatuses)
	if excludeBookingID > 0 {
		q = q.Where("id <> ?", excludeBookingID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *BookingRepository) GetRoomForUpdate(ctx context.Context, id int64) (*roomdm.Room, error) {
	var room roomdm.Room
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&room, id).Error
	if err != nil {
		return nil, notFound(err, internal.ErrRoomNotFound)
	}
	return &room, nil
}

func (r *BookingRepository) SaveRoom(ctx context.Context, room *roomdm.Room) error {
	return r.conn(ctx).Save(room).Error
}

func (r *BookingRepository) GetRateCard(ctx context.Context, id int64) (*roomdm.RateCard, error) {
	var rc roomdm.RateCard
	if err := r.conn(ctx).First(&rc, id).Error; err != nil {
		return nil, notFound(err, internal.ErrRateCardNotFound)
	}
	return &rc, nil
}

func (r *BookingRepository) GetInventoryItemsForUpdate(ctx context.Context, ids []int64) ([]*roomdm.InventoryItem, error) {
	var items []*roomdm.InventoryItem
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *BookingRepository) SaveInventoryItem(ctx context.Context, item *roomdm.InventoryItem) error {
	return r.conn(ctx).Save(item).Error
}

func (r *BookingRepository) ListInventoryAllocations(ctx context.Context, bookingID int64) ([]*bookingdm.BookingInventoryItem, error) {
	var allocs []*bookingdm.BookingInventoryItem
	err := r.conn(ctx).
		Where("booking_id = ?", bookingID).
		Order("id ASC").
		Find(&allocs).Error
	if err != nil {
		return nil, err
	}
	return allocs, nil
}

func (r *BookingRepository) CreateInventoryAllocation(ctx context.Context, alloc *bookingdm.BookingInventoryItem) error {
	return r.conn(ctx).Create(alloc).Error
}

func (r *BookingRepository) GetExtensionByTransactionID(ctx context.Context, transactionID int64) (*bookingdm.BookingExtension, error) {
	var ext bookingdm.BookingExtension
	err := r.conn(ctx).Where("transaction_id = ?", transactionID).First(&ext).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ext, nil
}

func (r *BookingRepository) CreateExtension(ctx context.Context, ext *bookingdm.BookingExtension) error {
	return r.conn(ctx).Create(ext).Error
}

func notFound(err, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}
