// Package dbtest opens an in-memory SQLite database migrated with the ledger
// schema, plus fixtures shared by repository and service tests.
package dbtest

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	ledgerdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/ledger"
	roomdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/room"
)

func Models() []interface{} {
	return []interface{}{
		&roomdm.Property{},
		&roomdm.RateCard{},
		&roomdm.Room{},
		&roomdm.InventoryItem{},
		&bookingdm.Booking{},
		&bookingdm.BookingExtension{},
		&bookingdm.BookingInventoryItem{},
		&ledgerdm.PaymentTransaction{},
	}
}

// Open returns a fresh database. The pool is pinned to one connection so the
// in-memory database survives and concurrent transactions queue behind each
// other the way row locks would serialize them in Postgres.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func Ptr[T any](v T) *T {
	return &v
}

type Fixtures struct {
	DB *gorm.DB
}

func (f Fixtures) Property(name string) *roomdm.Property {
	p := &roomdm.Property{Name: name, City: "Pune"}
	must(f.DB.Create(p).Error)
	return p
}

func (f Fixtures) RateCard(propertyID, monthlyRent int64) *roomdm.RateCard {
	rc := &roomdm.RateCard{PropertyID: propertyID, RoomType: "double", MonthlyRent: monthlyRent, IsActive: true}
	must(f.DB.Create(rc).Error)
	return rc
}

func (f Fixtures) Room(propertyID int64, number string, capacity int) *roomdm.Room {
	r := &roomdm.Room{PropertyID: propertyID, RoomNumber: number, RoomType: "double", Capacity: capacity, Status: roomdm.StatusAvailable}
	must(f.DB.Create(r).Error)
	return r
}

func (f Fixtures) InventoryItem(propertyID int64, name string, quantity int) *roomdm.InventoryItem {
	item := &roomdm.InventoryItem{PropertyID: propertyID, Name: name, Quantity: quantity}
	must(f.DB.Create(item).Error)
	return item
}

// Booking inserts a booking with the given stay. checkOut may be nil for an
// open ended stay.
func (f Fixtures) Booking(userID, propertyID int64, status bookingdm.Status, checkIn time.Time, checkOut *time.Time, totalRupees int64) *bookingdm.Booking {
	b := &bookingdm.Booking{
		UserID:          userID,
		PropertyID:      propertyID,
		Status:          status,
		PaymentStatus:   bookingdm.PaymentInitiated,
		CheckInDate:     checkIn,
		CheckOutDate:    checkOut,
		DurationMonths:  1,
		MonthlyRent:     totalRupees,
		TotalAmount:     totalRupees,
		RemainingAmount: totalRupees,
	}
	must(f.DB.Create(b).Error)
	return b
}

func (f Fixtures) Transaction(txn *ledgerdm.PaymentTransaction) *ledgerdm.PaymentTransaction {
	must(f.DB.Create(txn).Error)
	return txn
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
