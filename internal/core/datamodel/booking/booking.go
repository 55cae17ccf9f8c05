package booking

import (
	"time"

	"github.com/frahmantamala/booking-ledger/internal/core/datamodel/room"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// LiveStatuses are the booking states that hold a stay window and a room slot.
var LiveStatuses = []Status{StatusPending, StatusApproved, StatusActive}

func (s Status) IsLive() bool {
	for _, l := range LiveStatuses {
		if s == l {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentPartial   PaymentStatus = "PARTIAL"
	PaymentCompleted PaymentStatus = "COMPLETED"
)

// Booking amounts are whole rupees.
type Booking struct {
	ID              int64         `gorm:"primaryKey" json:"id"`
	UserID          int64         `gorm:"column:user_id;not null;index" json:"userId"`
	PropertyID      int64         `gorm:"column:property_id;not null;index" json:"propertyId"`
	RateCardID      *int64        `gorm:"column:rate_card_id" json:"rateCardId,omitempty"`
	RoomID          *int64        `gorm:"column:room_id;index" json:"roomId,omitempty"`
	RoomType        string        `gorm:"column:room_type" json:"roomType"`
	Status          Status        `gorm:"column:status;not null;index" json:"status"`
	PaymentStatus   PaymentStatus `gorm:"column:payment_status;not null" json:"paymentStatus"`
	CheckInDate     time.Time     `gorm:"column:check_in_date;not null" json:"checkInDate"`
	CheckOutDate    *time.Time    `gorm:"column:check_out_date" json:"checkOutDate,omitempty"`
	DurationMonths  int           `gorm:"column:duration_months;not null" json:"durationMonths"`
	MonthlyRent     int64         `gorm:"column:monthly_rent;not null" json:"monthlyRent"`
	TotalAmount     int64         `gorm:"column:total_amount;not null" json:"totalAmount"`
	RemainingAmount int64         `gorm:"column:remaining_amount;not null" json:"remainingAmount"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Room     *room.Room     `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	Property *room.Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "pending"
	ExtensionApproved ExtensionStatus = "approved"
	ExtensionRejected ExtensionStatus = "rejected"
)

// BookingExtension is a paid request to move a booking's checkout date.
// TransactionID is unique so one payment yields at most one extension.
type BookingExtension struct {
	ID                   int64           `gorm:"primaryKey" json:"id"`
	BookingID            int64           `gorm:"column:booking_id;not null;index" json:"bookingId"`
	TransactionID        int64           `gorm:"column:transaction_id;not null;uniqueIndex" json:"transactionId"`
	Status               ExtensionStatus `gorm:"column:status;not null" json:"status"`
	CurrentCheckOutDate  time.Time       `gorm:"column:current_check_out_date;not null" json:"currentCheckOutDate"`
	ProposedCheckOutDate time.Time       `gorm:"column:proposed_check_out_date;not null" json:"proposedCheckOutDate"`
	AdditionalMonths     int             `gorm:"column:additional_months;not null" json:"additionalMonths"`
	AdditionalAmount     int64           `gorm:"column:additional_amount;not null" json:"additionalAmount"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (BookingExtension) TableName() string {
	return "booking_extensions"
}

type BookingInventoryItem struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	BookingID       int64     `gorm:"column:booking_id;not null;uniqueIndex:idx_booking_inventory" json:"bookingId"`
	InventoryItemID int64     `gorm:"column:inventory_item_id;not null;uniqueIndex:idx_booking_inventory" json:"inventoryItemId"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (BookingInventoryItem) TableName() string {
	return "booking_inventory_items"
}
