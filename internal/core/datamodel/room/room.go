package room

import "time"

type Property struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	City      string    `gorm:"column:city" json:"city"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Property) TableName() string {
	return "properties"
}

type RateCard struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	PropertyID  int64     `gorm:"column:property_id;not null;index" json:"propertyId"`
	RoomType    string    `gorm:"column:room_type;not null" json:"roomType"`
	MonthlyRent int64     `gorm:"column:monthly_rent;not null" json:"monthlyRent"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (RateCard) TableName() string {
	return "rate_cards"
}

type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
)

type Room struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	PropertyID       int64     `gorm:"column:property_id;not null;index" json:"propertyId"`
	RoomNumber       string    `gorm:"column:room_number;not null" json:"roomNumber"`
	RoomType         string    `gorm:"column:room_type" json:"roomType"`
	Capacity         int       `gorm:"column:capacity;not null" json:"capacity"`
	CurrentOccupancy int       `gorm:"column:current_occupancy;not null;default:0" json:"currentOccupancy"`
	Status           Status    `gorm:"column:status;not null" json:"status"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Room) TableName() string {
	return "rooms"
}

// InventoryItem is a countable amenity of a property (beds, lockers, keys).
type InventoryItem struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	PropertyID int64     `gorm:"column:property_id;not null;index" json:"propertyId"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	Quantity   int       `gorm:"column:quantity;not null" json:"quantity"`
	Allocated  int       `gorm:"column:allocated;not null;default:0" json:"allocated"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

func (i *InventoryItem) Available() int {
	return i.Quantity - i.Allocated
}
