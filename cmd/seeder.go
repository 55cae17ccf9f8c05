package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/booking-ledger/internal/core/database"
	roomdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/room"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a sample property, rate cards, rooms and inventory for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := database.Open(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if clearData {
			for _, table := range []string{
				"booking_extensions", "payment_transactions", "booking_inventory_items",
				"bookings", "inventory_items", "rooms", "rate_cards", "properties",
			} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		if err := db.Transaction(seedProperty); err != nil {
			log.Fatalf("failed to seed: %v", err)
		}
		fmt.Println("Sample property seeded successfully")
	},
}

func seedProperty(tx *gorm.DB) error {
	property := roomdm.Property{Name: "Koramangala Residency", City: "Bengaluru"}
	if err := tx.Where("name = ?", property.Name).FirstOrCreate(&property).Error; err != nil {
		return fmt.Errorf("property: %w", err)
	}
	fmt.Println("Seeded property:", property.Name)

	rateCards := []roomdm.RateCard{
		{PropertyID: property.ID, RoomType: "single", MonthlyRent: 12000, IsActive: true},
		{PropertyID: property.ID, RoomType: "double", MonthlyRent: 9000, IsActive: true},
		{PropertyID: property.ID, RoomType: "triple", MonthlyRent: 7500, IsActive: true},
	}
	for i := range rateCards {
		rc := &rateCards[i]
		if err := tx.Where("property_id = ? AND room_type = ?", rc.PropertyID, rc.RoomType).FirstOrCreate(rc).Error; err != nil {
			return fmt.Errorf("rate card %s: %w", rc.RoomType, err)
		}
		fmt.Printf("Seeded rate card: %s at %d/month\n", rc.RoomType, rc.MonthlyRent)
	}

	rooms := []roomdm.Room{
		{PropertyID: property.ID, RoomNumber: "101", RoomType: "single", Capacity: 1, Status: roomdm.StatusAvailable},
		{PropertyID: property.ID, RoomNumber: "102", RoomType: "double", Capacity: 2, Status: roomdm.StatusAvailable},
		{PropertyID: property.ID, RoomNumber: "201", RoomType: "triple", Capacity: 3, Status: roomdm.StatusAvailable},
	}
	for i := range rooms {
		room := &rooms[i]
		if err := tx.Where("property_id = ? AND room_number = ?", room.PropertyID, room.RoomNumber).FirstOrCreate(room).Error; err != nil {
			return fmt.Errorf("room %s: %w", room.RoomNumber, err)
		}
	}
	fmt.Printf("Seeded %d rooms\n", len(rooms))

	items := []roomdm.InventoryItem{
		{PropertyID: property.ID, Name: "bed", Quantity: 6},
		{PropertyID: property.ID, Name: "locker", Quantity: 6},
		{PropertyID: property.ID, Name: "wardrobe key", Quantity: 6},
	}
	for i := range items {
		item := &items[i]
		if err := tx.Where("property_id = ? AND name = ?", item.PropertyID, item.Name).FirstOrCreate(item).Error; err != nil {
			return fmt.Errorf("inventory %s: %w", item.Name, err)
		}
	}
	fmt.Printf("Seeded %d inventory items\n", len(items))

	return nil
}
