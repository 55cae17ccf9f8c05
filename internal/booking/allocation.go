package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/core/database"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	roomdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/room"
)

var (
	ErrBookingNotAssignable = internal.NewBusinessRuleError("booking is not in an assignable status", internal.ErrCodeInvalidBookingState)
	ErrInventoryNotFound    = internal.NewNotFoundError("Inventory item not found", internal.ErrCodeInventoryNotFound)
	ErrInventoryExhausted   = internal.NewBusinessRuleError("inventory item has no units left", internal.ErrCodeInventoryExhausted)
)

// AllocationManager assigns rooms and inventory to bookings without ever
// letting a room hold more live bookings than its capacity.
type AllocationManager struct {
	tx     database.TxManager
	repo   Repository
	logger *slog.Logger
}

func NewAllocationManager(tx database.TxManager, repo Repository, logger *slog.Logger) *AllocationManager {
	return &AllocationManager{tx: tx, repo: repo, logger: logger}
}

// AssignRoom places bookingID in roomID and allocates the given inventory
// items. The booking row and then the room rows are locked for the whole
// check-and-write so concurrent assignments to one room are serialized.
// Reassigning a booking to the room it already holds only adds inventory.
func (m *AllocationManager) AssignRoom(ctx context.Context, bookingID, roomID int64, inventoryItemIDs []int64) (*bookingdm.Booking, error) {
	err := m.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := m.repo.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.IsLive() {
			return ErrBookingNotAssignable
		}

		rooms, err := m.lockRooms(ctx, roomID, b.RoomID)
		if err != nil {
			return err
		}
		room := rooms[roomID]

		propertyID := b.PropertyID
		if b.RateCardID != nil {
			rateCard, err := m.repo.GetRateCard(ctx, *b.RateCardID)
			if err != nil {
				return err
			}
			propertyID = rateCard.PropertyID
		}
		if room.PropertyID != propertyID {
			return internal.ErrPropertyMismatch
		}

		if b.RoomID == nil || *b.RoomID != roomID {
			if err := m.moveBooking(ctx, b, room, rooms); err != nil {
				return err
			}
		}

		return m.allocateInventory(ctx, b, room.PropertyID, inventoryItemIDs)
	})
	if err != nil {
		return nil, err
	}

	return m.repo.GetWithRoomAndProperty(ctx, bookingID)
}

// lockRooms locks the target room and the booking's current room in id order.
func (m *AllocationManager) lockRooms(ctx context.Context, roomID int64, currentRoomID *int64) (map[int64]*roomdm.Room, error) {
	ids := []int64{roomID}
	if currentRoomID != nil && *currentRoomID != roomID {
		ids = append(ids, *currentRoomID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rooms := make(map[int64]*roomdm.Room, len(ids))
	for _, id := range ids {
		room, err := m.repo.GetRoomForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		rooms[id] = room
	}
	return rooms, nil
}

func (m *AllocationManager) moveBooking(ctx context.Context, b *bookingdm.Booking, room *roomdm.Room, locked map[int64]*roomdm.Room) error {
	occupants, err := m.repo.CountLiveByRoom(ctx, room.ID, b.ID)
	if err != nil {
		return fmt.Errorf("count bookings in room %d: %w", room.ID, err)
	}
	if occupants >= room.Capacity {
		m.logger.Warn("room assignment rejected, room at capacity",
			"booking_id", b.ID,
			"room_id", room.ID,
			"occupants", occupants,
			"capacity", room.Capacity)
		return internal.ErrRoomFull
	}

	previousRoomID := b.RoomID
	b.RoomID = &room.ID
	if err := m.repo.Save(ctx, b); err != nil {
		return fmt.Errorf("assign room to booking %d: %w", b.ID, err)
	}

	setOccupancy(room, occupants+1)
	if err := m.repo.SaveRoom(ctx, room); err != nil {
		return fmt.Errorf("update room %d: %w", room.ID, err)
	}

	if previousRoomID != nil {
		previous := locked[*previousRoomID]
		remaining, err := m.repo.CountLiveByRoom(ctx, previous.ID, 0)
		if err != nil {
			return fmt.Errorf("count bookings in room %d: %w", previous.ID, err)
		}
		setOccupancy(previous, remaining)
		if err := m.repo.SaveRoom(ctx, previous); err != nil {
			return fmt.Errorf("update room %d: %w", previous.ID, err)
		}
	}

	m.logger.Info("room assigned",
		"booking_id", b.ID,
		"room_id", room.ID,
		"previous_room_id", previousRoomID,
		"occupancy", room.CurrentOccupancy,
		"capacity", room.Capacity,
		"room_status", room.Status)
	return nil
}

func (m *AllocationManager) allocateInventory(ctx context.Context, b *bookingdm.Booking, propertyID int64, itemIDs []int64) error {
	ids := uniqueSorted(itemIDs)
	if len(ids) == 0 {
		return nil
	}

	items, err := m.repo.GetInventoryItemsForUpdate(ctx, ids)
	if err != nil {
		return err
	}
	if len(items) != len(ids) {
		return ErrInventoryNotFound
	}

	existing, err := m.repo.ListInventoryAllocations(ctx, b.ID)
	if err != nil {
		return err
	}
	held := make(map[int64]bool, len(existing))
	for _, alloc := range existing {
		held[alloc.InventoryItemID] = true
	}

	for _, item := range items {
		if item.PropertyID != propertyID {
			return internal.ErrPropertyMismatch
		}
		if held[item.ID] {
			continue
		}
		if item.Available() <= 0 {
			return ErrInventoryExhausted
		}

		item.Allocated++
		if err := m.repo.SaveInventoryItem(ctx, item); err != nil {
			return fmt.Errorf("update inventory item %d: %w", item.ID, err)
		}
		if err := m.repo.CreateInventoryAllocation(ctx, &bookingdm.BookingInventoryItem{
			BookingID:       b.ID,
			InventoryItemID: item.ID,
		}); err != nil {
			return fmt.Errorf("allocate inventory item %d: %w", item.ID, err)
		}
	}
	return nil
}

func setOccupancy(room *roomdm.Room, occupants int) {
	room.CurrentOccupancy = occupants
	if occupants >= room.Capacity {
		room.Status = roomdm.StatusBooked
	} else {
		room.Status = roomdm.StatusAvailable
	}
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
