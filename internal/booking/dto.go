package booking

import (
	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/core/common/validation"
)

type AssignRoomRequest struct {
	RoomID           int64   `json:"roomId"`
	InventoryItemIDs []int64 `json:"inventoryItemIds,omitempty"`
}

func (r AssignRoomRequest) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("roomId", r.RoomID).
		Required().
		Positive(internal.ErrCodeValidationFailed)
	v.Field("inventoryItemIds", r.InventoryItemIDs).
		Custom(func(value interface{}) *internal.AppError {
			for _, id := range r.InventoryItemIDs {
				if id <= 0 {
					return internal.NewValidationFieldError("inventoryItemIds", "inventory item ids must be positive", internal.ErrCodeValidationFailed)
				}
			}
			return nil
		})
	return v.Validate()
}
