package booking

import (
	"context"
	"log/slog"
	"net/http"

	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	"github.com/frahmantamala/booking-ledger/internal/transport"
)

type RoomAssigner interface {
	AssignRoom(ctx context.Context, bookingID, roomID int64, inventoryItemIDs []int64) (*bookingdm.Booking, error)
}

type Handler struct {
	*transport.BaseHandler
	Allocator RoomAssigner
}

func NewHandler(allocator RoomAssigner, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Allocator:   allocator,
	}
}

// AssignRoom handles PATCH /api/v1/admin/bookings/{id}/room
func (h *Handler) AssignRoom(w http.ResponseWriter, r *http.Request) {
	bookingID, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req AssignRoomRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.HandleError(w, appErr)
		return
	}
	if appErr := req.Validate(); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	b, err := h.Allocator.AssignRoom(r.Context(), bookingID, req.RoomID, req.InventoryItemIDs)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, b)
}
