package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/booking-ledger/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     svc,
	}
}

// GetRefundInfo handles GET /api/v1/payments/transactions/{id}/refund-info
func (h *Handler) GetRefundInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	info, err := h.Service.RefundInfo(r.Context(), user, id)
	if err != nil {
		h.Logger.Error("GetRefundInfo: service error", "error", err, "transaction_id", id, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, info)
}

// GetAttentionReport handles GET /api/v1/admin/payments/attention
func (h *Handler) GetAttentionReport(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.Service.AttentionReport(r.Context(), limit)
	if err != nil {
		h.Logger.Error("GetAttentionReport: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	type row struct {
		AttentionItem
		Reason string `json:"reason"`
	}
	rows := make([]row, 0, len(items))
	for _, item := range items {
		rows = append(rows, row{AttentionItem: item, Reason: item.Reason()})
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": rows,
		"count": len(rows),
	})
}
