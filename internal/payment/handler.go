package payment

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/booking-ledger/internal"
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

// InitiateBooking handles POST /api/v1/payments/bookings
func (h *Handler) InitiateBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	var req InitiateBookingRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	resp, err := h.Service.InitiateBooking(r.Context(), user, req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}

// PayBalance handles POST /api/v1/payments/bookings/{id}/pay
func (h *Handler) PayBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	bookingID, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req PayBalanceRequest
	if r.ContentLength != 0 {
		if appErr := h.DecodeJSON(r, &req); appErr != nil {
			h.HandleError(w, appErr)
			return
		}
	}

	resp, err := h.Service.PayBalance(r.Context(), user, bookingID, req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}

// RequestExtension handles POST /api/v1/payments/bookings/{id}/extensions
func (h *Handler) RequestExtension(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	bookingID, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req ExtensionRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	resp, err := h.Service.RequestExtension(r.Context(), user, bookingID, req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}

// GetOrderStatus handles GET /api/v1/payments/orders/{merchantOrderId}/status
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	merchantOrderID := strings.TrimSpace(chi.URLParam(r, "merchantOrderId"))
	if merchantOrderID == "" {
		h.HandleError(w, internal.NewValidationFieldError("merchantOrderId", "merchantOrderId is required", internal.ErrCodeValidationFailed))
		return
	}

	resp, err := h.Service.OrderStatus(r.Context(), user, merchantOrderID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// InitiateRefund handles POST /api/v1/admin/payments/transactions/{id}/refunds
func (h *Handler) InitiateRefund(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.CurrentUser(w, r)
	if !ok {
		return
	}

	transactionID, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req RefundRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	resp, err := h.Service.InitiateRefund(r.Context(), admin, transactionID, req)
	if err != nil {
		h.Logger.Error("InitiateRefund: service error", "error", err, "transaction_id", transactionID, "admin_id", admin.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}
