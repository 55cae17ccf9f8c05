package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/core/database/dbtest"
	bookingdm "github.com/frahmantamala/booking-ledger/internal/core/datamodel/booking"
	"github.com/frahmantamala/booking-ledger/internal/payment"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

var _ = Describe("Payment Handler Integration", func() {
	var (
		e      *env
		router chi.Router
		caller *internal.User
	)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if caller != nil {
			req = req.WithContext(internal.ContextWithUser(req.Context(), caller))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		e = newEnv()
		caller = &internal.User{ID: 7}

		handler := payment.NewHandler(e.service, logger.Discard())
		router = chi.NewRouter()
		router.Post("/payments/bookings", handler.InitiateBooking)
		router.Post("/payments/bookings/{id}/pay", handler.PayBalance)
		router.Post("/payments/bookings/{id}/extensions", handler.RequestExtension)
		router.Get("/payments/orders/{merchantOrderId}/status", handler.GetOrderStatus)
		router.Post("/admin/payments/transactions/{id}/refunds", handler.InitiateRefund)
	})

	It("should initiate a booking payment and return the redirect", func() {
		property := e.fx.Property("Wakad Homes")
		rateCard := e.fx.RateCard(property.ID, 900)

		w := send(http.MethodPost, "/payments/bookings",
			`{"rateCardId":`+strconv.FormatInt(rateCard.ID, 10)+`,"checkInDate":"2025-04-01","durationMonths":1}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var resp payment.InitiatePaymentResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Amount).To(Equal(int64(90000)))
		Expect(resp.RedirectURL).ToNot(BeEmpty())

		w = send(http.MethodGet, "/payments/orders/"+resp.MerchantOrderID+"/status", "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("should require an authenticated caller", func() {
		caller = nil
		w := send(http.MethodPost, "/payments/bookings", `{}`)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("should answer 400 for an overlapping stay", func() {
		property := e.fx.Property("Wakad Homes")
		rateCard := e.fx.RateCard(property.ID, 900)
		e.fx.Booking(caller.ID, property.ID, bookingdm.StatusPending, dbtest.Date(2025, 4, 1), dbtest.Ptr(dbtest.Date(2025, 6, 1)), 1800)

		w := send(http.MethodPost, "/payments/bookings",
			`{"rateCardId":`+strconv.FormatInt(rateCard.ID, 10)+`,"checkInDate":"2025-05-01","durationMonths":1}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should pay a balance with an empty body", func() {
		property := e.fx.Property("Wakad Homes")
		b := e.fx.Booking(caller.ID, property.ID, bookingdm.StatusApproved, dbtest.Date(2025, 4, 1), dbtest.Ptr(dbtest.Date(2025, 5, 1)), 900)

		w := send(http.MethodPost, "/payments/bookings/"+strconv.FormatInt(b.ID, 10)+"/pay", "")
		Expect(w.Code).To(Equal(http.StatusCreated))
	})

	It("should reject malformed ids and bodies", func() {
		Expect(send(http.MethodPost, "/payments/bookings/abc/extensions", `{"additionalMonths":1}`).Code).To(Equal(http.StatusBadRequest))
		Expect(send(http.MethodPost, "/payments/bookings", `{"rateCardId":`).Code).To(Equal(http.StatusBadRequest))
	})

	It("should answer 404 when refunding an unknown transaction", func() {
		w := send(http.MethodPost, "/admin/payments/transactions/999/refunds", `{"amount":100}`)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
