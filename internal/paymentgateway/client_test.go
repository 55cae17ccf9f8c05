package paymentgateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	paymentgatewaytypes "github.com/frahmantamala/booking-ledger/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/booking-ledger/internal/paymentgateway"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

var _ = Describe("Client", func() {
	var (
		ctx         context.Context
		server      *httptest.Server
		mux         *http.ServeMux
		client      *paymentgateway.Client
		tokenCalls  atomic.Int32
		tokenExpiry time.Duration
	)

	writeJSON := func(w http.ResponseWriter, status int, body interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		Expect(json.NewEncoder(w).Encode(body)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		tokenCalls.Store(0)
		tokenExpiry = time.Hour

		mux = http.NewServeMux()
		mux.HandleFunc("/v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.ParseForm()).To(Succeed())
			Expect(r.PostForm.Get("client_id")).To(Equal("merchant"))
			Expect(r.PostForm.Get("client_secret")).To(Equal("secret"))
			Expect(r.PostForm.Get("grant_type")).To(Equal("client_credentials"))

			n := tokenCalls.Add(1)
			writeJSON(w, http.StatusOK, paymentgatewaytypes.TokenResponse{
				AccessToken: "token-" + string(rune('0'+n)),
				TokenType:   "O-Bearer",
				ExpiresAt:   time.Now().Add(tokenExpiry).Unix(),
			})
		})

		server = httptest.NewServer(mux)
		client = paymentgateway.NewClient(paymentgateway.Config{
			BaseURL:        server.URL,
			AuthURL:        server.URL,
			ClientID:       "merchant",
			ClientSecret:   "secret",
			RequestTimeout: 2 * time.Second,
		}, logger.Discard())
	})

	AfterEach(func() {
		server.Close()
	})

	It("creates a payment with a bearer token", func() {
		mux.HandleFunc("/checkout/v2/pay", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.Header.Get("Authorization")).To(Equal("O-Bearer token-1"))

			var body map[string]interface{}
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			Expect(body["merchantOrderId"]).To(Equal("b-1-full-100"))
			Expect(body["amount"]).To(BeNumerically("==", 150000))

			writeJSON(w, http.StatusOK, paymentgatewaytypes.CreatePaymentResponse{
				OrderID:     "OMO123",
				State:       paymentgatewaytypes.StatePending,
				RedirectURL: "https://pay.example.com/OMO123",
			})
		})

		resp, err := client.CreatePayment(ctx, &paymentgatewaytypes.CreatePaymentRequest{
			MerchantOrderID: "b-1-full-100",
			Amount:          150000,
			RedirectURL:     "https://app.example.com/return",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.OrderID).To(Equal("OMO123"))
		Expect(resp.RedirectURL).To(Equal("https://pay.example.com/OMO123"))
	})

	It("reuses the cached token across calls", func() {
		mux.HandleFunc("/checkout/v2/order/b-1-full-100/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, paymentgatewaytypes.OrderStatusResponse{OrderID: "OMO123", State: paymentgatewaytypes.StateCompleted, Amount: 150000})
		})

		for i := 0; i < 3; i++ {
			resp, err := client.OrderStatus(ctx, "b-1-full-100")
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.State).To(Equal(paymentgatewaytypes.StateCompleted))
		}
		Expect(tokenCalls.Load()).To(Equal(int32(1)))
	})

	It("refreshes a token that is about to expire", func() {
		tokenExpiry = 30 * time.Second
		mux.HandleFunc("/checkout/v2/order/b-1-full-100/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, paymentgatewaytypes.OrderStatusResponse{State: paymentgatewaytypes.StatePending})
		})

		_, err := client.OrderStatus(ctx, "b-1-full-100")
		Expect(err).ToNot(HaveOccurred())
		_, err = client.OrderStatus(ctx, "b-1-full-100")
		Expect(err).ToNot(HaveOccurred())
		Expect(tokenCalls.Load()).To(Equal(int32(2)))
	})

	It("retries once with a new token after a 401", func() {
		var calls atomic.Int32
		mux.HandleFunc("/payments/v2/refund/r-1/status", func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, paymentgatewaytypes.RefundStatusResponse{MerchantRefundID: "r-1", State: paymentgatewaytypes.StateCompleted})
		})

		resp, err := client.RefundStatus(ctx, "r-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.State).To(Equal(paymentgatewaytypes.StateCompleted))
		Expect(tokenCalls.Load()).To(Equal(int32(2)))
	})

	It("classifies client errors as rejections", func() {
		mux.HandleFunc("/payments/v2/refund", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "REFUND_AMOUNT_EXCEEDED"})
		})

		_, err := client.Refund(ctx, &paymentgatewaytypes.RefundRequest{MerchantRefundID: "r-1", OriginalOrderID: "b-1-full-100", Amount: 500})
		Expect(err).To(MatchError(paymentgateway.ErrGatewayRejected))
		Expect(err.Error()).To(ContainSubstring("REFUND_AMOUNT_EXCEEDED"))
	})

	It("classifies server errors as unavailable", func() {
		mux.HandleFunc("/checkout/v2/pay", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.CreatePayment(ctx, &paymentgatewaytypes.CreatePaymentRequest{MerchantOrderID: "b-1-full-100", Amount: 100})
		Expect(err).To(MatchError(paymentgateway.ErrGatewayUnavailable))
	})

	It("gives up when the gateway does not answer in time", func() {
		mux.HandleFunc("/checkout/v2/pay", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		})

		timeoutCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err := client.CreatePayment(timeoutCtx, &paymentgatewaytypes.CreatePaymentRequest{MerchantOrderID: "b-1-full-100", Amount: 100})
		Expect(err).To(MatchError(paymentgateway.ErrGatewayUnavailable))
	})

	It("rejects an invalid request without calling the gateway", func() {
		_, err := client.CreatePayment(ctx, &paymentgatewaytypes.CreatePaymentRequest{MerchantOrderID: "b-1-full-100"})
		Expect(err).To(MatchError(paymentgateway.ErrGatewayRejected))
		Expect(tokenCalls.Load()).To(BeZero())
	})
})
