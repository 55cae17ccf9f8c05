package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/auth"
	"github.com/frahmantamala/booking-ledger/internal/transport/middleware"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

type stubValidator struct {
	claims *auth.Claims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	s.seen = token
	return s.claims, s.err
}

func decodeCode(rec *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
	return body.Error.Code
}

var _ = Describe("Authenticate", func() {
	var (
		validator *stubValidator
		reached   *internal.User
		handler   http.Handler
	)

	BeforeEach(func() {
		reached = nil
		validator = &stubValidator{claims: &auth.Claims{UserID: 9, Email: "ops@example.com", Permissions: []string{"admin"}}}
		handler = middleware.Authenticate(validator, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached, _ = internal.UserFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))
	})

	It("puts the caller on the context", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc.def.ghi")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(validator.seen).To(Equal("abc.def.ghi"))
		Expect(reached).NotTo(BeNil())
		Expect(reached.ID).To(Equal(int64(9)))
		Expect(reached.IsAdmin()).To(BeTrue())
	})

	It("accepts a lowercase scheme", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer tok")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})

	It("returns 401 without a header", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(decodeCode(rec)).To(Equal(string(internal.ErrCodeInvalidToken)))
		Expect(reached).To(BeNil())
	})

	It("returns 401 for a basic credential", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("passes the validator's error code through", func() {
		validator.claims = nil
		validator.err = internal.ErrTokenExpired

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer old")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(decodeCode(rec)).To(Equal(string(internal.ErrCodeTokenExpired)))
		Expect(reached).To(BeNil())
	})
})

var _ = Describe("RequirePermissions", func() {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(user *internal.User) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if user != nil {
			req = req.WithContext(internal.ContextWithUser(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		middleware.RequireAdmin(logger.Discard(), auth.PermissionIssueRefunds)(ok).ServeHTTP(rec, req)
		return rec.Code
	}

	It("requires an authenticated caller", func() {
		Expect(serve(nil)).To(Equal(http.StatusUnauthorized))
	})

	It("forbids callers without the permission", func() {
		Expect(serve(&internal.User{ID: 1})).To(Equal(http.StatusForbidden))
		Expect(serve(&internal.User{ID: 1, Permissions: []string{auth.PermissionAssignRooms}})).To(Equal(http.StatusForbidden))
	})

	It("allows admins and the specific operator permission", func() {
		Expect(serve(&internal.User{ID: 1, Permissions: []string{internal.PermissionAdmin}})).To(Equal(http.StatusOK))
		Expect(serve(&internal.User{ID: 1, Permissions: []string{auth.PermissionIssueRefunds}})).To(Equal(http.StatusOK))
	})
})

var _ = Describe("RequestID and recovery", func() {
	It("echoes a supplied trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceHeader, "trace-1")
		rec := httptest.NewRecorder()
		middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)
		Expect(rec.Header().Get(middleware.TraceHeader)).To(Equal("trace-1"))
	})

	It("generates a trace id when missing", func() {
		rec := httptest.NewRecorder()
		middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(rec.Header().Get(middleware.TraceHeader)).NotTo(BeEmpty())
	})

	It("turns a panic into a 500 without leaking it", func() {
		rec := httptest.NewRecorder()
		panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom secret") })
		middleware.RecoveryMiddleware(logger.Discard())(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(strings.Contains(rec.Body.String(), "boom secret")).To(BeFalse())
	})

	It("filters credentials from logged bodies", func() {
		var logs bytes.Buffer
		rec := httptest.NewRecorder()
		echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(body)
		})
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"password":"hunter2","note":"kept"}`))
		middleware.LoggingMiddleware(slog.New(slog.NewTextHandler(&logs, nil)))(echo).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(rec.Body.String()).To(Equal(`{"password":"hunter2","note":"kept"}`))
		Expect(logs.String()).To(ContainSubstring("kept"))
		Expect(logs.String()).NotTo(ContainSubstring("hunter2"))
	})

	It("hands large bodies to the handler intact but logs them truncated", func() {
		var logs bytes.Buffer
		payload := `{"note":"` + strings.Repeat("a", 10000) + `"}`
		var got string
		sink := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			got = string(body)
		})
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		middleware.LoggingMiddleware(slog.New(slog.NewTextHandler(&logs, nil)))(sink).ServeHTTP(httptest.NewRecorder(), req)

		Expect(got).To(Equal(payload))
		Expect(logs.String()).To(ContainSubstring("[TRUNCATED]"))
	})

	It("never touches bodies on excluded paths", func() {
		var logs bytes.Buffer
		var got string
		sink := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			got = string(body)
			_, _ = w.Write([]byte(`{"echo":"response-marker"}`))
		})
		mw := middleware.LoggingMiddleware(slog.New(slog.NewTextHandler(&logs, nil)), middleware.WithoutBodies("/hooks"))
		req := httptest.NewRequest(http.MethodPost, "/hooks/gateway", strings.NewReader(`{"id":"request-marker"}`))
		mw(sink).ServeHTTP(httptest.NewRecorder(), req)

		Expect(got).To(Equal(`{"id":"request-marker"}`))
		Expect(logs.String()).To(ContainSubstring("/hooks/gateway"))
		Expect(logs.String()).NotTo(ContainSubstring("request-marker"))
		Expect(logs.String()).NotTo(ContainSubstring("response-marker"))
	})
})
