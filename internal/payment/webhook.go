package payment

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/transport"
)

const webhookAuthScheme = "sha256"

// maxNotificationBytes bounds how much of an authenticated callback is read.
const maxNotificationBytes = 64 << 10

// WebhookAuthenticator checks the gateway's Authorization header, which
// carries hex(sha256("username:password")).
type WebhookAuthenticator struct {
	expected []byte
}

func NewWebhookAuthenticator(username, password string) *WebhookAuthenticator {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return &WebhookAuthenticator{expected: []byte(hex.EncodeToString(sum[:]))}
}

// Verify accepts "sha256 <hex>" or the bare digest, in either letter case.
func (a *WebhookAuthenticator) Verify(header string) bool {
	value := strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(value, " "); ok && strings.EqualFold(scheme, webhookAuthScheme) {
		value = strings.TrimSpace(rest)
	}
	got := []byte(strings.ToLower(value))
	return len(got) == len(a.expected) && subtle.ConstantTimeCompare(got, a.expected) == 1
}

type EventProcessor interface {
	Process(ctx context.Context, ev Event) (*Result, error)
}

type WebhookHandler struct {
	*transport.BaseHandler
	auth      *WebhookAuthenticator
	processor EventProcessor
}

func NewWebhookHandler(auth *WebhookAuthenticator, processor EventProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: transport.NewBaseHandler(logger),
		auth:        auth,
		processor:   processor,
	}
}

// HandleNotification is the gateway callback. Credentials are checked before
// the body is touched. Everything the gateway should not retry (unreadable
// body, ignored, duplicate, unknown reference, overlap) answers 200.
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Verify(r.Header.Get("Authorization")) {
		h.Logger.Warn("webhook rejected, bad credentials", "remote_addr", r.RemoteAddr)
		h.HandleError(w, internal.ErrInvalidSignature)
		return
	}

	var n Notification
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotificationBytes)).Decode(&n); err != nil {
		h.Logger.Warn("webhook body unreadable, acknowledging", "remote_addr", r.RemoteAddr, "error", err)
		h.WriteJSON(w, http.StatusOK, WebhookResponse{
			Status:  "ok",
			Event:   Unhandled{}.Kind(),
			Outcome: string(OutcomeIgnored),
		})
		return
	}

	ev := Classify(n)
	h.Logger.Info("gateway notification received",
		"gateway_event", n.Event,
		"state", n.Payload.State,
		"merchant_order_id", n.Payload.MerchantOrderID,
		"merchant_refund_id", n.Payload.MerchantRefundID,
		"classified_as", ev.Kind())

	result, err := h.processor.Process(r.Context(), ev)
	if err != nil {
		h.HandleError(w, internal.NewInternalError("failed to process notification", err))
		return
	}

	h.WriteJSON(w, http.StatusOK, WebhookResponse{
		Status:  "ok",
		Event:   result.Event,
		Outcome: string(result.Outcome),
	})
}
