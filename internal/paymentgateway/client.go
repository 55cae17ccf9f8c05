package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	paymentgatewaytypes "github.com/frahmantamala/booking-ledger/internal/core/datamodel/paymentgateway"
)

var (
	// ErrGatewayRejected is returned for 4xx answers. The request will not
	// succeed if repeated unchanged.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
	// ErrGatewayUnavailable covers timeouts, transport failures and 5xx
	// answers. The outcome of a create call is unknown.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// tokens are refreshed this long before the gateway says they expire.
const tokenRefreshMargin = time.Minute

type Config struct {
	BaseURL        string
	AuthURL        string
	ClientID       string
	ClientSecret   string
	ClientVersion  string
	RequestTimeout time.Duration
}

// Client talks to the payment gateway. It is safe for concurrent use and
// keeps one OAuth token shared by all callers.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "1"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

func (c *Client) CreatePayment(ctx context.Context, req *paymentgatewaytypes.CreatePaymentRequest) (*paymentgatewaytypes.CreatePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	payload := map[string]interface{}{
		"merchantOrderId": req.MerchantOrderID,
		"amount":          req.Amount,
		"paymentFlow": map[string]interface{}{
			"type": "PG_CHECKOUT",
			"merchantUrls": map[string]string{
				"redirectUrl": req.RedirectURL,
			},
		},
	}
	if req.ExpireAfter > 0 {
		payload["expireAfter"] = req.ExpireAfter
	}

	var resp paymentgatewaytypes.CreatePaymentResponse
	if err := c.do(ctx, http.MethodPost, "/checkout/v2/pay", payload, &resp); err != nil {
		return nil, err
	}

	c.logger.Info("gateway order created",
		"merchant_order_id", req.MerchantOrderID,
		"order_id", resp.OrderID,
		"state", resp.State)
	return &resp, nil
}

func (c *Client) OrderStatus(ctx context.Context, merchantOrderID string) (*paymentgatewaytypes.OrderStatusResponse, error) {
	var resp paymentgatewaytypes.OrderStatusResponse
	path := "/checkout/v2/order/" + url.PathEscape(merchantOrderID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Refund(ctx context.Context, req *paymentgatewaytypes.RefundRequest) (*paymentgatewaytypes.RefundResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	var resp paymentgatewaytypes.RefundResponse
	if err := c.do(ctx, http.MethodPost, "/payments/v2/refund", req, &resp); err != nil {
		return nil, err
	}

	c.logger.Info("gateway refund requested",
		"merchant_refund_id", req.MerchantRefundID,
		"original_merchant_order_id", req.OriginalOrderID,
		"refund_id", resp.RefundID,
		"state", resp.State)
	return &resp, nil
}

func (c *Client) RefundStatus(ctx context.Context, merchantRefundID string) (*paymentgatewaytypes.RefundStatusResponse, error) {
	var resp paymentgatewaytypes.RefundStatusResponse
	path := "/payments/v2/refund/" + url.PathEscape(merchantRefundID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends an authorized request. A 401 drops the cached token and the call is
// retried once with a fresh one.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to create gateway request: %w", err)
		}
		req.Header.Set("Authorization", "O-Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrGatewayUnavailable, method, path, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.logger.Warn("gateway rejected access token, refreshing", "path", path)
			c.invalidateToken(token)
			continue
		}

		return decodeResponse(resp, method, path, out)
	}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenRefreshMargin).Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_version", c.cfg.ClientVersion)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL+"/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrGatewayUnavailable, err)
	}

	var token paymentgatewaytypes.TokenResponse
	if err := decodeResponse(resp, http.MethodPost, "/v1/oauth/token", &token); err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: token response has no access_token", ErrGatewayUnavailable)
	}

	c.token = token.AccessToken
	c.tokenExpiry = token.Expiry()
	c.logger.Debug("gateway access token refreshed", "expires_at", c.tokenExpiry)
	return c.token, nil
}

func (c *Client) invalidateToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
		c.tokenExpiry = time.Time{}
	}
}

func decodeResponse(resp *http.Response, method, path string, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		sentinel := ErrGatewayRejected
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			sentinel = ErrGatewayUnavailable
		}
		return fmt.Errorf("%w: %s %s returned %d: %s", sentinel, method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", ErrGatewayUnavailable, path, err)
	}
	return nil
}
