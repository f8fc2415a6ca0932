package momo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sokohub-labs/sokohub-backend/pkg/config"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

// Charge statuses the gateway reports on initiation.
const (
	ChargeStatusSuccess     = "success"
	ChargeStatusOTPRequired = "otp_required"
	ChargeStatusRedirect    = "redirect"
	ChargeStatusFailed      = "failed"
)

// Verification statuses the gateway reports on pull reconciliation.
const (
	VerifyStatusCompleted = "completed"
	VerifyStatusFailed    = "failed"
	VerifyStatusPending   = "pending"
)

var (
	errBaseURLRequired     = errors.New("momo base url is required")
	errMerchantKeyRequired = errors.New("momo merchant key is required")
	errLoggerRequired      = errors.New("momo logger is required")
)

// Client talks to the mobile-money gateway. The merchant reference sent on
// every charge is the payment's own reference, which the gateway echoes back
// in webhooks and verification responses.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	merchantKey   string
	webhookSecret string
	callbackURL   string
	returnURL     string
	cancelURL     string
	currency      string
	logger        *logger.Logger
}

// ChargeRequest carries the initiation inputs for one payment attempt.
type ChargeRequest struct {
	Reference      string
	Amount         types.Money
	CustomerMsisdn string
	CustomerName   string
	CustomerEmail  string
	OTPCode        string
}

// ChargeResponse is the gateway's initiation result.
type ChargeResponse struct {
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id"`
	PaymentURL    string          `json:"payment_url,omitempty"`
	PaymentToken  string          `json:"payment_token,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// VerifyResponse is the gateway's pull-based reconciliation result.
type VerifyResponse struct {
	Status        string          `json:"status"`
	Reference     string          `json:"reference"`
	TransactionID string          `json:"transaction_id"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// NewClient validates the gateway configuration and builds the wrapper.
func NewClient(cfg config.MomoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	merchantKey := strings.TrimSpace(cfg.MerchantKey)
	if merchantKey == "" {
		return nil, errMerchantKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		merchantKey:   merchantKey,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		callbackURL:   cfg.CallbackURL,
		returnURL:     cfg.ReturnURL,
		cancelURL:     cfg.CancelURL,
		currency:      cfg.Currency,
		logger:        logg,
	}, nil
}

// WebhookSecret returns the shared secret used to verify inbound callbacks.
// Empty means the development-only insecure bypass.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// SignPayload computes the hex HMAC-SHA256 of the raw payload with the
// webhook secret. Used by tests and the local webhook simulator.
func (c *Client) SignPayload(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Charge initiates a mobile-money collection for the given reference.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return nil, fmt.Errorf("charge reference is required")
	}
	if strings.TrimSpace(req.CustomerMsisdn) == "" {
		return nil, fmt.Errorf("customer msisdn is required")
	}

	body := map[string]any{
		"merchant_key":    c.merchantKey,
		"amount":          req.Amount.StringFixed(2),
		"currency":        c.currency,
		"reference":       req.Reference,
		"customer_msisdn": req.CustomerMsisdn,
		"callback_url":    c.callbackURL,
		"return_url":      c.returnURL,
		"cancel_url":      c.cancelURL,
	}
	if req.CustomerName != "" {
		body["customer_name"] = req.CustomerName
	}
	if req.CustomerEmail != "" {
		body["customer_email"] = req.CustomerEmail
	}
	if req.OTPCode != "" {
		body["otp_code"] = req.OTPCode
	}

	raw, err := c.post(ctx, "/v1/charges", body)
	if err != nil {
		return nil, err
	}

	out := &ChargeResponse{Raw: raw}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decoding charge response: %w", err)
	}
	if out.Status == "" {
		return nil, fmt.Errorf("gateway charge response missing status")
	}
	return out, nil
}

// Verify pulls the current gateway state for a reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("reference is required")
	}

	raw, err := c.post(ctx, "/v1/charges/verify", map[string]any{
		"merchant_key": c.merchantKey,
		"reference":    reference,
	})
	if err != nil {
		return nil, err
	}

	out := &VerifyResponse{Raw: raw}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decoding verify response: %w", err)
	}
	if out.Status == "" {
		return nil, fmt.Errorf("gateway verify response missing status")
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) (json.RawMessage, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("building gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading gateway response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gateway %s returned %d", path, resp.StatusCode)
	}
	return raw, nil
}
