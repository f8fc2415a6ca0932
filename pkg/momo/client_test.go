package momo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sokohub-labs/sokohub-backend/pkg/config"
	"github.com/sokohub-labs/sokohub-backend/pkg/logger"
	"github.com/sokohub-labs/sokohub-backend/pkg/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "momo-test", Level: zerolog.ErrorLevel})
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(config.MomoConfig{
		BaseURL:       baseURL,
		MerchantKey:   "mk-test",
		WebhookSecret: "whsec",
		CallbackURL:   "https://api.example.test/webhooks/momo",
		Currency:      "KES",
		Timeout:       5 * time.Second,
	}, newTestLogger(t))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestChargeSendsMerchantReference(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/charges" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":         "redirect",
			"transaction_id": "TXN-9",
			"payment_url":    "https://pay.example.test/TXN-9",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Charge(context.Background(), ChargeRequest{
		Reference:      "PAY-abc",
		Amount:         types.MoneyFromInt(100000),
		CustomerMsisdn: "254700000001",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if resp.Status != ChargeStatusRedirect || resp.PaymentURL == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got["reference"] != "PAY-abc" {
		t.Fatalf("reference sent = %v", got["reference"])
	}
	if got["merchant_key"] != "mk-test" {
		t.Fatalf("merchant key sent = %v", got["merchant_key"])
	}
	if got["amount"] != "100000.00" {
		t.Fatalf("amount sent = %v", got["amount"])
	}
}

func TestChargeRejectsMissingStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Charge(context.Background(), ChargeRequest{
		Reference:      "PAY-abc",
		CustomerMsisdn: "254700000001",
	}); err == nil {
		t.Fatal("expected error for missing status")
	}
}

func TestVerifyDecodesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":         "completed",
			"reference":      "PAY-abc",
			"transaction_id": "TXN-9",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Verify(context.Background(), "PAY-abc")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if resp.Status != VerifyStatusCompleted || resp.TransactionID != "TXN-9" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGatewayServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.Verify(context.Background(), "PAY-abc"); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestSignPayloadIsDeterministic(t *testing.T) {
	c := newTestClient(t, "https://gateway.example.test")
	a := c.SignPayload([]byte(`{"reference":"PAY-abc"}`))
	b := c.SignPayload([]byte(`{"reference":"PAY-abc"}`))
	if a == "" || a != b {
		t.Fatalf("signatures differ: %q vs %q", a, b)
	}
}
