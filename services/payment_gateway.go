package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// CheckoutSession is a hosted payment page issued by the gateway. The
// client is redirected to URL; the gateway reports the outcome through the
// webhook endpoint.
type CheckoutSession struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// PaymentGateway abstracts the hosted-checkout provider.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, referenceID string, amount int64, currency, description string) (*CheckoutSession, error)
}

// HTTPGateway talks to the payment provider's REST API.
type HTTPGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewHTTPGateway reads PAYMENT_API_URL and PAYMENT_SECRET_KEY from the
// environment.
func NewHTTPGateway() *HTTPGateway {
	return &HTTPGateway{
		baseURL:   os.Getenv("PAYMENT_API_URL"),
		secretKey: os.Getenv("PAYMENT_SECRET_KEY"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type checkoutRequest struct {
	ReferenceID string `json:"reference_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
}

func (g *HTTPGateway) CreateCheckoutSession(ctx context.Context, referenceID string, amount int64, currency, description string) (*CheckoutSession, error) {
	if g.baseURL == "" || g.secretKey == "" {
		return nil, fmt.Errorf("payment gateway not configured (PAYMENT_API_URL/PAYMENT_SECRET_KEY)")
	}

	frontend := os.Getenv("FRONTEND_URL")
	body, err := json.Marshal(checkoutRequest{
		ReferenceID: referenceID,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		SuccessURL:  frontend + "/bookings?payment=success",
		CancelURL:   frontend + "/bookings?payment=cancelled",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/checkout_sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, payload)
	}

	var session CheckoutSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, err
	}
	if session.SessionID == "" || session.CheckoutURL == "" {
		return nil, fmt.Errorf("payment gateway response missing session fields")
	}
	return &session, nil
}

// WebhookEvent is the payload the gateway posts back on payment outcomes.
type WebhookEvent struct {
	Type        string `json:"type"` // checkout.paid|checkout.failed
	SessionID   string `json:"session_id"`
	ReferenceID string `json:"reference_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Webhook event types.
const (
	WebhookCheckoutPaid   = "checkout.paid"
	WebhookCheckoutFailed = "checkout.failed"
)

// VerifyWebhookSignature checks the hex HMAC-SHA256 signature the gateway
// sends in its signature header against the raw request body.
func VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
