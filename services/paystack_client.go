package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "storefront-backend/errors"
)

// GatewayAPI is the payment gateway surface the checkout workflow needs.
type GatewayAPI interface {
	InitializePayment(ctx context.Context, req InitializePaymentRequest) (*InitializePaymentResult, error)
	VerifyPayment(ctx context.Context, reference string) (*ChargeResult, error)
	VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool
}

// PaystackConfig is the explicit gateway configuration. It is injected at
// construction so tests can point the client at a fake server.
type PaystackConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

// PaystackClient calls the Paystack transaction API.
type PaystackClient struct {
	cfg        PaystackConfig
	httpClient *http.Client
}

// NewPaystackClient creates a PaystackClient.
func NewPaystackClient(cfg PaystackConfig) *PaystackClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = cfg.SecretKey
	}
	return &PaystackClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// InitializePaymentRequest describes one payment initialization.
type InitializePaymentRequest struct {
	Email       string
	AmountKobo  int64
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

// InitializePaymentResult is the redirect handle returned by the gateway.
type InitializePaymentResult struct {
	AuthorizationURL string
	AccessCode       string
	GatewayReference string
}

// ChargeResult is the gateway's view of a charge. Raw holds the exact
// response body for audit storage.
type ChargeResult struct {
	Status    string
	Reference string
	Amount    int64
	PaidAt    string
	Raw       json.RawMessage
}

// Success reports whether the gateway considers the charge successful.
func (c *ChargeResult) Success() bool {
	return c.Status == "success"
}

// ---- Paystack API request/response structs ----

type paystackInitRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"` // kobo
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

// InitializePayment starts a payment session. The internal transaction
// reference is passed through as the gateway idempotency key.
func (p *PaystackClient) InitializePayment(ctx context.Context, req InitializePaymentRequest) (*InitializePaymentResult, error) {
	body, err := json.Marshal(paystackInitRequest{
		Email:       req.Email,
		Amount:      req.AmountKobo,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUpstream, err)
	}

	var out paystackInitResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUpstream, fmt.Errorf("decode initialize response: %w", err))
	}
	if resp.StatusCode != http.StatusOK || !out.Status {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUpstream,
			fmt.Errorf("gateway rejected initialization (http %d): %s", resp.StatusCode, out.Message))
	}

	return &InitializePaymentResult{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		GatewayReference: out.Data.Reference,
	}, nil
}

// VerifyPayment fetches the gateway's authoritative status for a reference.
func (p *PaystackClient) VerifyPayment(ctx context.Context, reference string) (*ChargeResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUpstream,
			fmt.Errorf("gateway verify returned http %d", resp.StatusCode))
	}

	var out paystackVerifyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUpstream, fmt.Errorf("decode verify response: %w", err))
	}
	if !out.Status {
		return nil, apperrors.Wrap(apperrors.ErrGatewayUpstream,
			fmt.Errorf("gateway verify rejected: %s", out.Message))
	}

	return &ChargeResult{
		Status:    out.Data.Status,
		Reference: out.Data.Reference,
		Amount:    out.Data.Amount,
		PaidAt:    out.Data.PaidAt,
		Raw:       json.RawMessage(respBody),
	}, nil
}

// VerifyWebhookSignature checks the HMAC-SHA512 signature Paystack sends in
// the x-paystack-signature header. The MAC is computed over the exact raw
// request body and compared in constant time.
func (p *PaystackClient) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.cfg.WebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}
