package gateway

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
	"net/url"
	"strings"
	"time"

	"github.com/sahayog/ms-go-donations/app/entity"
)

var ErrSignatureMismatch = errors.New("gateway signature mismatch")

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	APIBaseURL    string
	HTTPTimeout   time.Duration
}

type RazorpayGateway struct {
	cfg    RazorpayConfig
	client *http.Client
}

func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.razorpay.com"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return &RazorpayGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *RazorpayGateway) Code() int32 {
	return CodeRazorpay
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, input *OrderInput) (*OrderOutput, error) {
	if strings.TrimSpace(g.cfg.KeyID) == "" || strings.TrimSpace(g.cfg.KeySecret) == "" {
		return nil, errors.New("razorpay api keys are not configured")
	}

	notes := map[string]string{
		"campaign_id": strings.TrimSpace(input.CampaignID),
	}
	for k, v := range input.Notes {
		notes[k] = v
	}

	reqBody := map[string]interface{}{
		"amount":   input.AmountPaise,
		"currency": strings.ToUpper(strings.TrimSpace(input.Currency)),
		"receipt":  strings.TrimSpace(input.Receipt),
		"notes":    notes,
	}

	body, err := g.postJSON(ctx, "/v1/orders", reqBody)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errors.New("razorpay order id missing")
	}
	if payload.Amount != input.AmountPaise {
		return nil, fmt.Errorf("razorpay order amount mismatch: want=%d got=%d", input.AmountPaise, payload.Amount)
	}

	return &OrderOutput{
		GatewayOrderID: strings.TrimSpace(payload.ID),
		AmountPaise:    payload.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(payload.Currency)),
		InitialStatus:  entity.StatusPending,
	}, nil
}

// VerifySignature checks the checkout signature the gateway hands back to the
// browser after a successful payment: HMAC-SHA256 over "order_id|payment_id"
// keyed with the api secret.
func (g *RazorpayGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) error {
	if strings.TrimSpace(g.cfg.KeySecret) == "" {
		return errors.New("razorpay api keys are not configured")
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.KeySecret))
	_, _ = mac.Write([]byte(strings.TrimSpace(gatewayOrderID) + "|" + strings.TrimSpace(gatewayPaymentID)))
	expected := mac.Sum(nil)

	candidate, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrSignatureMismatch
	}
	if !hmac.Equal(candidate, expected) {
		return ErrSignatureMismatch
	}
	return nil
}

func (g *RazorpayGateway) VerifyAndParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return nil, errors.New("razorpay webhook secret is not configured")
	}
	if !verifyWebhookSignature(payload, signature, g.cfg.WebhookSecret) {
		return nil, ErrSignatureMismatch
	}

	var event struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID               string `json:"id"`
					OrderID          string `json:"order_id"`
					ErrorDescription string `json:"error_description"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	result := &WebhookEvent{EventType: event.Event}
	if s := strings.TrimSpace(event.Payload.Payment.Entity.ID); s != "" {
		result.GatewayPaymentID = &s
	}
	if s := strings.TrimSpace(event.Payload.Payment.Entity.OrderID); s != "" {
		result.GatewayOrderID = &s
	}

	switch event.Event {
	case "payment.captured":
		result.NewStatus = entity.StatusPaid
	case "payment.failed":
		result.NewStatus = entity.StatusFailed
		if s := strings.TrimSpace(event.Payload.Payment.Entity.ErrorDescription); s != "" {
			result.FailureReason = &s
		}
	default:
		result.NewStatus = 0
	}

	return result, nil
}

// FetchOrderStatus asks the gateway for the order state and, when the order
// has captured payments, the capturing payment id. Used by the reconcile job
// for donations whose verification never arrived.
func (g *RazorpayGateway) FetchOrderStatus(ctx context.Context, gatewayOrderID string) (*OrderStatus, error) {
	if strings.TrimSpace(gatewayOrderID) == "" {
		return &OrderStatus{}, nil
	}

	orderBody, err := g.getJSON(ctx, "/v1/orders/"+url.PathEscape(gatewayOrderID))
	if err != nil {
		return nil, err
	}

	var order struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(orderBody, &order); err != nil {
		return nil, err
	}

	result := &OrderStatus{}
	switch order.Status {
	case "paid":
		result.Status = entity.StatusPaid
	case "attempted", "created":
		result.Status = entity.StatusPending
	default:
		return result, nil
	}

	if result.Status != entity.StatusPaid {
		return result, nil
	}

	paymentsBody, err := g.getJSON(ctx, "/v1/orders/"+url.PathEscape(gatewayOrderID)+"/payments")
	if err != nil {
		return nil, err
	}

	var payments struct {
		Items []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal(paymentsBody, &payments); err != nil {
		return nil, err
	}
	for _, item := range payments.Items {
		if item.Status == "captured" {
			id := strings.TrimSpace(item.ID)
			result.GatewayPaymentID = &id
			break
		}
	}

	return result, nil
}

func (g *RazorpayGateway) getJSON(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("razorpay request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

func (g *RazorpayGateway) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIBaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("razorpay request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

func verifyWebhookSignature(payload []byte, signature, webhookSecret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write(payload)
	expected := mac.Sum(nil)

	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(candidate, expected)
}
