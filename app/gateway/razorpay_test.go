package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sahayog/ms-go-donations/app/entity"
)

func checkoutSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	gw := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret"})

	sig := checkoutSignature("secret", "order_1", "pay_1")
	if err := gw.VerifySignature("order_1", "pay_1", sig); err != nil {
		t.Fatalf("expected signature to verify: %v", err)
	}

	if err := gw.VerifySignature("order_1", "pay_other", sig); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
	if err := gw.VerifySignature("order_1", "pay_1", "not-hex"); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch for malformed signature, got %v", err)
	}
}

func TestVerifyAndParseWebhook(t *testing.T) {
	gw := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret", WebhookSecret: "whsecret"})

	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`)
	mac := hmac.New(sha256.New, []byte("whsecret"))
	_, _ = mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	event, err := gw.VerifyAndParseWebhook(context.Background(), payload, sig)
	if err != nil {
		t.Fatalf("webhook verification failed: %v", err)
	}
	if event.NewStatus != entity.StatusPaid {
		t.Fatalf("expected paid status, got %d", event.NewStatus)
	}
	if event.GatewayOrderID == nil || *event.GatewayOrderID != "order_1" {
		t.Fatalf("expected order id order_1, got %v", event.GatewayOrderID)
	}
	if event.GatewayPaymentID == nil || *event.GatewayPaymentID != "pay_1" {
		t.Fatalf("expected payment id pay_1, got %v", event.GatewayPaymentID)
	}

	if _, err := gw.VerifyAndParseWebhook(context.Background(), payload, "deadbeef"); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestVerifyAndParseWebhookFailureEvent(t *testing.T) {
	gw := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret", WebhookSecret: "whsecret"})

	payload := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","error_description":"card declined"}}}}`)
	mac := hmac.New(sha256.New, []byte("whsecret"))
	_, _ = mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	event, err := gw.VerifyAndParseWebhook(context.Background(), payload, sig)
	if err != nil {
		t.Fatalf("webhook verification failed: %v", err)
	}
	if event.NewStatus != entity.StatusFailed {
		t.Fatalf("expected failed status, got %d", event.NewStatus)
	}
	if event.FailureReason == nil || *event.FailureReason != "card declined" {
		t.Fatalf("expected failure reason, got %v", event.FailureReason)
	}
}

func TestCreateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test" || pass != "secret" {
			t.Fatal("expected basic auth with api keys")
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode order request: %v", err)
		}
		if body["amount"].(float64) != 50000 {
			t.Fatalf("expected amount 50000, got %v", body["amount"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "order_test_1",
			"amount":   50000,
			"currency": "INR",
			"status":   "created",
		})
	}))
	defer server.Close()

	gw := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret", APIBaseURL: server.URL})
	out, err := gw.CreateOrder(context.Background(), &OrderInput{
		Receipt:     "rcpt-1",
		CampaignID:  "c1",
		AmountPaise: 50_000,
		Currency:    "INR",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if out.GatewayOrderID != "order_test_1" {
		t.Fatalf("unexpected order id: %s", out.GatewayOrderID)
	}
	if out.InitialStatus != entity.StatusPending {
		t.Fatalf("expected pending initial status, got %d", out.InitialStatus)
	}
}

func TestCreateOrderRejectsAmountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "order_test_1",
			"amount":   100,
			"currency": "INR",
		})
	}))
	defer server.Close()

	gw := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret", APIBaseURL: server.URL})
	_, err := gw.CreateOrder(context.Background(), &OrderInput{Receipt: "rcpt-1", AmountPaise: 50_000, Currency: "INR"})
	if err == nil {
		t.Fatal("expected amount mismatch error")
	}
}

func TestFetchOrderStatusPaid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/orders/order_1":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "paid"})
		case "/v1/orders/order_1/payments":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]string{
					{"id": "pay_failed", "status": "failed"},
					{"id": "pay_1", "status": "captured"},
				},
			})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	gw := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret", APIBaseURL: server.URL})
	status, err := gw.FetchOrderStatus(context.Background(), "order_1")
	if err != nil {
		t.Fatalf("fetch order status failed: %v", err)
	}
	if status.Status != entity.StatusPaid {
		t.Fatalf("expected paid status, got %d", status.Status)
	}
	if status.GatewayPaymentID == nil || *status.GatewayPaymentID != "pay_1" {
		t.Fatalf("expected captured payment id pay_1, got %v", status.GatewayPaymentID)
	}
}

func TestFetchOrderStatusPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "attempted"})
	}))
	defer server.Close()

	gw := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret", APIBaseURL: server.URL})
	status, err := gw.FetchOrderStatus(context.Background(), "order_1")
	if err != nil {
		t.Fatalf("fetch order status failed: %v", err)
	}
	if status.Status != entity.StatusPending {
		t.Fatalf("expected pending status, got %d", status.Status)
	}
	if status.GatewayPaymentID != nil {
		t.Fatal("expected no payment id for pending order")
	}
}

func TestRegistryGet(t *testing.T) {
	gw := NewRazorpayGateway(RazorpayConfig{KeyID: "rzp_test", KeySecret: "secret"})
	registry := NewRegistry(gw)

	if _, err := registry.Get(CodeRazorpay); err != nil {
		t.Fatalf("expected razorpay gateway: %v", err)
	}
	if _, err := registry.Get(99); !errors.Is(err, ErrGatewayNotSupported) {
		t.Fatalf("expected ErrGatewayNotSupported, got %v", err)
	}
}
