package gateway

import (
	"context"
	"errors"
)

const (
	CodeRazorpay int32 = 1
)

var ErrGatewayNotSupported = errors.New("gateway is not supported")

type OrderInput struct {
	Receipt     string
	CampaignID  string
	AmountPaise int64
	Currency    string
	Notes       map[string]string
}

type OrderOutput struct {
	GatewayOrderID string
	AmountPaise    int64
	Currency       string
	InitialStatus  int32
}

type OrderStatus struct {
	Status           int32
	GatewayPaymentID *string
}

type WebhookEvent struct {
	GatewayEventID   *string
	GatewayOrderID   *string
	GatewayPaymentID *string
	EventType        string
	NewStatus        int32
	FailureReason    *string
}

type Gateway interface {
	Code() int32
	CreateOrder(ctx context.Context, input *OrderInput) (*OrderOutput, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) error
	VerifyAndParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
	FetchOrderStatus(ctx context.Context, gatewayOrderID string) (*OrderStatus, error)
}

type Registry struct {
	gateways map[int32]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	items := make(map[int32]Gateway, len(gateways))
	for _, g := range gateways {
		items[g.Code()] = g
	}
	return &Registry{gateways: items}
}

func (r *Registry) Get(code int32) (Gateway, error) {
	g, ok := r.gateways[code]
	if !ok {
		return nil, ErrGatewayNotSupported
	}
	return g, nil
}
