package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sahayog/ms-go-donations/app/entity"
	"github.com/sahayog/ms-go-donations/app/gateway"
	"github.com/sahayog/ms-go-donations/app/repository"
	"github.com/sahayog/ms-go-donations/app/types"
)

const (
	webhookStatusProcessed int32 = 10
	webhookStatusRejected  int32 = 20
)

// HandleGatewayWebhook verifies and applies a server-to-server gateway event.
// The webhook may arrive before the browser's verification call; both paths
// converge on the same paid state, which is what lets clients reconcile an
// "already processed" verification response into a success.
func (s *DonationService) HandleGatewayWebhook(ctx context.Context, req *types.GatewayWebhookRequest) (*entity.Donation, error) {
	gatewayCode, err := parseGatewayCode(req.Gateway)
	if err != nil {
		return nil, ErrGatewayUnsupported
	}

	gw, err := s.gatewayReg.Get(gatewayCode)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}

	payload := []byte(req.Payload)
	signature := strings.TrimSpace(req.Signature)
	event, err := gw.VerifyAndParseWebhook(ctx, payload, signature)
	if err != nil {
		s.persistRejectedWebhook(ctx, nil, req, fmt.Sprintf("webhook validation failed: %v", err))
		return nil, ErrWebhookRejected
	}
	if event == nil || event.GatewayOrderID == nil {
		s.persistRejectedWebhook(ctx, nil, req, "webhook payload carries no order id")
		return nil, ErrWebhookRejected
	}

	donation, err := s.donationRepo.FindByOrderID(ctx, *event.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if donation == nil {
		s.persistRejectedWebhook(ctx, nil, req, "donation not found for gateway order id")
		return nil, ErrDonationNotFound
	}

	now := time.Now().UTC()
	oldStatus := donation.Status

	if event.GatewayPaymentID != nil {
		donation.GatewayPaymentID = event.GatewayPaymentID
	}
	if event.NewStatus > 0 && donation.Status != entity.StatusPaid {
		donation.Status = event.NewStatus
		donation.FailureReason = event.FailureReason
	}

	if donation.Status != oldStatus && donation.Terminal() {
		s.markForNotifyDispatch(donation, now)
	}

	donation.UpdatedAt = now
	if err := s.donationRepo.Update(ctx, donation); err != nil {
		if errors.Is(err, repository.ErrDonationNotFound) {
			return nil, ErrDonationNotFound
		}
		return nil, err
	}

	eventType := strings.TrimSpace(event.EventType)
	if eventType == "" {
		eventType = "gateway_webhook"
	}

	oldStatusPtr := &oldStatus
	if oldStatus == donation.Status {
		oldStatusPtr = nil
	}

	payloadJSON := string(payload)
	_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
		DonationID:     donation.ID,
		EventType:      eventType,
		OldStatus:      oldStatusPtr,
		NewStatus:      donation.Status,
		GatewayEventID: event.GatewayEventID,
		PayloadJSON:    &payloadJSON,
		CreatedAt:      now,
	})

	donationID := donation.ID
	if err := s.webhookRepo.Create(ctx, &entity.GatewayWebhook{
		DonationID:  &donationID,
		Gateway:     strings.ToLower(strings.TrimSpace(req.Gateway)),
		Signature:   signature,
		PayloadJSON: string(payload),
		Status:      webhookStatusProcessed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return nil, err
	}

	return donation, nil
}

func (s *DonationService) persistRejectedWebhook(
	ctx context.Context,
	donationID *uint64,
	req *types.GatewayWebhookRequest,
	reason string,
) {
	now := time.Now().UTC()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "webhook rejected"
	}
	trimmedErr := truncate(reason, 1024)
	_ = s.webhookRepo.Create(ctx, &entity.GatewayWebhook{
		DonationID:  donationID,
		Gateway:     strings.ToLower(strings.TrimSpace(req.Gateway)),
		Signature:   strings.TrimSpace(req.Signature),
		PayloadJSON: req.Payload,
		Status:      webhookStatusRejected,
		Error:       &trimmedErr,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func parseGatewayCode(raw string) (int32, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "razorpay", "1":
		return gateway.CodeRazorpay, nil
	default:
		return 0, gateway.ErrGatewayNotSupported
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
