package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sahayog/ms-go-donations/app/entity"
	"github.com/sahayog/ms-go-donations/app/mapper"
	"github.com/sahayog/ms-go-donations/app/types"
)

// RunReconcileBatch resolves donations stuck in pending by asking the gateway
// for the order state. Payments captured while the donor's verification call
// never arrived are promoted to paid here.
func (s *DonationService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.donationsCfg.ReconcileStaleAfter)
	items, err := s.donationRepo.ListForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, donation := range items {
		if donation == nil || donation.GatewayOrderID == nil || strings.TrimSpace(*donation.GatewayOrderID) == "" {
			continue
		}

		gw, err := s.gatewayReg.Get(donation.Gateway)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		orderStatus, err := gw.FetchOrderStatus(ctx, strings.TrimSpace(*donation.GatewayOrderID))
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if orderStatus.Status == 0 || orderStatus.Status == donation.Status {
			continue
		}

		oldStatus := donation.Status
		donation.Status = orderStatus.Status
		if orderStatus.GatewayPaymentID != nil {
			donation.GatewayPaymentID = orderStatus.GatewayPaymentID
		}
		if donation.Terminal() {
			s.markForNotifyDispatch(donation, now)
		}
		donation.UpdatedAt = now

		if err := s.donationRepo.Update(ctx, donation); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
			DonationID: donation.ID,
			EventType:  "donation_reconciled",
			OldStatus:  &oldStatus,
			NewStatus:  donation.Status,
			CreatedAt:  now,
		})
	}

	return firstErr
}

// RunNotifyDispatchBatch posts terminal donation states to the campaign
// service so campaign totals and donor lists refresh.
func (s *DonationService) RunNotifyDispatchBatch(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := s.donationRepo.ListDueNotifyDispatch(ctx, now, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, donation := range items {
		if donation == nil {
			continue
		}
		if err := s.dispatchNotify(ctx, donation, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *DonationService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.donationsCfg.PendingTimeout)
	items, err := s.donationRepo.ListExpiredPending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, donation := range items {
		if donation == nil || donation.Status == entity.StatusExpired {
			continue
		}

		oldStatus := donation.Status
		donation.Status = entity.StatusExpired
		donation.UpdatedAt = now

		if err := s.donationRepo.Update(ctx, donation); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
			DonationID: donation.ID,
			EventType:  "donation_expired",
			OldStatus:  &oldStatus,
			NewStatus:  donation.Status,
			CreatedAt:  now,
		})
	}

	return firstErr
}

func (s *DonationService) dispatchNotify(ctx context.Context, donation *entity.Donation, now time.Time) error {
	notifyURL := strings.TrimSpace(s.donationsCfg.CampaignNotifyURL)
	if notifyURL == "" {
		errMsg := "campaign notify url is not configured"
		donation.NotifyDeliveryStatus = entity.NotifyDeliveryFailed
		donation.NotifyDeliveryNextAt = nil
		donation.NotifyDeliveryLastErr = &errMsg
		donation.UpdatedAt = now
		return s.donationRepo.Update(ctx, donation)
	}

	payload := &types.DonationEnvelopeResponse{Donation: mapper.DonationToResponse(donation)}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notifyURL, bytes.NewReader(body))
	if err != nil {
		return s.recordNotifyFailure(ctx, donation, now, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", donation.PublicID)

	resp, err := s.notifyHTTP.Do(req)
	if err != nil {
		return s.recordNotifyFailure(ctx, donation, now, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.recordNotifyFailure(ctx, donation, now, fmt.Errorf("notify endpoint returned status=%d", resp.StatusCode))
	}

	donation.NotifyDeliveryStatus = entity.NotifyDeliverySuccess
	donation.NotifyDeliveryNextAt = nil
	donation.NotifyDeliveryLastErr = nil
	donation.UpdatedAt = now

	if err := s.donationRepo.Update(ctx, donation); err != nil {
		return err
	}

	_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
		DonationID: donation.ID,
		EventType:  "notify_dispatched",
		NewStatus:  donation.Status,
		CreatedAt:  now,
	})

	return nil
}

func (s *DonationService) recordNotifyFailure(ctx context.Context, donation *entity.Donation, now time.Time, dispatchErr error) error {
	donation.NotifyDeliveryAttempts++
	trimmed := truncate(dispatchErr.Error(), 1024)
	donation.NotifyDeliveryLastErr = &trimmed

	maxAttempts := s.donationsCfg.NotifyMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	if donation.NotifyDeliveryAttempts >= maxAttempts {
		donation.NotifyDeliveryStatus = entity.NotifyDeliveryFailed
		donation.NotifyDeliveryNextAt = nil
	} else {
		retryInterval := s.donationsCfg.NotifyRetryInterval
		if retryInterval <= 0 {
			retryInterval = 5 * time.Minute
		}
		next := now.Add(retryInterval)
		donation.NotifyDeliveryStatus = entity.NotifyDeliveryPending
		donation.NotifyDeliveryNextAt = &next
	}
	donation.UpdatedAt = now

	if err := s.donationRepo.Update(ctx, donation); err != nil {
		return err
	}

	_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
		DonationID: donation.ID,
		EventType:  "notify_dispatch_failed",
		NewStatus:  donation.Status,
		CreatedAt:  now,
	})

	return dispatchErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
