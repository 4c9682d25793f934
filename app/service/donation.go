package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahayog/ms-go-donations/app/entity"
	"github.com/sahayog/ms-go-donations/app/gateway"
	"github.com/sahayog/ms-go-donations/app/repository"
	"github.com/sahayog/ms-go-donations/app/types"
	"github.com/sahayog/ms-go-donations/config"
)

const (
	defaultListLimit = int32(100)
	defaultBatchSize = int32(100)
)

type donationRepository interface {
	Create(ctx context.Context, donation *entity.Donation) error
	Update(ctx context.Context, donation *entity.Donation) error
	FindByPublicID(ctx context.Context, publicID string) (*entity.Donation, error)
	FindByOrderID(ctx context.Context, gatewayOrderID string) (*entity.Donation, error)
	FindByCampaignAndReceipt(ctx context.Context, campaignID, receipt string) (*entity.Donation, error)
	List(ctx context.Context, filter repository.DonationFilter) ([]*entity.Donation, error)
	ListDueNotifyDispatch(ctx context.Context, now time.Time, limit int32) ([]*entity.Donation, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Donation, error)
	ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Donation, error)
}

type donationEventRepository interface {
	Create(ctx context.Context, event *entity.DonationEvent) error
}

type gatewayWebhookRepository interface {
	Create(ctx context.Context, webhook *entity.GatewayWebhook) error
}

type certificateRenderer interface {
	Render(donation *entity.Donation) ([]byte, error)
}

type DonationService struct {
	donationRepo donationRepository
	eventRepo    donationEventRepository
	webhookRepo  gatewayWebhookRepository
	gatewayReg   *gateway.Registry
	donationsCfg config.DonationsConfig
	certificates certificateRenderer
	notifyHTTP   *http.Client
}

func NewDonationService(
	donationRepo donationRepository,
	eventRepo donationEventRepository,
	webhookRepo gatewayWebhookRepository,
	gatewayReg *gateway.Registry,
	donationsCfg config.DonationsConfig,
	certificates certificateRenderer,
) *DonationService {
	timeout := donationsCfg.NotifyHTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &DonationService{
		donationRepo: donationRepo,
		eventRepo:    eventRepo,
		webhookRepo:  webhookRepo,
		gatewayReg:   gatewayReg,
		donationsCfg: donationsCfg,
		certificates: certificates,
		notifyHTTP:   &http.Client{Timeout: timeout},
	}
}

// CreateOrder validates the donation intent, obtains an order from the payment
// gateway, and persists the donation in pending state. Idempotent on
// (campaignId, receipt) when the caller supplies a receipt.
func (s *DonationService) CreateOrder(ctx context.Context, req *types.CreateOrderRequest) (*entity.Donation, error) {
	campaignID := strings.TrimSpace(req.CampaignID)
	if campaignID == "" || req.AmountPaise <= 0 {
		return nil, ErrInvalidRequest
	}

	receipt := strings.TrimSpace(req.Receipt)
	if receipt != "" {
		existing, err := s.donationRepo.FindByCampaignAndReceipt(ctx, campaignID, receipt)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	} else {
		receipt = uuid.NewString()
	}

	gw, err := s.gatewayReg.Get(gateway.CodeRazorpay)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}

	orderOut, err := gw.CreateOrder(ctx, &gateway.OrderInput{
		Receipt:     receipt,
		CampaignID:  campaignID,
		AmountPaise: req.AmountPaise,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	orderID := orderOut.GatewayOrderID
	donation := &entity.Donation{
		PublicID:       uuid.NewString(),
		CampaignID:     campaignID,
		Receipt:        receipt,
		DonorName:      strings.TrimSpace(req.DonorName),
		DonorEmail:     strings.TrimSpace(req.DonorEmail),
		DonorPhone:     normalizeOptionalString(req.DonorPhone),
		DonorPAN:       normalizeOptionalString(strings.ToUpper(req.DonorPAN)),
		Anonymous:      req.Anonymous,
		AmountPaise:    orderOut.AmountPaise,
		Currency:       orderOut.Currency,
		Status:         orderOut.InitialStatus,
		Gateway:        gw.Code(),
		GatewayOrderID: &orderID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.donationRepo.Create(ctx, donation); err != nil {
		if errors.Is(err, repository.ErrDonationAlreadyExists) {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
		DonationID: donation.ID,
		EventType:  "donation_created",
		NewStatus:  donation.Status,
		CreatedAt:  now,
	})

	return donation, nil
}

// VerifyPayment checks the gateway checkout signature for a donation and marks
// it paid. A donation that is already paid (the webhook can land first) yields
// ErrAlreadyProcessed so the HTTP layer can answer with a machine-readable
// code instead of an ambiguous failure.
func (s *DonationService) VerifyPayment(ctx context.Context, req *types.VerifyPaymentRequest) (*entity.Donation, error) {
	donation, err := s.donationRepo.FindByPublicID(ctx, strings.TrimSpace(req.DonationID))
	if err != nil {
		return nil, err
	}
	if donation == nil {
		return nil, ErrDonationNotFound
	}

	orderID := strings.TrimSpace(req.RazorpayOrderID)
	if donation.GatewayOrderID == nil || *donation.GatewayOrderID != orderID {
		return nil, ErrOrderMismatch
	}

	if donation.Status == entity.StatusPaid {
		return donation, ErrAlreadyProcessed
	}

	gw, err := s.gatewayReg.Get(donation.Gateway)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}

	paymentID := strings.TrimSpace(req.RazorpayPaymentID)
	signature := strings.TrimSpace(req.RazorpaySignature)
	now := time.Now().UTC()
	oldStatus := donation.Status

	if err := gw.VerifySignature(orderID, paymentID, signature); err != nil {
		if errors.Is(err, gateway.ErrSignatureMismatch) {
			reason := "signature verification failed"
			donation.Status = entity.StatusFailed
			donation.FailureReason = &reason
			donation.UpdatedAt = now
			s.markForNotifyDispatch(donation, now)
			if updateErr := s.donationRepo.Update(ctx, donation); updateErr != nil {
				return nil, updateErr
			}
			_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
				DonationID: donation.ID,
				EventType:  "verification_failed",
				OldStatus:  &oldStatus,
				NewStatus:  donation.Status,
				CreatedAt:  now,
			})
			return nil, ErrSignatureMismatch
		}
		return nil, err
	}

	donation.Status = entity.StatusPaid
	donation.GatewayPaymentID = &paymentID
	donation.GatewaySignature = &signature
	donation.FailureReason = nil
	donation.UpdatedAt = now
	s.markForNotifyDispatch(donation, now)

	if err := s.donationRepo.Update(ctx, donation); err != nil {
		if errors.Is(err, repository.ErrDonationNotFound) {
			return nil, ErrDonationNotFound
		}
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
		DonationID: donation.ID,
		EventType:  "payment_verified",
		OldStatus:  &oldStatus,
		NewStatus:  donation.Status,
		CreatedAt:  now,
	})

	return donation, nil
}

func (s *DonationService) GetDonation(ctx context.Context, donationID string) (*entity.Donation, error) {
	donation, err := s.donationRepo.FindByPublicID(ctx, strings.TrimSpace(donationID))
	if err != nil {
		return nil, err
	}
	if donation == nil {
		return nil, ErrDonationNotFound
	}
	return donation, nil
}

func (s *DonationService) ListDonations(ctx context.Context, req *types.ListDonationsRequest) ([]*entity.Donation, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.donationRepo.List(ctx, repository.DonationFilter{
		CampaignID: strings.TrimSpace(req.CampaignID),
		HasStatus:  req.HasStatus,
		Status:     req.Status,
		Limit:      limit,
		Offset:     req.Offset,
	})
}

// Certificate renders the 80G tax-exemption certificate for a paid donation.
func (s *DonationService) Certificate(ctx context.Context, donationID string) ([]byte, error) {
	donation, err := s.GetDonation(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if donation.Status != entity.StatusPaid {
		return nil, ErrCertificateUnavailable
	}
	return s.certificates.Render(donation)
}

func (s *DonationService) markForNotifyDispatch(donation *entity.Donation, now time.Time) {
	donation.NotifyDeliveryStatus = entity.NotifyDeliveryPending
	donation.NotifyDeliveryAttempts = 0
	donation.NotifyDeliveryNextAt = &now
	donation.NotifyDeliveryLastErr = nil
}

func (s *DonationService) batchSize() int32 {
	if s.donationsCfg.JobBatchSize > 0 {
		return s.donationsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
