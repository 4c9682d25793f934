package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/sahayog/ms-go-donations/app/entity"
	"github.com/sahayog/ms-go-donations/app/gateway"
	"github.com/sahayog/ms-go-donations/app/repository"
	"github.com/sahayog/ms-go-donations/app/service"
	"github.com/sahayog/ms-go-donations/app/types"
	"github.com/sahayog/ms-go-donations/config"
)

type controllerDonationRepo struct {
	createFn                   func(ctx context.Context, donation *entity.Donation) error
	updateFn                   func(ctx context.Context, donation *entity.Donation) error
	findByPublicIDFn           func(ctx context.Context, publicID string) (*entity.Donation, error)
	findByOrderIDFn            func(ctx context.Context, gatewayOrderID string) (*entity.Donation, error)
	findByCampaignAndReceiptFn func(ctx context.Context, campaignID, receipt string) (*entity.Donation, error)
	listFn                     func(ctx context.Context, filter repository.DonationFilter) ([]*entity.Donation, error)
}

func (r *controllerDonationRepo) Create(ctx context.Context, donation *entity.Donation) error {
	if r.createFn != nil {
		return r.createFn(ctx, donation)
	}
	return nil
}

func (r *controllerDonationRepo) Update(ctx context.Context, donation *entity.Donation) error {
	if r.updateFn != nil {
		return r.updateFn(ctx, donation)
	}
	return nil
}

func (r *controllerDonationRepo) FindByPublicID(ctx context.Context, publicID string) (*entity.Donation, error) {
	if r.findByPublicIDFn != nil {
		return r.findByPublicIDFn(ctx, publicID)
	}
	return nil, nil
}

func (r *controllerDonationRepo) FindByOrderID(ctx context.Context, gatewayOrderID string) (*entity.Donation, error) {
	if r.findByOrderIDFn != nil {
		return r.findByOrderIDFn(ctx, gatewayOrderID)
	}
	return nil, nil
}

func (r *controllerDonationRepo) FindByCampaignAndReceipt(ctx context.Context, campaignID, receipt string) (*entity.Donation, error) {
	if r.findByCampaignAndReceiptFn != nil {
		return r.findByCampaignAndReceiptFn(ctx, campaignID, receipt)
	}
	return nil, nil
}

func (r *controllerDonationRepo) List(ctx context.Context, filter repository.DonationFilter) ([]*entity.Donation, error) {
	if r.listFn != nil {
		return r.listFn(ctx, filter)
	}
	return []*entity.Donation{}, nil
}

func (r *controllerDonationRepo) ListDueNotifyDispatch(context.Context, time.Time, int32) ([]*entity.Donation, error) {
	return []*entity.Donation{}, nil
}

func (r *controllerDonationRepo) ListExpiredPending(context.Context, time.Time, int32) ([]*entity.Donation, error) {
	return []*entity.Donation{}, nil
}

func (r *controllerDonationRepo) ListForReconcile(context.Context, time.Time, int32) ([]*entity.Donation, error) {
	return []*entity.Donation{}, nil
}

type controllerEventRepo struct{}

func (r *controllerEventRepo) Create(context.Context, *entity.DonationEvent) error {
	return nil
}

type controllerWebhookRepo struct{}

func (r *controllerWebhookRepo) Create(context.Context, *entity.GatewayWebhook) error {
	return nil
}

type controllerGateway struct {
	signatureErr error
}

func (g *controllerGateway) Code() int32 {
	return gateway.CodeRazorpay
}

func (g *controllerGateway) CreateOrder(_ context.Context, input *gateway.OrderInput) (*gateway.OrderOutput, error) {
	return &gateway.OrderOutput{
		GatewayOrderID: "order_test_1",
		AmountPaise:    input.AmountPaise,
		Currency:       "INR",
		InitialStatus:  entity.StatusPending,
	}, nil
}

func (g *controllerGateway) VerifySignature(_, _, _ string) error {
	return g.signatureErr
}

func (g *controllerGateway) VerifyAndParseWebhook(context.Context, []byte, string) (*gateway.WebhookEvent, error) {
	return nil, gateway.ErrSignatureMismatch
}

func (g *controllerGateway) FetchOrderStatus(context.Context, string) (*gateway.OrderStatus, error) {
	return &gateway.OrderStatus{}, nil
}

type controllerCertificates struct{}

func (controllerCertificates) Render(*entity.Donation) ([]byte, error) {
	return []byte("png"), nil
}

func newControllerForTest(repo *controllerDonationRepo, gw gateway.Gateway) *DonationController {
	donationService := service.NewDonationService(
		repo,
		&controllerEventRepo{},
		&controllerWebhookRepo{},
		gateway.NewRegistry(gw),
		config.DonationsConfig{NotifyMaxAttempts: 3, NotifyRetryInterval: time.Minute, PendingTimeout: time.Hour, ReconcileStaleAfter: time.Minute, JobBatchSize: 100},
		controllerCertificates{},
	)
	return NewDonationController(donationService)
}

func pendingDonation(publicID, orderID string) *entity.Donation {
	now := time.Now().UTC()
	return &entity.Donation{
		ID:             7,
		PublicID:       publicID,
		CampaignID:     "c1",
		Receipt:        "rcpt-1",
		DonorName:      "Asha Rao",
		DonorEmail:     "asha@example.org",
		AmountPaise:    50_000,
		Currency:       "INR",
		Status:         entity.StatusPending,
		Gateway:        gateway.CodeRazorpay,
		GatewayOrderID: &orderID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreateOrderBadBody(t *testing.T) {
	ctrl := newControllerForTest(&controllerDonationRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/donations/orders", bytes.NewBufferString("{bad"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := ctrl.CreateOrder(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	repo := &controllerDonationRepo{createFn: func(_ context.Context, donation *entity.Donation) error {
		donation.ID = 22
		return nil
	}}
	ctrl := newControllerForTest(repo, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/donations/orders", bytes.NewBufferString(`{"campaignId":"c1","amountPaise":50000,"donorName":"Asha Rao","donorEmail":"asha@example.org"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.CreateOrder(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.CreateOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Order == nil || payload.Order.ID != "order_test_1" {
		t.Fatalf("unexpected order payload: %+v", payload.Order)
	}
	if payload.Order.AmountPaise != 50_000 {
		t.Fatalf("expected amount 50000, got %d", payload.Order.AmountPaise)
	}
	if payload.DonationID == "" {
		t.Fatal("expected a donation id")
	}
}

func TestVerifyPaymentAlreadyProcessedCode(t *testing.T) {
	repo := &controllerDonationRepo{findByPublicIDFn: func(context.Context, string) (*entity.Donation, error) {
		donation := pendingDonation("d1", "order_1")
		donation.Status = entity.StatusPaid
		return donation, nil
	}}
	ctrl := newControllerForTest(repo, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/donations/verify", bytes.NewBufferString(`{"donationId":"d1","razorpayOrderId":"order_1","razorpayPaymentId":"pay_1","razorpaySignature":"sig_1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.VerifyPayment(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Code != types.CodeAlreadyProcessed {
		t.Fatalf("expected already_processed code, got %q", payload.Code)
	}
}

func TestVerifyPaymentSignatureMismatch(t *testing.T) {
	repo := &controllerDonationRepo{findByPublicIDFn: func(context.Context, string) (*entity.Donation, error) {
		return pendingDonation("d1", "order_1"), nil
	}}
	ctrl := newControllerForTest(repo, &controllerGateway{signatureErr: gateway.ErrSignatureMismatch})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/donations/verify", bytes.NewBufferString(`{"donationId":"d1","razorpayOrderId":"order_1","razorpayPaymentId":"pay_1","razorpaySignature":"bad"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.VerifyPayment(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var payload types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Code != types.CodeSignatureMismatch {
		t.Fatalf("expected signature_mismatch code, got %q", payload.Code)
	}
}

func TestVerifyPaymentSuccess(t *testing.T) {
	repo := &controllerDonationRepo{findByPublicIDFn: func(context.Context, string) (*entity.Donation, error) {
		return pendingDonation("d1", "order_1"), nil
	}}
	ctrl := newControllerForTest(repo, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/donations/verify", bytes.NewBufferString(`{"donationId":"d1","razorpayOrderId":"order_1","razorpayPaymentId":"pay_1","razorpaySignature":"sig_1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.VerifyPayment(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.DonationEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Donation == nil || payload.Donation.Status != "paid" {
		t.Fatalf("unexpected donation payload: %+v", payload.Donation)
	}
	if payload.Donation.PaymentID != "pay_1" {
		t.Fatalf("expected payment id pay_1, got %q", payload.Donation.PaymentID)
	}
}

func TestGetDonationNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerDonationRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/donations/d9", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("donationId")
	ctx.SetParamValues("d9")

	_ = ctrl.GetDonation(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlerLogsCarryRequestID(t *testing.T) {
	hook := logtest.NewLocal(logrus.StandardLogger())
	defer hook.Reset()

	ctrl := newControllerForTest(&controllerDonationRepo{findByPublicIDFn: func(context.Context, string) (*entity.Donation, error) {
		return nil, errors.New("storage offline")
	}}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/donations/d9", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("donationId")
	ctx.SetParamValues("d9")

	_ = ctrl.GetDonation(ctx)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if got := entry.Data["request_id"]; got != "req-123" {
		t.Fatalf("expected request_id req-123, got %v", got)
	}
}

func TestListDonationsSuccess(t *testing.T) {
	ctrl := newControllerForTest(&controllerDonationRepo{listFn: func(context.Context, repository.DonationFilter) ([]*entity.Donation, error) {
		return []*entity.Donation{pendingDonation("d1", "order_1")}, nil
	}}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/donations?campaign_id=c1&limit=10", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.ListDonations(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.ListDonationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(payload.Donations) != 1 {
		t.Fatalf("expected one donation, got %d", len(payload.Donations))
	}
}

func TestCertificatePendingDonation(t *testing.T) {
	repo := &controllerDonationRepo{findByPublicIDFn: func(context.Context, string) (*entity.Donation, error) {
		return pendingDonation("d1", "order_1"), nil
	}}
	ctrl := newControllerForTest(repo, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/donations/d1/certificate", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("donationId")
	ctx.SetParamValues("d1")

	_ = ctrl.Certificate(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var payload types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Code != types.CodeCertificatePending {
		t.Fatalf("expected certificate_pending code, got %q", payload.Code)
	}
}

func TestCertificatePaidDonation(t *testing.T) {
	repo := &controllerDonationRepo{findByPublicIDFn: func(context.Context, string) (*entity.Donation, error) {
		donation := pendingDonation("d1", "order_1")
		donation.Status = entity.StatusPaid
		return donation, nil
	}}
	ctrl := newControllerForTest(repo, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/donations/d1/certificate", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("donationId")
	ctx.SetParamValues("d1")

	_ = ctrl.Certificate(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderContentType) != "image/png" {
		t.Fatalf("expected image/png, got %s", rec.Header().Get(echo.HeaderContentType))
	}
}

func TestHandleGatewayWebhookRejected(t *testing.T) {
	ctrl := newControllerForTest(&controllerDonationRepo{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateways/razorpay", bytes.NewBufferString(`{"event":"payment.captured"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Razorpay-Signature", "bad")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("gateway")
	ctx.SetParamValues("razorpay")

	_ = ctrl.HandleGatewayWebhook(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
