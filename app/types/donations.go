package types

import (
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Machine-readable error codes carried alongside human messages. Clients key
// their reconciliation on codes, never on message substrings.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeNotFound           = "not_found"
	CodeAlreadyProcessed   = "already_processed"
	CodeSignatureMismatch  = "signature_mismatch"
	CodeGatewayRejected    = "gateway_rejected"
	CodeCertificatePending = "certificate_pending"
	CodeInternal           = "internal_error"
)

// Donation amounts are integer paise end to end. ₹5 crore ceiling per donation.
const maxAmountPaise = int64(50_000_000_00)

var panPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

type CreateOrderRequest struct {
	CampaignID  string `json:"campaignId"`
	AmountPaise int64  `json:"amountPaise"`
	Currency    string `json:"currency"`
	Anonymous   bool   `json:"isAnonymous"`
	DonorName   string `json:"donorName"`
	DonorEmail  string `json:"donorEmail"`
	DonorPhone  string `json:"donorPhone,omitempty"`
	DonorPAN    string `json:"donorPan,omitempty"`
	Receipt     string `json:"receipt,omitempty"`
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.CampaignID = strings.TrimSpace(body.CampaignID)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	if body.Currency == "" {
		body.Currency = "INR"
	}
	body.DonorName = strings.TrimSpace(body.DonorName)
	body.DonorEmail = strings.TrimSpace(body.DonorEmail)
	body.DonorPhone = strings.TrimSpace(body.DonorPhone)
	body.DonorPAN = strings.ToUpper(strings.TrimSpace(body.DonorPAN))
	body.Receipt = strings.TrimSpace(body.Receipt)

	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	if r.CampaignID == "" {
		return errors.New("campaignId is required")
	}
	if r.AmountPaise <= 0 {
		return errors.New("amountPaise must be > 0")
	}
	if r.AmountPaise > maxAmountPaise {
		return errors.New("amountPaise exceeds the platform maximum")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if !r.Anonymous {
		if r.DonorName == "" {
			return errors.New("donorName is required")
		}
		if r.DonorEmail == "" {
			return errors.New("donorEmail is required")
		}
	}
	if r.DonorEmail != "" && !strings.Contains(r.DonorEmail, "@") {
		return errors.New("donorEmail is invalid")
	}
	if r.DonorPAN != "" && !panPattern.MatchString(r.DonorPAN) {
		return errors.New("donorPan must be 10 alphanumeric characters")
	}
	return nil
}

type VerifyPaymentRequest struct {
	DonationID        string `json:"donationId"`
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
}

func NewVerifyPaymentRequestFromContext(ctx echo.Context) (*VerifyPaymentRequest, error) {
	var body VerifyPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.DonationID = strings.TrimSpace(body.DonationID)
	body.RazorpayOrderID = strings.TrimSpace(body.RazorpayOrderID)
	body.RazorpayPaymentID = strings.TrimSpace(body.RazorpayPaymentID)
	body.RazorpaySignature = strings.TrimSpace(body.RazorpaySignature)

	return &body, nil
}

func (r *VerifyPaymentRequest) Validate() error {
	if r.DonationID == "" {
		return errors.New("donationId is required")
	}
	if r.RazorpayOrderID == "" {
		return errors.New("razorpayOrderId is required")
	}
	if r.RazorpayPaymentID == "" {
		return errors.New("razorpayPaymentId is required")
	}
	if r.RazorpaySignature == "" {
		return errors.New("razorpaySignature is required")
	}
	return nil
}

type GetDonationRequest struct {
	DonationID string
}

func NewGetDonationRequestFromContext(ctx echo.Context) (*GetDonationRequest, error) {
	return &GetDonationRequest{DonationID: strings.TrimSpace(ctx.Param("donationId"))}, nil
}

func (r *GetDonationRequest) Validate() error {
	if r.DonationID == "" {
		return errors.New("donationId is required")
	}
	return nil
}

type ListDonationsRequest struct {
	CampaignID string
	HasStatus  bool
	Status     int32
	Limit      int32
	Offset     int32
}

func NewListDonationsRequestFromContext(ctx echo.Context) (*ListDonationsRequest, error) {
	req := &ListDonationsRequest{
		CampaignID: strings.TrimSpace(ctx.QueryParam("campaign_id")),
		Limit:      100,
		Offset:     0,
	}

	if statusRaw := strings.TrimSpace(ctx.QueryParam("status")); statusRaw != "" {
		status, err := strconv.ParseInt(statusRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.HasStatus = true
		req.Status = int32(status)
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListDonationsRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}

type GatewayWebhookRequest struct {
	Gateway   string
	Signature string
	Payload   string
}

func NewGatewayWebhookRequestFromContext(ctx echo.Context) (*GatewayWebhookRequest, error) {
	signature := strings.TrimSpace(ctx.Request().Header.Get("X-Razorpay-Signature"))
	if signature == "" {
		signature = strings.TrimSpace(ctx.Request().Header.Get("X-Gateway-Signature"))
	}

	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	return &GatewayWebhookRequest{
		Gateway:   strings.ToLower(strings.TrimSpace(ctx.Param("gateway"))),
		Signature: signature,
		Payload:   string(rawBody),
	}, nil
}

func (r *GatewayWebhookRequest) Validate() error {
	if r.Gateway == "" {
		return errors.New("gateway is required")
	}
	if r.Signature == "" {
		return errors.New("gateway signature is required")
	}
	if strings.TrimSpace(r.Payload) == "" {
		return errors.New("payload is required")
	}
	return nil
}
