package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrMalformedOrder is returned when the order endpoint answers 2xx but the
// body does not contain a usable order. It is a hard failure distinct from
// a network error and is never retried.
var ErrMalformedOrder = errors.New("order response is missing the order")

// APIError is a non-2xx answer from the donations service, decoded from
// its error envelope. Code is the machine-readable discriminator.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("donations api: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("donations api: status %d", e.StatusCode)
}

// TokenSource supplies the bearer token for authenticated calls. Refresh is
// invoked once when the service answers 401, after which the request is
// replayed with the new token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Order is the gateway order the widget collects payment against. Amount is
// integer paise, matching the wire format.
type Order struct {
	ID          string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Donation mirrors the service's donation resource.
type Donation struct {
	DonationID  string `json:"donationId"`
	CampaignID  string `json:"campaignId"`
	DonorName   string `json:"donorName,omitempty"`
	DonorEmail  string `json:"donorEmail,omitempty"`
	Anonymous   bool   `json:"isAnonymous"`
	AmountPaise int64  `json:"amountPaise"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	OrderID     string `json:"orderId,omitempty"`
	PaymentID   string `json:"paymentId,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// CreateOrderResult pairs the gateway order with the server-side donation
// record it belongs to.
type CreateOrderResult struct {
	Order      Order
	DonationID string
}

type createOrderRequest struct {
	CampaignID  string `json:"campaignId"`
	AmountPaise int64  `json:"amountPaise"`
	Currency    string `json:"currency,omitempty"`
	Anonymous   bool   `json:"isAnonymous,omitempty"`
	DonorName   string `json:"donorName,omitempty"`
	DonorEmail  string `json:"donorEmail,omitempty"`
	DonorPhone  string `json:"donorPhone,omitempty"`
	DonorPAN    string `json:"donorPan,omitempty"`
	Receipt     string `json:"receipt,omitempty"`
}

type createOrderResponse struct {
	Order      *Order `json:"order"`
	DonationID string `json:"donationId"`
}

// VerifyRequest carries the gateway confirmation back to the service for
// signature verification.
type VerifyRequest struct {
	DonationID string `json:"donationId"`
	OrderID    string `json:"razorpayOrderId"`
	PaymentID  string `json:"razorpayPaymentId"`
	Signature  string `json:"razorpaySignature"`
}

type donationEnvelope struct {
	Donation *Donation `json:"donation"`
}

// APIClient talks to the donations service. Order creation and verification
// go through a plain HTTP client because neither call may be replayed by a
// transport-level retry; certificate downloads use a retrying client since
// they are idempotent reads.
type APIClient struct {
	baseURL       string
	httpClient    *http.Client
	downloadHTTP  *retryablehttp.Client
	tokens        TokenSource
	verifyBackoff time.Duration
}

// ClientOption customizes an APIClient.
type ClientOption func(*APIClient)

// WithHTTPClient replaces the HTTP client used for order and verify calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(a *APIClient) { a.httpClient = c }
}

// WithTokenSource attaches bearer-token auth to every call.
func WithTokenSource(ts TokenSource) ClientOption {
	return func(a *APIClient) { a.tokens = ts }
}

// WithVerifyBackoff overrides the initial verification retry delay.
func WithVerifyBackoff(d time.Duration) ClientOption {
	return func(a *APIClient) { a.verifyBackoff = d }
}

// NewAPIClient builds a client for the donations service at baseURL.
func NewAPIClient(baseURL string, opts ...ClientOption) *APIClient {
	download := retryablehttp.NewClient()
	download.RetryMax = 3
	download.Logger = nil

	a := &APIClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		downloadHTTP:  download,
		verifyBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.downloadHTTP.HTTPClient.Timeout = a.httpClient.Timeout
	return a
}

// CreateOrder registers the donation and opens a gateway order for it. A
// 2xx response with a missing or empty order is rejected as
// ErrMalformedOrder before any widget could be shown.
func (a *APIClient) CreateOrder(ctx context.Context, intent *DonationIntent) (*CreateOrderResult, error) {
	body := createOrderRequest{
		CampaignID:  intent.CampaignID,
		AmountPaise: intent.AmountPaise,
		Currency:    intent.Currency,
		Anonymous:   intent.Anonymous,
		DonorName:   intent.DonorName,
		DonorEmail:  intent.DonorEmail,
		DonorPhone:  intent.DonorPhone,
		DonorPAN:    intent.DonorPAN,
		Receipt:     intent.Receipt,
	}
	var resp createOrderResponse
	if err := a.postJSON(ctx, "/donations/orders", body, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil || resp.Order.ID == "" || resp.Order.AmountPaise <= 0 {
		return nil, ErrMalformedOrder
	}
	return &CreateOrderResult{Order: *resp.Order, DonationID: resp.DonationID}, nil
}

// Verify submits the gateway confirmation for server-side signature
// verification and returns the updated donation.
func (a *APIClient) Verify(ctx context.Context, req *VerifyRequest) (*Donation, error) {
	var resp donationEnvelope
	if err := a.postJSON(ctx, "/donations/verify", req, &resp); err != nil {
		return nil, err
	}
	if resp.Donation == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "verify response is missing the donation"}
	}
	return resp.Donation, nil
}

// GetDonation fetches the current state of a donation.
func (a *APIClient) GetDonation(ctx context.Context, donationID string) (*Donation, error) {
	var resp donationEnvelope
	if err := a.getJSON(ctx, "/donations/"+donationID, &resp); err != nil {
		return nil, err
	}
	if resp.Donation == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "donation response is missing the donation"}
	}
	return resp.Donation, nil
}

// DownloadCertificate fetches the PNG tax certificate for a paid donation.
func (a *APIClient) DownloadCertificate(ctx context.Context, donationID string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/donations/"+donationID+"/certificate", nil)
	if err != nil {
		return nil, err
	}
	if err := a.authorizeRetryable(ctx, req); err != nil {
		return nil, err
	}
	resp, err := a.downloadHTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (a *APIClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return a.doJSON(ctx, http.MethodPost, path, payload, out)
}

func (a *APIClient) getJSON(ctx context.Context, path string, out interface{}) error {
	return a.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (a *APIClient) doJSON(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	resp, err := a.send(ctx, method, path, payload, false)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && a.tokens != nil {
		resp.Body.Close()
		resp, err = a.send(ctx, method, path, payload, true)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *APIClient) send(ctx context.Context, method, path string, payload []byte, refresh bool) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.tokens != nil {
		token, err := a.token(ctx, refresh)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.httpClient.Do(req)
}

func (a *APIClient) token(ctx context.Context, refresh bool) (string, error) {
	if refresh {
		return a.tokens.Refresh(ctx)
	}
	return a.tokens.Token(ctx)
}

func (a *APIClient) authorizeRetryable(ctx context.Context, req *retryablehttp.Request) error {
	if a.tokens == nil {
		return nil
	}
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Message = envelope.Error
		apiErr.Code = envelope.Code
	}
	return apiErr
}
