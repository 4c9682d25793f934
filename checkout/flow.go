package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sahayog/ms-go-donations/app/factory"
)

// State is where a running payment attempt currently is.
type State int32

const (
	StateIdle State = iota
	StateOrdering
	StateAwaitingConfirmation
	StateVerifying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOrdering:
		return "ordering"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateVerifying:
		return "verifying"
	default:
		return "unknown"
	}
}

// ErrFlowBusy is returned when Run is called while a previous attempt is
// still in flight. Callers are expected to disable submission while a run
// is active; this is the backstop.
var ErrFlowBusy = errors.New("a payment attempt is already in progress")

const (
	msgOrderFailed      = "We could not start your donation. Please try again."
	msgWidgetLoadFailed = "The payment window could not be loaded. Please check your connection and try again."
	msgVerifyTerminal   = "Your payment could not be verified. If money was deducted, please contact support with your donation reference."
	msgVerifyRecover    = "We could not confirm your payment right now. If money was deducted it will be confirmed shortly. Please check your email before retrying."
	msgSucceeded        = "Thank you for your donation. Your tax certificate will be emailed to you."
)

// Flow runs one donation payment end to end: create the order, collect
// payment through the hosted widget, then verify server side. A Flow is
// reusable across attempts but runs at most one at a time.
type Flow struct {
	api          *APIClient
	loader       *Loader
	confirmer    Confirmer
	merchantName string
	description  string
	onSuccess    func(*Result)
	log          logrus.FieldLogger

	mu             sync.Mutex
	state          State
	lastDonationID string
}

// FlowOption customizes a Flow.
type FlowOption func(*Flow)

// WithMerchant sets the name and description shown in the payment widget.
func WithMerchant(name, description string) FlowOption {
	return func(f *Flow) {
		f.merchantName = name
		f.description = description
	}
}

// WithSuccessCallback registers a hook invoked after a verified payment.
func WithSuccessCallback(fn func(*Result)) FlowOption {
	return func(f *Flow) { f.onSuccess = fn }
}

// NewFlow wires a payment flow from its three collaborators.
func NewFlow(api *APIClient, loader *Loader, confirmer Confirmer, opts ...FlowOption) *Flow {
	f := &Flow{
		api:       api,
		loader:    loader,
		confirmer: confirmer,
		log:       factory.NewModuleLogger("checkout-flow"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State reports where the current attempt is. Between attempts it is
// StateIdle.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastDonationID is the donation created by the most recent attempt that
// got past order creation. It survives failed attempts so a stuck payment
// can be traced.
func (f *Flow) LastDonationID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastDonationID
}

// Run executes one payment attempt. Validation and configuration problems
// are returned as errors before anything is sent over the network; once the
// attempt is underway the disposition comes back as a Result and the error
// is nil. A cancelled widget yields OutcomeCancelled with no message, so
// the donor can simply try again with the form still filled in.
func (f *Flow) Run(ctx context.Context, intent *DonationIntent) (*Result, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	if f.loader.key == "" {
		return nil, &ConfigurationError{Setting: "gateway key"}
	}
	if !f.begin() {
		return nil, ErrFlowBusy
	}
	defer f.finish()

	log := f.log.WithField("campaign_id", intent.CampaignID)

	created, err := f.api.CreateOrder(ctx, intent)
	if err != nil {
		log.WithError(err).Error("order creation failed")
		return &Result{Outcome: OutcomeFailedTerminal, Message: orderFailureMessage(err), Err: err}, nil
	}
	f.setDonationID(created.DonationID)
	log = log.WithField("donation_id", created.DonationID)

	if err := f.loader.Ensure(ctx); err != nil {
		log.WithError(err).Error("payment widget unavailable")
		return &Result{Outcome: OutcomeFailedTerminal, DonationID: created.DonationID, Message: msgWidgetLoadFailed, Err: err}, nil
	}

	f.setState(StateAwaitingConfirmation)
	confirmation, err := f.confirmer.Confirm(ctx, &CheckoutSession{
		Key:          f.loader.key,
		Order:        created.Order,
		DonationID:   created.DonationID,
		MerchantName: f.merchantName,
		Description:  f.description,
		DonorName:    intent.DonorName,
		DonorEmail:   intent.DonorEmail,
		DonorPhone:   intent.DonorPhone,
	})
	if err != nil {
		return f.confirmationResult(log, created.DonationID, err), nil
	}

	f.setState(StateVerifying)
	donation, err := f.api.VerifyWithRetry(ctx, &VerifyRequest{
		DonationID: created.DonationID,
		OrderID:    confirmation.OrderID,
		PaymentID:  confirmation.PaymentID,
		Signature:  confirmation.Signature,
	})
	if err != nil {
		return f.verificationResult(ctx, log, created.DonationID, err), nil
	}

	log.Info("donation verified")
	result := &Result{
		Outcome:    OutcomeSucceeded,
		DonationID: created.DonationID,
		Donation:   donation,
		Message:    msgSucceeded,
	}
	f.notifySuccess(result)
	return result, nil
}

// orderFailureMessage prefers the service's own explanation of a rejected
// order, when it sent one, over the generic fallback.
func orderFailureMessage(err error) string {
	var apiErr *APIError
	if Classify(err) == ClassTerminal && errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return msgOrderFailed
}

func (f *Flow) confirmationResult(log logrus.FieldLogger, donationID string, err error) *Result {
	switch Classify(err) {
	case ClassCancelled:
		log.Info("donor dismissed the payment widget")
		return &Result{Outcome: OutcomeCancelled, DonationID: donationID, Err: err}
	case ClassPaymentFailed:
		log.WithError(err).Warn("gateway rejected the payment")
		return &Result{Outcome: OutcomeFailedTerminal, DonationID: donationID, Message: err.Error(), Err: err}
	default:
		log.WithError(err).Error("payment confirmation failed")
		return &Result{Outcome: OutcomeFailedTerminal, DonationID: donationID, Message: msgVerifyTerminal, Err: err}
	}
}

func (f *Flow) verificationResult(ctx context.Context, log logrus.FieldLogger, donationID string, err error) *Result {
	switch Classify(err) {
	case ClassReconciled:
		// The webhook settled the payment before we could verify it. That
		// is a success; fetch the final record if the service will give it.
		log.Info("payment already recorded through webhook")
		donation, fetchErr := f.api.GetDonation(ctx, donationID)
		if fetchErr != nil {
			log.WithError(fetchErr).Warn("could not fetch reconciled donation")
		}
		result := &Result{
			Outcome:    OutcomeSucceeded,
			DonationID: donationID,
			Donation:   donation,
			Message:    msgSucceeded,
		}
		f.notifySuccess(result)
		return result
	case ClassTransient:
		log.WithError(err).Error("verification retries exhausted")
		return &Result{Outcome: OutcomeFailedRecoverable, DonationID: donationID, Message: msgVerifyRecover, Err: err}
	default:
		log.WithError(err).Error("verification failed")
		return &Result{Outcome: OutcomeFailedTerminal, DonationID: donationID, Message: msgVerifyTerminal, Err: err}
	}
}

func (f *Flow) notifySuccess(result *Result) {
	if f.onSuccess != nil {
		f.onSuccess(result)
	}
}

func (f *Flow) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateIdle {
		return false
	}
	f.state = StateOrdering
	return true
}

func (f *Flow) finish() {
	f.mu.Lock()
	f.state = StateIdle
	f.mu.Unlock()
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) setDonationID(id string) {
	f.mu.Lock()
	f.lastDonationID = id
	f.mu.Unlock()
}
