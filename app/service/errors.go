package service

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrDonationNotFound       = errors.New("donation not found")
	ErrOrderMismatch          = errors.New("order id does not match donation")
	ErrAlreadyProcessed       = errors.New("donation already processed")
	ErrSignatureMismatch      = errors.New("payment signature verification failed")
	ErrGatewayUnsupported     = errors.New("gateway is not supported")
	ErrWebhookRejected        = errors.New("webhook rejected")
	ErrCertificateUnavailable = errors.New("certificate available only for completed donations")
)
