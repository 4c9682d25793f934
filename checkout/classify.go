package checkout

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// Class is the failure classification computed once at the error boundary.
// Everything downstream (retry policy, outcome mapping, donor messaging)
// branches on the class, never on error text.
type Class int32

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassConfiguration
	ClassCancelled
	ClassPaymentFailed
	ClassTransient
	ClassTerminal
	ClassReconciled
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassConfiguration:
		return "configuration"
	case ClassCancelled:
		return "cancelled"
	case ClassPaymentFailed:
		return "payment_failed"
	case ClassTransient:
		return "transient"
	case ClassTerminal:
		return "terminal"
	case ClassReconciled:
		return "reconciled"
	default:
		return "unknown"
	}
}

// Classify maps an error from any step of the flow to its class.
//
// An *APIError carries an HTTP response: the already_processed code means
// the webhook won the race and the payment is reconciled, any other 4xx is
// terminal, and a 5xx is treated as transient because the server state is
// unknown. Errors with no HTTP response at all (timeouts, refused
// connections, DNS failures) are transient. Unrecognized errors default to
// terminal so the flow never retries blindly.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ClassValidation
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ClassConfiguration
	}
	if errors.Is(err, ErrCancelled) {
		return ClassCancelled
	}
	var pf *PaymentFailedError
	if errors.As(err, &pf) {
		return ClassPaymentFailed
	}
	var ae *APIError
	if errors.As(err, &ae) {
		if ae.Code == "already_processed" {
			return ClassReconciled
		}
		if ae.StatusCode >= 400 && ae.StatusCode < 500 {
			return ClassTerminal
		}
		return ClassTransient
	}
	if errors.Is(err, ErrMalformedOrder) {
		return ClassTerminal
	}
	if isNetworkError(err) {
		return ClassTransient
	}
	return ClassTerminal
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	// Transport errors wrapped by intermediate layers lose their type but
	// keep the signature in the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "network")
}

// ConfigurationError means the client is missing a deploy-time setting,
// such as the gateway public key. Donors cannot fix it by retrying.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return "checkout is not configured: missing " + e.Setting
}
