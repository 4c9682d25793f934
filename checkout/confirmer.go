package checkout

import (
	"context"
	"errors"
)

// ErrCancelled is returned by a Confirmer when the donor dismisses the
// payment widget without paying.
var ErrCancelled = errors.New("payment cancelled by donor")

// PaymentFailedError is returned by a Confirmer when the gateway rejects
// the payment itself, for example a declined card.
type PaymentFailedError struct {
	Reason string
}

func (e *PaymentFailedError) Error() string {
	if e.Reason == "" {
		return "payment failed"
	}
	return "payment failed: " + e.Reason
}

// CheckoutSession is everything the payment widget needs to collect the
// payment for an already-created order.
type CheckoutSession struct {
	Key          string
	Order        Order
	DonationID   string
	MerchantName string
	Description  string
	DonorName    string
	DonorEmail   string
	DonorPhone   string
}

// PaymentConfirmation is the gateway's proof of payment. The signature is
// opaque here; only the server can verify it.
type PaymentConfirmation struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Confirmer presents the hosted payment widget and blocks until the donor
// completes, fails, or dismisses it. Implementations wrap whatever surface
// hosts the widget; the flow only sees the three outcomes.
type Confirmer interface {
	Confirm(ctx context.Context, session *CheckoutSession) (*PaymentConfirmation, error)
}
