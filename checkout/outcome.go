package checkout

// Outcome is the terminal disposition of one payment attempt.
type Outcome int32

const (
	// OutcomeSucceeded means the server verified the payment, or confirmed
	// it had already been recorded through the webhook path.
	OutcomeSucceeded Outcome = 1

	// OutcomeFailedTerminal means the attempt definitively failed and the
	// donor may retry with a fresh attempt.
	OutcomeFailedTerminal Outcome = 2

	// OutcomeFailedRecoverable means the money may have been captured but
	// verification could not be completed. The donor must confirm out of
	// band before retrying.
	OutcomeFailedRecoverable Outcome = 3

	// OutcomeCancelled means the donor dismissed the payment widget. The
	// intent is preserved so they can try again without re-entering it.
	OutcomeCancelled Outcome = 4
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailedTerminal:
		return "failed_terminal"
	case OutcomeFailedRecoverable:
		return "failed_recoverable"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is what a completed Flow.Run returns. DonationID is set as soon as
// order creation succeeds, even when a later step fails, so support staff
// can reconcile a stuck payment.
type Result struct {
	Outcome    Outcome
	DonationID string
	Donation   *Donation
	Message    string
	Err        error
}
