// Package checkout drives a donation payment from order creation through
// gateway confirmation and server-side verification. It is the client-side
// counterpart of the donations service: callers build a DonationIntent,
// hand it to a Flow, and receive a terminal Result describing whether the
// payment went through, definitively failed, or needs manual confirmation.
package checkout

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const maxAmountPaise = int64(50_000_000_00)

var panPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// DonationIntent is everything the donor submitted on the form. Amounts are
// integer paise throughout; rupees only exist at the display layer.
type DonationIntent struct {
	CampaignID  string
	AmountPaise int64
	Currency    string
	Anonymous   bool
	DonorName   string
	DonorEmail  string
	DonorPhone  string
	DonorPAN    string
	Receipt     string
}

// ValidationError reports a form-level problem. It is raised before any
// network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate normalizes the intent in place and reports the first problem
// found. A nil return means the intent is safe to submit.
func (i *DonationIntent) Validate() error {
	i.CampaignID = strings.TrimSpace(i.CampaignID)
	i.DonorName = strings.TrimSpace(i.DonorName)
	i.DonorEmail = strings.TrimSpace(i.DonorEmail)
	i.DonorPhone = strings.TrimSpace(i.DonorPhone)
	i.DonorPAN = strings.ToUpper(strings.TrimSpace(i.DonorPAN))
	i.Receipt = strings.TrimSpace(i.Receipt)

	if i.CampaignID == "" {
		return &ValidationError{Field: "campaignId", Message: "campaign is required"}
	}
	if i.AmountPaise <= 0 {
		return &ValidationError{Field: "amountPaise", Message: "amount must be a positive number of paise"}
	}
	if i.AmountPaise > maxAmountPaise {
		return &ValidationError{Field: "amountPaise", Message: "amount exceeds the maximum allowed"}
	}
	if i.Currency == "" {
		i.Currency = "INR"
	}
	i.Currency = strings.ToUpper(i.Currency)
	if len(i.Currency) != 3 {
		return &ValidationError{Field: "currency", Message: "currency must be a 3-letter code"}
	}
	if !i.Anonymous {
		if i.DonorName == "" {
			return &ValidationError{Field: "donorName", Message: "donor name is required"}
		}
		if i.DonorEmail == "" {
			return &ValidationError{Field: "donorEmail", Message: "donor email is required"}
		}
	}
	if i.DonorEmail != "" && !strings.Contains(i.DonorEmail, "@") {
		return &ValidationError{Field: "donorEmail", Message: "donor email is not a valid address"}
	}
	if i.DonorPAN != "" && !panPattern.MatchString(i.DonorPAN) {
		return &ValidationError{Field: "donorPan", Message: "PAN must be 10 uppercase letters or digits"}
	}
	return nil
}

// IsValidationError reports whether err originated from intent validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
