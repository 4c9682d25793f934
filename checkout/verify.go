package checkout

import (
	"context"

	"github.com/sethvargo/go-retry"
)

// verifyRetries is the number of retries after the first verification
// attempt, so three attempts in total.
const verifyRetries = 2

// VerifyWithRetry runs server-side verification with exponential backoff.
// Only transient failures are retried; a response from the service, good or
// bad, settles the matter on the spot. With the default backoff the delays
// are one second and then two.
func (a *APIClient) VerifyWithRetry(ctx context.Context, req *VerifyRequest) (*Donation, error) {
	backoff := retry.WithMaxRetries(verifyRetries, retry.NewExponential(a.verifyBackoff))

	var donation *Donation
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		d, err := a.Verify(ctx, req)
		if err != nil {
			if Classify(err) == ClassTransient {
				return retry.RetryableError(err)
			}
			return err
		}
		donation = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return donation, nil
}
