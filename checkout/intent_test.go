package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentValidate(t *testing.T) {
	t.Run("valid intent is normalized", func(t *testing.T) {
		intent := &DonationIntent{
			CampaignID:  "  c1  ",
			AmountPaise: 50_000,
			Currency:    "inr",
			DonorName:   " Asha Rao ",
			DonorEmail:  "asha@example.org",
			DonorPAN:    "abcde1234f",
		}
		require.NoError(t, intent.Validate())
		assert.Equal(t, "c1", intent.CampaignID)
		assert.Equal(t, "INR", intent.Currency)
		assert.Equal(t, "Asha Rao", intent.DonorName)
		assert.Equal(t, "ABCDE1234F", intent.DonorPAN)
	})

	t.Run("anonymous needs no donor identity", func(t *testing.T) {
		intent := &DonationIntent{CampaignID: "c1", AmountPaise: 100, Anonymous: true}
		assert.NoError(t, intent.Validate())
	})

	cases := []struct {
		name   string
		mutate func(*DonationIntent)
		field  string
	}{
		{"missing campaign", func(i *DonationIntent) { i.CampaignID = "" }, "campaignId"},
		{"zero amount", func(i *DonationIntent) { i.AmountPaise = 0 }, "amountPaise"},
		{"negative amount", func(i *DonationIntent) { i.AmountPaise = -100 }, "amountPaise"},
		{"amount over cap", func(i *DonationIntent) { i.AmountPaise = maxAmountPaise + 1 }, "amountPaise"},
		{"bad currency", func(i *DonationIntent) { i.Currency = "RUPEES" }, "currency"},
		{"missing name", func(i *DonationIntent) { i.DonorName = "" }, "donorName"},
		{"missing email", func(i *DonationIntent) { i.DonorEmail = "" }, "donorEmail"},
		{"bad email", func(i *DonationIntent) { i.DonorEmail = "not-an-address" }, "donorEmail"},
		{"bad pan", func(i *DonationIntent) { i.DonorPAN = "short" }, "donorPan"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			intent := testIntent()
			tc.mutate(intent)
			err := intent.Validate()
			require.Error(t, err)
			require.True(t, IsValidationError(err))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}
