package certificate

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/sahayog/ms-go-donations/app/entity"
)

func paidDonation() *entity.Donation {
	pan := "ABCDE1234F"
	return &entity.Donation{
		PublicID:    "d1",
		CampaignID:  "c1",
		Receipt:     "rcpt-1",
		DonorName:   "Asha Rao",
		DonorEmail:  "asha@example.org",
		DonorPAN:    &pan,
		AmountPaise: 50_000,
		Currency:    "INR",
		Status:      entity.StatusPaid,
		UpdatedAt:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderProducesPNG(t *testing.T) {
	renderer := NewRenderer(Config{})
	data, err := renderer.Render(paidDonation())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected decodable png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != certWidth || bounds.Dy() != certHeight {
		t.Fatalf("unexpected certificate size: %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderAnonymousDonation(t *testing.T) {
	renderer := NewRenderer(Config{OrganizationName: "Test Org"})
	donation := paidDonation()
	donation.Anonymous = true

	data, err := renderer.Render(donation)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected certificate bytes")
	}
}

func TestFormatPaise(t *testing.T) {
	cases := map[int64]string{
		50_000:        "500.00",
		1:             "0.01",
		123_456:       "1234.56",
		5_000_000_000: "50000000.00",
	}
	for paise, want := range cases {
		if got := formatPaise(paise); got != want {
			t.Fatalf("formatPaise(%d): expected %q, got %q", paise, want, got)
		}
	}
}
