// Package certificate renders donation tax-exemption certificates as PNG
// documents suitable for download and email attachment.
package certificate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/sahayog/ms-go-donations/app/entity"
)

const (
	certWidth  = 800
	certHeight = 500
)

type Config struct {
	OrganizationName string
	RegistrationLine string
}

type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	if strings.TrimSpace(cfg.OrganizationName) == "" {
		cfg.OrganizationName = "Sahayog Foundation"
	}
	if strings.TrimSpace(cfg.RegistrationLine) == "" {
		cfg.RegistrationLine = "Donations are eligible for tax exemption under Section 80G."
	}
	return &Renderer{cfg: cfg}
}

// Render produces the certificate image for a paid donation. Callers are
// responsible for checking the donation state first.
func (r *Renderer) Render(donation *entity.Donation) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, certWidth, certHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawBorder(img, color.RGBA{R: 30, G: 90, B: 160, A: 255})

	donorName := strings.TrimSpace(donation.DonorName)
	if donation.Anonymous || donorName == "" {
		donorName = "An anonymous donor"
	}

	lines := []string{
		r.cfg.OrganizationName,
		"DONATION RECEIPT & TAX CERTIFICATE",
		"",
		fmt.Sprintf("Receipt No: %s", donation.Receipt),
		fmt.Sprintf("Donation Id: %s", donation.PublicID),
		"",
		fmt.Sprintf("Received with gratitude from: %s", donorName),
		fmt.Sprintf("Campaign: %s", donation.CampaignID),
		fmt.Sprintf("Amount: %s %s", donation.Currency, formatPaise(donation.AmountPaise)),
		fmt.Sprintf("Date: %s", donation.UpdatedAt.UTC().Format("02 Jan 2006")),
	}
	if donation.DonorPAN != nil && !donation.Anonymous {
		lines = append(lines, fmt.Sprintf("Donor PAN: %s", *donation.DonorPAN))
	}
	lines = append(lines, "", r.cfg.RegistrationLine)

	y := 80
	for _, line := range lines {
		if line != "" {
			x := (certWidth - len(line)*7) / 2
			if x < 40 {
				x = 40
			}
			drawString(img, x, y, line, color.Black)
		}
		y += 28
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatPaise renders integer paise as a rupee string with two decimals.
// This is the only place in the service where paise become display rupees.
func formatPaise(paise int64) string {
	return fmt.Sprintf("%d.%02d", paise/100, paise%100)
}

func drawBorder(img *image.RGBA, col color.Color) {
	bounds := img.Bounds()
	for t := 0; t < 4; t++ {
		for x := bounds.Min.X + t; x < bounds.Max.X-t; x++ {
			img.Set(x, bounds.Min.Y+t, col)
			img.Set(x, bounds.Max.Y-1-t, col)
		}
		for y := bounds.Min.Y + t; y < bounds.Max.Y-t; y++ {
			img.Set(bounds.Min.X+t, y, col)
			img.Set(bounds.Max.X-1-t, y, col)
		}
	}
}

func drawString(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
