package entity

import "time"

type GatewayWebhook struct {
	ID uint64

	DonationID *uint64

	Gateway     string
	Signature   string
	PayloadJSON string
	Status      int32
	Error       *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
