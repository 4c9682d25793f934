package entity

import "time"

type DonationEvent struct {
	ID uint64

	DonationID uint64

	EventType string

	OldStatus *int32
	NewStatus int32

	GatewayEventID *string
	PayloadJSON    *string

	CreatedAt time.Time
}
