package entity

import "time"

const (
	StatusCreated   int32 = 1
	StatusPending   int32 = 2
	StatusPaid      int32 = 10
	StatusFailed    int32 = 20
	StatusCancelled int32 = 30
	StatusExpired   int32 = 40
)

const (
	NotifyDeliveryNone    int32 = 0
	NotifyDeliveryPending int32 = 1
	NotifyDeliverySuccess int32 = 10
	NotifyDeliveryFailed  int32 = 20
)

// Donation is one donation attempt against a campaign. AmountPaise is always
// integer paise; rupee formatting never enters this service.
type Donation struct {
	ID uint64

	PublicID   string
	CampaignID string
	Receipt    string

	DonorName  string
	DonorEmail string
	DonorPhone *string
	DonorPAN   *string
	Anonymous  bool

	AmountPaise int64
	Currency    string

	Status  int32
	Gateway int32

	GatewayOrderID   *string
	GatewayPaymentID *string
	GatewaySignature *string

	FailureReason *string

	NotifyDeliveryStatus   int32
	NotifyDeliveryAttempts int32
	NotifyDeliveryNextAt   *time.Time
	NotifyDeliveryLastErr  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *Donation) Terminal() bool {
	switch d.Status {
	case StatusPaid, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}
