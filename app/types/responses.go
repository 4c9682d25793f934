package types

type HealthResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type Order struct {
	ID          string `json:"id"`
	AmountPaise int64  `json:"amount"`
	Currency    string `json:"currency"`
}

type CreateOrderResponse struct {
	Order      *Order `json:"order"`
	DonationID string `json:"donationId"`
}

type Donation struct {
	DonationID  string `json:"donationId"`
	CampaignID  string `json:"campaignId"`
	DonorName   string `json:"donorName,omitempty"`
	DonorEmail  string `json:"donorEmail,omitempty"`
	Anonymous   bool   `json:"isAnonymous"`
	AmountPaise int64  `json:"amountPaise"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	OrderID     string `json:"orderId,omitempty"`
	PaymentID   string `json:"paymentId,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type DonationEnvelopeResponse struct {
	Donation *Donation `json:"donation"`
}

type ListDonationsResponse struct {
	Donations []*Donation `json:"donations"`
}
