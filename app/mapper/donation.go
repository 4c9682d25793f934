package mapper

import (
	"time"

	"github.com/sahayog/ms-go-donations/app/entity"
	"github.com/sahayog/ms-go-donations/app/types"
)

func DonationToResponse(item *entity.Donation) *types.Donation {
	if item == nil {
		return nil
	}

	result := &types.Donation{
		DonationID:  item.PublicID,
		CampaignID:  item.CampaignID,
		Anonymous:   item.Anonymous,
		AmountPaise: item.AmountPaise,
		Currency:    item.Currency,
		Status:      StatusLabel(item.Status),
		OrderID:     derefString(item.GatewayOrderID),
		PaymentID:   derefString(item.GatewayPaymentID),
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   item.UpdatedAt.UTC().Format(time.RFC3339),
	}

	// Anonymous donations never expose donor identity, not even to admins
	// reading list endpoints.
	if !item.Anonymous {
		result.DonorName = item.DonorName
		result.DonorEmail = item.DonorEmail
	}

	return result
}

func DonationsToResponse(items []*entity.Donation) []*types.Donation {
	result := make([]*types.Donation, 0, len(items))
	for _, item := range items {
		result = append(result, DonationToResponse(item))
	}
	return result
}

func StatusLabel(status int32) string {
	switch status {
	case entity.StatusCreated:
		return "created"
	case entity.StatusPending:
		return "pending"
	case entity.StatusPaid:
		return "paid"
	case entity.StatusFailed:
		return "failed"
	case entity.StatusCancelled:
		return "cancelled"
	case entity.StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
