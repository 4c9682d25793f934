package repository

import (
	"context"

	"github.com/sahayog/ms-go-donations/app/entity"
)

type GatewayWebhookRepository struct {
	db DBTX
}

func NewGatewayWebhookRepository(db DBTX) *GatewayWebhookRepository {
	return &GatewayWebhookRepository{db: db}
}

func (r *GatewayWebhookRepository) Create(ctx context.Context, webhook *entity.GatewayWebhook) error {
	query := `
		INSERT INTO gateway_webhooks (
			donation_id, gateway, signature, payload_json, status, error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableUint64Value(webhook.DonationID),
		webhook.Gateway,
		webhook.Signature,
		webhook.PayloadJSON,
		webhook.Status,
		nullableStringValue(webhook.Error),
		webhook.CreatedAt,
		webhook.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	webhook.ID = uint64(id)

	return nil
}
