package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sahayog/ms-go-donations/app/entity"
)

var (
	ErrDonationNotFound      = errors.New("donation not found")
	ErrDonationAlreadyExists = errors.New("donation already exists")
)

type DonationFilter struct {
	CampaignID string
	HasStatus  bool
	Status     int32
	Gateway    int32
	Limit      int32
	Offset     int32
}

const donationColumns = `id, public_id, campaign_id, receipt,
		donor_name, donor_email, donor_phone, donor_pan, anonymous,
		amount_paise, currency, status, gateway,
		gateway_order_id, gateway_payment_id, gateway_signature, failure_reason,
		notify_delivery_status, notify_delivery_attempts, notify_delivery_next_at, notify_delivery_last_error,
		created_at, updated_at`

type DonationRepository struct {
	db DBTX
}

func NewDonationRepository(db DBTX) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, donation *entity.Donation) error {
	query := `
		INSERT INTO donations (
			public_id, campaign_id, receipt,
			donor_name, donor_email, donor_phone, donor_pan, anonymous,
			amount_paise, currency, status, gateway,
			gateway_order_id, gateway_payment_id, gateway_signature, failure_reason,
			notify_delivery_status, notify_delivery_attempts, notify_delivery_next_at, notify_delivery_last_error,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		donation.PublicID,
		donation.CampaignID,
		donation.Receipt,
		donation.DonorName,
		donation.DonorEmail,
		nullableStringValue(donation.DonorPhone),
		nullableStringValue(donation.DonorPAN),
		donation.Anonymous,
		donation.AmountPaise,
		donation.Currency,
		donation.Status,
		donation.Gateway,
		nullableStringValue(donation.GatewayOrderID),
		nullableStringValue(donation.GatewayPaymentID),
		nullableStringValue(donation.GatewaySignature),
		nullableStringValue(donation.FailureReason),
		donation.NotifyDeliveryStatus,
		donation.NotifyDeliveryAttempts,
		nullableTimeValue(donation.NotifyDeliveryNextAt),
		nullableStringValue(donation.NotifyDeliveryLastErr),
		donation.CreatedAt,
		donation.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDonationAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	donation.ID = uint64(id)
	return nil
}

func (r *DonationRepository) Update(ctx context.Context, donation *entity.Donation) error {
	query := `
		UPDATE donations SET
			donor_name = ?,
			donor_email = ?,
			donor_phone = ?,
			donor_pan = ?,
			anonymous = ?,
			status = ?,
			gateway_order_id = ?,
			gateway_payment_id = ?,
			gateway_signature = ?,
			failure_reason = ?,
			notify_delivery_status = ?,
			notify_delivery_attempts = ?,
			notify_delivery_next_at = ?,
			notify_delivery_last_error = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		donation.DonorName,
		donation.DonorEmail,
		nullableStringValue(donation.DonorPhone),
		nullableStringValue(donation.DonorPAN),
		donation.Anonymous,
		donation.Status,
		nullableStringValue(donation.GatewayOrderID),
		nullableStringValue(donation.GatewayPaymentID),
		nullableStringValue(donation.GatewaySignature),
		nullableStringValue(donation.FailureReason),
		donation.NotifyDeliveryStatus,
		donation.NotifyDeliveryAttempts,
		nullableTimeValue(donation.NotifyDeliveryNextAt),
		nullableStringValue(donation.NotifyDeliveryLastErr),
		donation.UpdatedAt,
		donation.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDonationNotFound
	}

	return nil
}

func (r *DonationRepository) FindByPublicID(ctx context.Context, publicID string) (*entity.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE public_id = ? LIMIT 1`

	donation := &entity.Donation{}
	if err := scanDonation(r.db.QueryRowContext(ctx, query, publicID), donation); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return donation, nil
}

func (r *DonationRepository) FindByOrderID(ctx context.Context, gatewayOrderID string) (*entity.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE gateway_order_id = ? LIMIT 1`

	donation := &entity.Donation{}
	if err := scanDonation(r.db.QueryRowContext(ctx, query, gatewayOrderID), donation); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return donation, nil
}

func (r *DonationRepository) FindByCampaignAndReceipt(ctx context.Context, campaignID, receipt string) (*entity.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE campaign_id = ? AND receipt = ? LIMIT 1`

	donation := &entity.Donation{}
	if err := scanDonation(r.db.QueryRowContext(ctx, query, campaignID, receipt), donation); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return donation, nil
}

func (r *DonationRepository) List(ctx context.Context, filter DonationFilter) ([]*entity.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations`

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if strings.TrimSpace(filter.CampaignID) != "" {
		conditions = append(conditions, "campaign_id = ?")
		args = append(args, filter.CampaignID)
	}
	if filter.HasStatus {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Gateway > 0 {
		conditions = append(conditions, "gateway = ?")
		args = append(args, filter.Gateway)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	return r.queryDonations(ctx, query, args...)
}

func (r *DonationRepository) ListDueNotifyDispatch(ctx context.Context, now time.Time, limit int32) ([]*entity.Donation, error) {
	query := `SELECT ` + donationColumns + `
		FROM donations
		WHERE notify_delivery_status = ?
		  AND notify_delivery_next_at IS NOT NULL
		  AND notify_delivery_next_at <= ?
		ORDER BY notify_delivery_next_at ASC
		LIMIT ?
	`

	return r.queryDonations(ctx, query, entity.NotifyDeliveryPending, now, limit)
}

func (r *DonationRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Donation, error) {
	query := `SELECT ` + donationColumns + `
		FROM donations
		WHERE status IN (?, ?)
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	return r.queryDonations(ctx, query, entity.StatusCreated, entity.StatusPending, cutoff, limit)
}

func (r *DonationRepository) ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Donation, error) {
	query := `SELECT ` + donationColumns + `
		FROM donations
		WHERE status IN (?, ?)
		  AND gateway_order_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	return r.queryDonations(ctx, query, entity.StatusCreated, entity.StatusPending, before, limit)
}

func (r *DonationRepository) queryDonations(ctx context.Context, query string, args ...interface{}) ([]*entity.Donation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donations := make([]*entity.Donation, 0)
	for rows.Next() {
		item := &entity.Donation{}
		if err := scanDonation(rows, item); err != nil {
			return nil, err
		}
		donations = append(donations, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return donations, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDonation(scan rowScanner, donation *entity.Donation) error {
	var donorPhone sql.NullString
	var donorPAN sql.NullString
	var gatewayOrderID sql.NullString
	var gatewayPaymentID sql.NullString
	var gatewaySignature sql.NullString
	var failureReason sql.NullString
	var notifyNextAt sql.NullTime
	var notifyLastErr sql.NullString

	err := scan.Scan(
		&donation.ID,
		&donation.PublicID,
		&donation.CampaignID,
		&donation.Receipt,
		&donation.DonorName,
		&donation.DonorEmail,
		&donorPhone,
		&donorPAN,
		&donation.Anonymous,
		&donation.AmountPaise,
		&donation.Currency,
		&donation.Status,
		&donation.Gateway,
		&gatewayOrderID,
		&gatewayPaymentID,
		&gatewaySignature,
		&failureReason,
		&donation.NotifyDeliveryStatus,
		&donation.NotifyDeliveryAttempts,
		&notifyNextAt,
		&notifyLastErr,
		&donation.CreatedAt,
		&donation.UpdatedAt,
	)
	if err != nil {
		return err
	}

	donation.DonorPhone = stringPtrFromNull(donorPhone)
	donation.DonorPAN = stringPtrFromNull(donorPAN)
	donation.GatewayOrderID = stringPtrFromNull(gatewayOrderID)
	donation.GatewayPaymentID = stringPtrFromNull(gatewayPaymentID)
	donation.GatewaySignature = stringPtrFromNull(gatewaySignature)
	donation.FailureReason = stringPtrFromNull(failureReason)
	donation.NotifyDeliveryNextAt = timePtrFromNull(notifyNextAt)
	donation.NotifyDeliveryLastErr = stringPtrFromNull(notifyLastErr)

	return nil
}
