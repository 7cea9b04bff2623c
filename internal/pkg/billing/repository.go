package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Bizdir/app/models"
)

// ApplyCheckoutInput is a verified purchase to write onto a listing.
type ApplyCheckoutInput struct {
	OwnerUserID       uint
	BusinessID        uint
	PackageID         uint
	ExpiresAt         *time.Time
	CheckoutSessionID string
	SubscriptionID    string
}

// Repository provides DB operations used by the billing services.
type Repository interface {
	// ApplyPackage sets the listing's package unless it already has it and
	// reports whether a row changed.
	ApplyPackage(ctx context.Context, ownerUserID, businessID, packageID uint, expiresAt *time.Time) (bool, error)
	// ApplyCheckout consumes the checkout session and applies its package
	// together with the subscription record, in one transaction. A session
	// that was already consumed, or a listing that already has the package,
	// reports false and changes nothing.
	ApplyCheckout(ctx context.Context, in ApplyCheckoutInput) (bool, error)
	ReassignExpired(ctx context.Context, businessID, expiredPackageID, fallbackPackageID uint, asOf time.Time, expiresAt *time.Time) (bool, error)
	ListActiveSubscriptions(ctx context.Context, businessID uint) ([]models.BillingSubscription, error)
	MarkSubscriptionCanceled(ctx context.Context, id uint, at time.Time) error
	// CancelSubscriptionByProviderID reports whether an active row matched.
	CancelSubscriptionByProviderID(ctx context.Context, provider, providerSubscriptionID string, at time.Time) (bool, error)
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
}

var errCheckoutNotApplied = errors.New("checkout not applied")

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func applyPackage(tx *gorm.DB, ownerUserID, businessID, packageID uint, expiresAt *time.Time) (bool, error) {
	res := tx.Model(&models.Listing{}).
		Where("id = ? AND owner_user_id = ?", businessID, ownerUserID).
		Where("package_id IS NULL OR package_id <> ?", packageID).
		Updates(map[string]interface{}{
			"package_id":         packageID,
			"package_expires_at": expiresAt,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) ApplyPackage(ctx context.Context, ownerUserID, businessID, packageID uint, expiresAt *time.Time) (bool, error) {
	return applyPackage(r.db.WithContext(ctx), ownerUserID, businessID, packageID, expiresAt)
}

func (r *gormRepository) ApplyCheckout(ctx context.Context, in ApplyCheckoutInput) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "provider"},
				{Name: "checkout_session_id"},
			},
			DoNothing: true,
		}).Create(&models.BillingCheckout{
			Provider:          models.BillingProviderStripe,
			CheckoutSessionID: in.CheckoutSessionID,
			UserID:            in.OwnerUserID,
			BusinessID:        in.BusinessID,
			PackageID:         in.PackageID,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCheckoutNotApplied
		}

		applied, err := applyPackage(tx, in.OwnerUserID, in.BusinessID, in.PackageID, in.ExpiresAt)
		if err != nil {
			return err
		}
		if !applied {
			return errCheckoutNotApplied
		}
		if in.SubscriptionID == "" {
			return nil
		}

		sub := &models.BillingSubscription{
			UserID:                 in.OwnerUserID,
			BusinessID:             in.BusinessID,
			PackageID:              in.PackageID,
			Provider:               models.BillingProviderStripe,
			ProviderSubscriptionID: in.SubscriptionID,
			CheckoutSessionID:      in.CheckoutSessionID,
			Status:                 models.BillingStatusActive,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "provider"},
				{Name: "provider_subscription_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id",
				"business_id",
				"package_id",
				"checkout_session_id",
				"status",
				"updated_at",
			}),
		}).Create(sub).Error
	})
	if errors.Is(err, errCheckoutNotApplied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *gormRepository) ReassignExpired(ctx context.Context, businessID, expiredPackageID, fallbackPackageID uint, asOf time.Time, expiresAt *time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND package_id = ? AND package_expires_at <= ?", businessID, expiredPackageID, asOf).
		Updates(map[string]interface{}{
			"package_id":         fallbackPackageID,
			"package_expires_at": expiresAt,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) ListActiveSubscriptions(ctx context.Context, businessID uint) ([]models.BillingSubscription, error) {
	var subs []models.BillingSubscription
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND status = ?", businessID, models.BillingStatusActive).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) MarkSubscriptionCanceled(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.BillingSubscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.BillingStatusCanceled,
			"canceled_at": &at,
		}).Error
}

func (r *gormRepository) CancelSubscriptionByProviderID(ctx context.Context, provider, providerSubscriptionID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.BillingSubscription{}).
		Where("provider = ? AND provider_subscription_id = ? AND status = ?", provider, providerSubscriptionID, models.BillingStatusActive).
		Updates(map[string]interface{}{
			"status":      models.BillingStatusCanceled,
			"canceled_at": &at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
