package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/models"
)

// listingRepository implements the ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository instance
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// GetByID retrieves a listing by its ID
func (r *listingRepository) GetByID(ctx context.Context, id uint) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetByIDForOwner retrieves a listing only when it belongs to ownerUserID.
// Foreign listings are reported as not found.
func (r *listingRepository) GetByIDForOwner(ctx context.Context, id, ownerUserID uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// GetBySlug retrieves a listing by its slug
func (r *listingRepository) GetBySlug(ctx context.Context, slug string) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListByOwner returns the listings of an owner, newest first
func (r *listingRepository) ListByOwner(ctx context.Context, ownerUserID uint) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("created_at DESC, id DESC").
		Find(&listings).Error
	return listings, err
}

// ListExpired returns listings whose paid package ran out before asOf.
func (r *listingRepository) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.WithContext(ctx).
		Where("package_id IS NOT NULL AND package_expires_at IS NOT NULL AND package_expires_at <= ?", asOf).
		Order("package_expires_at ASC, id ASC").
		Limit(limit).
		Find(&listings).Error
	return listings, err
}
