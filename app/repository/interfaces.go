package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error)
}

// ListingRepository defines the interface for listing-related database operations
type ListingRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Listing, error)
	GetByIDForOwner(ctx context.Context, id, ownerUserID uint) (*models.Listing, error)
	GetBySlug(ctx context.Context, slug string) (*models.Listing, error)
	ListByOwner(ctx context.Context, ownerUserID uint) ([]models.Listing, error)
	ListExpired(ctx context.Context, asOf time.Time, limit int) ([]models.Listing, error)
}

// PackageRepository defines the interface for package reference data
type PackageRepository interface {
	Create(ctx context.Context, pkg *models.Package) error
	GetByID(ctx context.Context, id uint) (*models.Package, error)
	ListActive(ctx context.Context) ([]models.Package, error)
}

// SettingRepository defines the interface for key/value settings
type SettingRepository interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
}

// Repositories holds all repository instances
type Repositories struct {
	User    UserRepository
	Listing ListingRepository
	Package PackageRepository
	Setting SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Listing: NewListingRepository(db),
		Package: NewPackageRepository(db),
		Setting: NewSettingRepository(db),
	}
}
