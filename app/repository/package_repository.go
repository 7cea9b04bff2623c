package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/models"
)

// packageRepository implements the PackageRepository interface
type packageRepository struct {
	db *gorm.DB
}

// NewPackageRepository creates a new package repository instance
func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

// Create stores a new package; used by seeding and tests.
func (r *packageRepository) Create(ctx context.Context, pkg *models.Package) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

// GetByID retrieves a package by its ID, active or not
func (r *packageRepository) GetByID(ctx context.Context, id uint) (*models.Package, error) {
	var pkg models.Package
	if err := r.db.WithContext(ctx).First(&pkg, id).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ListActive returns the purchasable packages ordered by price
func (r *packageRepository) ListActive(ctx context.Context) ([]models.Package, error) {
	var pkgs []models.Package
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("price ASC, id ASC").Find(&pkgs).Error
	return pkgs, err
}
