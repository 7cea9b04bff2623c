package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	LISTING_STATUS_ACTIVE   = "active"
	LISTING_STATUS_PENDING  = "pending"
	LISTING_STATUS_INACTIVE = "inactive"
)

// Listing is a business directory entry owned by exactly one user.
type Listing struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	Slug             string            `gorm:"uniqueIndex;type:varchar(100);not null" json:"slug" validate:"required,min=1,max=100"`
	OwnerUserID      uint              `gorm:"not null;index" json:"owner_user_id"`
	Name             string            `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description      string            `gorm:"type:text" json:"description" validate:"max=5000"`
	PackageID        *uint             `gorm:"index" json:"package_id"`
	PackageExpiresAt *time.Time        `gorm:"type:timestamp;default:null;index" json:"package_expires_at,omitempty"`
	Status           string            `gorm:"type:varchar(20);default:'pending'" json:"status" validate:"oneof=active pending inactive"`
	Badges           []ListingBadge    `gorm:"foreignKey:ListingID" json:"badges,omitempty"`
	Products         []ListingProduct  `gorm:"foreignKey:ListingID" json:"products,omitempty"`
	MenuItems        []ListingMenuItem `gorm:"foreignKey:ListingID" json:"menu_items,omitempty"`
	Services         []ListingService  `gorm:"foreignKey:ListingID" json:"services,omitempty"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt    `gorm:"index" json:"-"`
}

// HasPackage reports whether the listing currently holds the given package.
func (l *Listing) HasPackage(packageID uint) bool {
	return l != nil && l.PackageID != nil && *l.PackageID == packageID
}
