package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Keys of the downgrade policy singleton in the settings table.
const (
	SettingDowngradeMode           = "downgrade_mode"
	SettingExpiredListingPackageID = "expired_listing_package_id"
)

const (
	DowngradeModeAuto          = "auto"
	DowngradeModeAdminApproval = "admin_approval"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DowngradePolicy is the admin-editable governance policy.
type DowngradePolicy struct {
	Mode                    string `json:"mode" validate:"required,oneof=auto admin_approval"`
	ExpiredListingPackageID *uint  `json:"expiredListingPackageId"`
}

// Validate validates the policy
func (p *DowngradePolicy) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}

// SettingType returns the stored type of a setting based on its key.
func SettingType(key string) string {
	switch key {
	case SettingExpiredListingPackageID:
		return "integer"
	default:
		return "string"
	}
}
