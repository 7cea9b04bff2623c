package models

import "time"

// BillingCheckout records a checkout session whose package was applied to a
// listing. The unique session id lets a paid session change a listing once.
type BillingCheckout struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Provider          string    `gorm:"type:varchar(20);not null;index:ux_billing_checkouts_provider_session,unique,priority:1" json:"provider"`
	CheckoutSessionID string    `gorm:"type:varchar(191);not null;index:ux_billing_checkouts_provider_session,unique,priority:2" json:"checkout_session_id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	BusinessID        uint      `gorm:"not null;index" json:"business_id"`
	PackageID         uint      `gorm:"not null" json:"package_id"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}
