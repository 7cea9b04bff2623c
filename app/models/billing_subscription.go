package models

import "time"

const (
	BillingProviderStripe = "stripe"
)

const (
	BillingStatusActive   = "active"
	BillingStatusCanceled = "canceled"
)

// BillingSubscription mirrors a gateway subscription bought for a listing
// package. The downgrade executor cancels the rows tied to a replaced
// package.
type BillingSubscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"not null;index" json:"user_id"`
	BusinessID             uint       `gorm:"not null;index:idx_billing_subscriptions_business_status,priority:1" json:"business_id"`
	PackageID              uint       `gorm:"not null;index" json:"package_id"`
	Provider               string     `gorm:"type:varchar(20);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:1" json:"provider"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:2" json:"provider_subscription_id"`
	CheckoutSessionID      string     `gorm:"type:varchar(191);default:''" json:"checkout_session_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index:idx_billing_subscriptions_business_status,priority:2" json:"status"`
	CanceledAt             *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
