package models

// All returns every model managed by AutoMigrate, parents before children.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Package{},
		&Listing{},
		&ListingBadge{},
		&ListingProduct{},
		&ListingMenuItem{},
		&ListingService{},
		&Setting{},
		&DowngradeRequest{},
		&BillingSubscription{},
		&BillingCheckout{},
		&BillingWebhookEvent{},
	}
}
