package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BillingPeriodOneTime = "one_time"
	BillingPeriodMonthly = "monthly"
	BillingPeriodYearly  = "yearly"
)

// Package is a pricing tier. It is reference data: the billing code reads
// packages but never writes them.
type Package struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(100);not null" json:"name"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	BillingPeriod string          `gorm:"type:varchar(20);not null;default:'one_time'" json:"billing_period"`
	DurationDays  int             `gorm:"not null;default:0" json:"duration_days"`
	IsActive      bool            `gorm:"default:true;index" json:"is_active"`
	AllowProducts bool            `gorm:"default:false" json:"allow_products"`
	AllowMenu     bool            `gorm:"default:false" json:"allow_menu"`
	AllowServices bool            `gorm:"default:false" json:"allow_services"`
	MaxBadges     int             `gorm:"default:0" json:"max_badges"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFree reports whether the package costs nothing.
func (p *Package) IsFree() bool {
	return !p.Price.IsPositive()
}

// ExpiresAt returns the end of a purchase made at from, or nil for
// packages without a duration.
func (p *Package) ExpiresAt(from time.Time) *time.Time {
	if p.DurationDays <= 0 {
		return nil
	}
	t := from.AddDate(0, 0, p.DurationDays)
	return &t
}
