package billing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
)

const (
	minIntervalDays = 1
	maxIntervalDays = 365
)

// TransitionKind classifies a move between two packages.
type TransitionKind int

const (
	KindUpgrade TransitionKind = iota
	KindDowngrade
)

func (k TransitionKind) String() string {
	if k == KindDowngrade {
		return "downgrade"
	}
	return "upgrade"
}

// Classify compares the listing's current package with the target. Moving to
// a strictly cheaper package is a downgrade; everything else, including the
// first assignment and equal prices, is an upgrade.
func Classify(current, target *models.Package) TransitionKind {
	if current == nil || target == nil {
		return KindUpgrade
	}
	if target.Price.LessThan(current.Price) {
		return KindDowngrade
	}
	return KindUpgrade
}

// IntervalDays returns the recurring interval for a subscription checkout.
// The gateway only takes day granularity, bounded to one year.
func IntervalDays(pkg *models.Package) int64 {
	days := int64(pkg.DurationDays)
	if days < minIntervalDays {
		return minIntervalDays
	}
	if days > maxIntervalDays {
		return maxIntervalDays
	}
	return days
}

// MinorUnits converts a price into the smallest currency unit.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}

// FormatMinorUnits renders an amount in minor units as "12.50 GBP".
func FormatMinorUnits(amount int64, currency string) string {
	s := decimal.New(amount, -2).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + strings.ToUpper(currency)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, apperr.ErrNotFound)
}
