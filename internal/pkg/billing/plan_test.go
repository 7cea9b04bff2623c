package billing

import (
	"testing"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func pkgPrice(price string) *models.Package {
	return &models.Package{Price: decimal.RequireFromString(price)}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindUpgrade, Classify(nil, pkgPrice("10")))
	assert.Equal(t, KindUpgrade, Classify(pkgPrice("10"), pkgPrice("20")))
	assert.Equal(t, KindUpgrade, Classify(pkgPrice("10"), pkgPrice("10.00")))
	assert.Equal(t, KindDowngrade, Classify(pkgPrice("20"), pkgPrice("10")))
	assert.Equal(t, KindDowngrade, Classify(pkgPrice("9.99"), pkgPrice("0")))
	assert.Equal(t, "downgrade", KindDowngrade.String())
}

func TestIntervalDays(t *testing.T) {
	tests := []struct {
		days int
		want int64
	}{
		{0, 1},
		{-4, 1},
		{1, 1},
		{30, 30},
		{365, 365},
		{400, 365},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IntervalDays(&models.Package{DurationDays: tt.days}), "days=%d", tt.days)
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2000), MinorUnits(decimal.RequireFromString("20")))
	assert.Equal(t, int64(1999), MinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(0), MinorUnits(decimal.Zero))
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "12.50 GBP", FormatMinorUnits(1250, "gbp"))
	assert.Equal(t, "0.05", FormatMinorUnits(5, ""))
}
