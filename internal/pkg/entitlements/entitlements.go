package entitlements

import "github.com/ManuelReschke/Bizdir/app/models"

// Features lists what a listing may show under a package.
type Features struct {
	Products  bool
	MenuItems bool
	Services  bool
	MaxBadges int
}

// ForPackage returns the features granted by pkg. A listing without a
// package gets the bare entry with a single badge.
func ForPackage(pkg *models.Package) Features {
	if pkg == nil {
		return Features{MaxBadges: 1}
	}
	badges := pkg.MaxBadges
	if badges < 0 {
		badges = 0
	}
	return Features{
		Products:  pkg.AllowProducts,
		MenuItems: pkg.AllowMenu,
		Services:  pkg.AllowServices,
		MaxBadges: badges,
	}
}
