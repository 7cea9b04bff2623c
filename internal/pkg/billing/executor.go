package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
	"github.com/ManuelReschke/Bizdir/internal/pkg/entitlements"
)

// DowngradeExecutor moves a listing to a cheaper package.
type DowngradeExecutor interface {
	Execute(ctx context.Context, in DowngradeExecution) (*DowngradeResult, error)
}

// PackageSource loads package reference data.
type PackageSource interface {
	GetByID(ctx context.Context, id uint) (*models.Package, error)
}

// Executor is the GORM backed DowngradeExecutor. It swaps the package and
// disables the features the target does not grant in one transaction, then
// cancels the listing's gateway subscriptions for other packages.
type Executor struct {
	db       *gorm.DB
	repo     Repository
	packages PackageSource
	gateway  PaymentGateway
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewExecutor creates a downgrade executor.
func NewExecutor(db *gorm.DB, repo Repository, packages PackageSource, gateway PaymentGateway, log logrus.FieldLogger) *Executor {
	return &Executor{
		db:       db,
		repo:     repo,
		packages: packages,
		gateway:  gateway,
		log:      log,
		now:      time.Now,
	}
}

func (e *Executor) Execute(ctx context.Context, in DowngradeExecution) (*DowngradeResult, error) {
	target, err := e.packages.GetByID(ctx, in.TargetPackageID)
	if err != nil {
		return nil, apperr.NotFound(err, "target package")
	}

	now := e.now()
	features := entitlements.ForPackage(target)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND owner_user_id = ?", in.BusinessID, in.OwnerUserID).
			First(&listing).Error; err != nil {
			return apperr.NotFound(err, "listing")
		}
		if in.CurrentPackageID != nil && !listing.HasPackage(*in.CurrentPackageID) {
			return fmt.Errorf("%w: listing is no longer on package %d", apperr.ErrConflict, *in.CurrentPackageID)
		}

		if err := tx.Model(&models.Listing{}).Where("id = ?", listing.ID).Updates(map[string]interface{}{
			"package_id":         target.ID,
			"package_expires_at": target.ExpiresAt(now),
			"updated_at":         now,
		}).Error; err != nil {
			return fmt.Errorf("set package: %w", err)
		}

		if err := disableUnentitled(tx, listing.ID, features); err != nil {
			return err
		}
		if in.InTx != nil {
			return in.InTx(tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The downgrade is committed from here on; gateway cleanup only logs.
	result := &DowngradeResult{CancelledSubscriptionIDs: []string{}}
	subs, err := e.repo.ListActiveSubscriptions(ctx, in.BusinessID)
	if err != nil {
		e.log.WithError(err).WithField("business_id", in.BusinessID).Error("list subscriptions after downgrade")
	}
	for _, sub := range subs {
		if sub.PackageID == target.ID {
			continue
		}
		entry := e.log.WithFields(logrus.Fields{
			"business_id":     in.BusinessID,
			"subscription_id": sub.ProviderSubscriptionID,
		})
		// A failed cancellation stays active so the next run retries it.
		if err := e.gateway.CancelSubscription(ctx, sub.ProviderSubscriptionID); err != nil {
			entry.WithError(err).Error("cancel subscription after downgrade")
			continue
		}
		if err := e.repo.MarkSubscriptionCanceled(ctx, sub.ID, now); err != nil {
			entry.WithError(err).Error("mark subscription canceled")
		}
		result.CancelledSubscriptionIDs = append(result.CancelledSubscriptionIDs, sub.ProviderSubscriptionID)
	}

	e.log.WithFields(logrus.Fields{
		"business_id":             in.BusinessID,
		"target_package_id":       target.ID,
		"cancelled_subscriptions": len(result.CancelledSubscriptionIDs),
	}).Info("listing downgraded")
	return result, nil
}

func disableUnentitled(tx *gorm.DB, listingID uint, f entitlements.Features) error {
	children := []struct {
		model   interface{}
		allowed bool
	}{
		{&models.ListingProduct{}, f.Products},
		{&models.ListingMenuItem{}, f.MenuItems},
		{&models.ListingService{}, f.Services},
	}
	for _, c := range children {
		if c.allowed {
			continue
		}
		if err := tx.Model(c.model).
			Where("listing_id = ? AND enabled = ?", listingID, true).
			Update("enabled", false).Error; err != nil {
			return fmt.Errorf("disable listing features: %w", err)
		}
	}

	var keep []uint
	if f.MaxBadges > 0 {
		if err := tx.Model(&models.ListingBadge{}).
			Where("listing_id = ? AND enabled = ?", listingID, true).
			Order("id ASC").
			Limit(f.MaxBadges).
			Pluck("id", &keep).Error; err != nil {
			return fmt.Errorf("select badges: %w", err)
		}
	}
	q := tx.Model(&models.ListingBadge{}).Where("listing_id = ? AND enabled = ?", listingID, true)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	if err := q.Update("enabled", false).Error; err != nil {
		return fmt.Errorf("disable badges: %w", err)
	}
	return nil
}
