package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
)

const expiryBatchSize = 200

// ExpiredListingSource finds listings whose package ran out.
type ExpiredListingSource interface {
	ListExpired(ctx context.Context, asOf time.Time, limit int) ([]models.Listing, error)
}

// ExpiryService moves listings with an expired package onto the package
// configured in the downgrade policy.
type ExpiryService struct {
	listings   ExpiredListingSource
	packages   PackageSource
	governance *GovernanceStore
	repo       Repository
	log        logrus.FieldLogger
}

// NewExpiryService creates an expiry service.
func NewExpiryService(listings ExpiredListingSource, packages PackageSource, governance *GovernanceStore, repo Repository, log logrus.FieldLogger) *ExpiryService {
	return &ExpiryService{listings: listings, packages: packages, governance: governance, repo: repo, log: log}
}

// ExpireListings reassigns every listing expired at asOf and returns how
// many moved.
func (s *ExpiryService) ExpireListings(ctx context.Context, asOf time.Time) (int, error) {
	fallbackID, err := s.governance.ExpiredListingPackageID(ctx)
	if err != nil {
		return 0, err
	}
	if fallbackID == nil {
		return 0, apperr.Validation("no expired listing package configured")
	}
	fallback, err := s.packages.GetByID(ctx, *fallbackID)
	if err != nil {
		return 0, apperr.NotFound(err, "expired listing package")
	}

	moved := 0
	for {
		batch, err := s.listings.ListExpired(ctx, asOf, expiryBatchSize)
		if err != nil {
			return moved, fmt.Errorf("list expired listings: %w", err)
		}
		progressed := false
		for _, l := range batch {
			if l.PackageID == nil || *l.PackageID == fallback.ID {
				continue
			}
			ok, err := s.repo.ReassignExpired(ctx, l.ID, *l.PackageID, fallback.ID, asOf, fallback.ExpiresAt(asOf))
			if err != nil {
				return moved, fmt.Errorf("reassign listing %d: %w", l.ID, err)
			}
			if ok {
				moved++
				progressed = true
				s.log.WithFields(logrus.Fields{
					"business_id":         l.ID,
					"expired_package_id":  *l.PackageID,
					"fallback_package_id": fallback.ID,
				}).Info("listing package expired")
			}
		}
		if len(batch) < expiryBatchSize || !progressed {
			return moved, nil
		}
	}
}
