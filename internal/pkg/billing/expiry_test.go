package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
	"github.com/ManuelReschke/Bizdir/internal/pkg/logging"
)

func TestExpireListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	svc := NewExpiryService(f.repos.Listing, f.repos.Package, f.gov, f.repo, logging.Discard())

	_, err := svc.ExpireListings(ctx, now)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.gov.SetExpiredListingPackageID(ctx, &f.free.ID))

	past := now.Add(-time.Hour)
	require.NoError(t, f.db.Model(&models.Listing{}).Where("id = ?", f.listing.ID).Update("package_expires_at", past).Error)
	fresh := f.createListing(f.owner.ID, "ada-bakery-2", &f.gold.ID)

	moved, err := svc.ExpireListings(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	l := f.reloadListing()
	assert.Equal(t, f.free.ID, *l.PackageID)
	assert.Nil(t, l.PackageExpiresAt)

	var untouched models.Listing
	require.NoError(t, f.db.First(&untouched, fresh.ID).Error)
	assert.Equal(t, f.gold.ID, *untouched.PackageID)

	moved, err = svc.ExpireListings(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestExpireListingsUnknownFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missing := uint(9999)
	require.NoError(t, f.gov.SetExpiredListingPackageID(ctx, &missing))

	svc := NewExpiryService(f.repos.Listing, f.repos.Package, f.gov, f.repo, logging.Discard())
	_, err := svc.ExpireListings(ctx, time.Now())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
