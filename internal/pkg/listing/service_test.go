package listing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/app/repository"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
	"github.com/ManuelReschke/Bizdir/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/Bizdir/internal/pkg/logging"
	"github.com/ManuelReschke/Bizdir/internal/pkg/metrics"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *prometheus.Registry) {
	t.Helper()
	db := dbtest.New(t)
	reg := prometheus.NewRegistry()
	svc := NewService(db, repository.NewListingRepository(db), metrics.NewBilling(reg), logging.Discard())
	svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return svc, db, reg
}

func createUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	u := &models.User{Name: "Test User", Email: email, Role: role, Status: models.STATUS_ACTIVE}
	require.NoError(t, db.Create(u).Error)
	return u
}

func countListings(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Listing{}).Count(&n).Error)
	return n
}

func TestCreateListing(t *testing.T) {
	svc, db, _ := newTestService(t)
	owner := createUser(t, db, "ada@example.com", models.ROLE_USER)

	res, err := svc.Create(context.Background(), owner.ID, CreateInput{
		Name:        "Café Zürich & Co",
		Description: "Coffee",
		Badges:      []string{"Family run"},
		Products:    []string{"Espresso", "Cake"},
		MenuItems:   []string{"Breakfast"},
		Services:    []string{"Catering"},
	})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "cafe-zurich-co", res.Listing.Slug)
	assert.Equal(t, models.LISTING_STATUS_PENDING, res.Listing.Status)

	var stored models.Listing
	require.NoError(t, db.Preload("Badges").Preload("Products").Preload("MenuItems").Preload("Services").
		First(&stored, res.Listing.ID).Error)
	assert.Len(t, stored.Badges, 1)
	assert.Len(t, stored.Products, 2)
	assert.Len(t, stored.MenuItems, 1)
	assert.Len(t, stored.Services, 1)

	var u models.User
	require.NoError(t, db.First(&u, owner.ID).Error)
	assert.Equal(t, models.ROLE_OWNER, u.Role)
}

func TestCreateListingKeepsAdminRole(t *testing.T) {
	svc, db, _ := newTestService(t)
	admin := createUser(t, db, "admin@example.com", models.ROLE_ADMIN)

	_, err := svc.Create(context.Background(), admin.ID, CreateInput{Name: "Admin Shop"})
	require.NoError(t, err)

	var u models.User
	require.NoError(t, db.First(&u, admin.ID).Error)
	assert.Equal(t, models.ROLE_ADMIN, u.Role)
}

func TestCreateListingReplaysResubmission(t *testing.T) {
	svc, db, _ := newTestService(t)
	owner := createUser(t, db, "ada@example.com", models.ROLE_USER)
	in := CreateInput{Name: "Ada's Bakery", Products: []string{"Bread"}}

	first, err := svc.Create(context.Background(), owner.ID, in)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), owner.ID, in)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Listing.ID, second.Listing.ID)
	assert.Equal(t, int64(1), countListings(t, db))

	var products int64
	require.NoError(t, db.Model(&models.ListingProduct{}).Count(&products).Error)
	assert.Equal(t, int64(1), products, "replay creates no children")
}

func TestCreateListingSuffixesForeignCollision(t *testing.T) {
	svc, db, reg := newTestService(t)
	ada := createUser(t, db, "ada@example.com", models.ROLE_USER)
	bob := createUser(t, db, "bob@example.com", models.ROLE_USER)

	_, err := svc.Create(context.Background(), ada.ID, CreateInput{Name: "Corner Shop"})
	require.NoError(t, err)
	res, err := svc.Create(context.Background(), bob.ID, CreateInput{Name: "Corner Shop"})
	require.NoError(t, err)

	assert.Equal(t, "corner-shop-2", res.Listing.Slug)
	assert.Equal(t, 2, res.Attempts)
	expected := `
# HELP bizdir_slug_retries_total Listing creation attempts retried after a slug collision.
# TYPE bizdir_slug_retries_total counter
bizdir_slug_retries_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "bizdir_slug_retries_total"))
}

func TestCreateListingExhaustsAttempts(t *testing.T) {
	svc, db, _ := newTestService(t)
	other := createUser(t, db, "other@example.com", models.ROLE_OWNER)
	owner := createUser(t, db, "ada@example.com", models.ROLE_USER)

	for i := 1; i <= maxAttempts; i++ {
		slug := "corner-shop"
		if i > 1 {
			slug = fmt.Sprintf("corner-shop-%d", i)
		}
		require.NoError(t, db.Create(&models.Listing{Slug: slug, OwnerUserID: other.ID, Name: "Corner Shop"}).Error)
	}
	before := countListings(t, db)

	_, err := svc.Create(context.Background(), owner.ID, CreateInput{Name: "Corner Shop", Badges: []string{"New"}})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, before, countListings(t, db))

	var badges int64
	require.NoError(t, db.Model(&models.ListingBadge{}).Count(&badges).Error)
	assert.Zero(t, badges, "no partial children")

	var u models.User
	require.NoError(t, db.First(&u, owner.ID).Error)
	assert.Equal(t, models.ROLE_USER, u.Role, "role change rolled back")
}

func TestCreateListingConcurrentOwnersGetDistinctSlugs(t *testing.T) {
	svc, db, _ := newTestService(t)

	owners := make([]*models.User, maxAttempts)
	for i := range owners {
		owners[i] = createUser(t, db, fmt.Sprintf("owner%d@example.com", i), models.ROLE_USER)
	}

	var wg sync.WaitGroup
	slugs := make([]string, len(owners))
	for i, o := range owners {
		wg.Add(1)
		go func(i int, ownerID uint) {
			defer wg.Done()
			res, err := svc.Create(context.Background(), ownerID, CreateInput{Name: "Market Hall"})
			if assert.NoError(t, err) {
				slugs[i] = res.Listing.Slug
			}
		}(i, o.ID)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, s := range slugs {
		assert.False(t, seen[s], "duplicate slug %s", s)
		seen[s] = true
	}
	assert.Equal(t, int64(len(owners)), countListings(t, db))
}

func TestCreateListingValidation(t *testing.T) {
	svc, db, _ := newTestService(t)
	owner := createUser(t, db, "ada@example.com", models.ROLE_USER)

	_, err := svc.Create(context.Background(), owner.ID, CreateInput{Name: "A"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(context.Background(), owner.ID, CreateInput{Name: "Valid Name", Products: []string{""}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(context.Background(), 0, CreateInput{Name: "Valid Name"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Create(context.Background(), 9999, CreateInput{Name: "Valid Name"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Zero(t, countListings(t, db))
}

func TestCreateListingBackoffHonoursContext(t *testing.T) {
	svc, db, _ := newTestService(t)
	svc.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Hour) }
	other := createUser(t, db, "other@example.com", models.ROLE_OWNER)
	owner := createUser(t, db, "ada@example.com", models.ROLE_USER)
	require.NoError(t, db.Create(&models.Listing{Slug: "corner-shop", OwnerUserID: other.ID, Name: "Corner Shop"}).Error)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Create(ctx, owner.ID, CreateInput{Name: "Corner Shop"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
