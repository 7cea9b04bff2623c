package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/database/dbtest"
)

func TestUserRepositoryGetByAPIKeyHash(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	u := &models.User{Name: "Ada Owner", Email: "ada@example.com", Role: models.ROLE_OWNER}
	raw, err := u.IssueAPIKey()
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(ctx, u))

	got, err := repos.User.GetByAPIKeyHash(ctx, models.HashAPIKey(raw))
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repos.User.GetByAPIKeyHash(ctx, models.HashAPIKey("bzd_wrong"))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repos.User.GetByAPIKeyHash(ctx, "  ")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListingRepositoryScopesByOwner(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	l := &models.Listing{Slug: "ada-bakery", OwnerUserID: 1, Name: "Ada's Bakery"}
	require.NoError(t, db.Create(l).Error)

	got, err := repos.Listing.GetByIDForOwner(ctx, l.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "ada-bakery", got.Slug)

	_, err = repos.Listing.GetByIDForOwner(ctx, l.ID, 2)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	bySlug, err := repos.Listing.GetBySlug(ctx, "ada-bakery")
	require.NoError(t, err)
	assert.Equal(t, l.ID, bySlug.ID)

	owned, err := repos.Listing.ListByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestListingRepositoryListExpired(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()
	now := time.Now().UTC()
	pkgID := uint(3)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	require.NoError(t, db.Create(&models.Listing{Slug: "expired", OwnerUserID: 1, Name: "Expired", PackageID: &pkgID, PackageExpiresAt: &past}).Error)
	require.NoError(t, db.Create(&models.Listing{Slug: "running", OwnerUserID: 1, Name: "Running", PackageID: &pkgID, PackageExpiresAt: &future}).Error)
	require.NoError(t, db.Create(&models.Listing{Slug: "open-ended", OwnerUserID: 1, Name: "Open ended", PackageID: &pkgID}).Error)
	require.NoError(t, db.Create(&models.Listing{Slug: "bare", OwnerUserID: 1, Name: "Bare", PackageExpiresAt: &past}).Error)

	expired, err := repos.Listing.ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "expired", expired[0].Slug)
}

func TestPackageRepositoryListActive(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	gold := &models.Package{Name: "Gold", Price: decimal.NewFromInt(20), IsActive: true}
	silver := &models.Package{Name: "Silver", Price: decimal.NewFromInt(10), IsActive: true}
	retired := &models.Package{Name: "Retired", Price: decimal.NewFromInt(5), IsActive: true}
	for _, p := range []*models.Package{gold, silver, retired} {
		require.NoError(t, repos.Package.Create(ctx, p))
	}
	require.NoError(t, db.Model(retired).Update("is_active", false).Error)

	active, err := repos.Package.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Silver", active[0].Name)
	assert.Equal(t, "Gold", active[1].Name)

	got, err := repos.Package.GetByID(ctx, gold.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(20)))
}

func TestSettingRepositoryUpsert(t *testing.T) {
	db := dbtest.New(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	v, err := repos.Setting.GetValue(ctx, models.SettingDowngradeMode)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, repos.Setting.SetValue(ctx, models.SettingDowngradeMode, models.DowngradeModeAdminApproval))
	require.NoError(t, repos.Setting.SetValue(ctx, models.SettingDowngradeMode, models.DowngradeModeAuto))

	v, err = repos.Setting.GetValue(ctx, models.SettingDowngradeMode)
	require.NoError(t, err)
	assert.Equal(t, models.DowngradeModeAuto, v)

	var count int64
	require.NoError(t, db.Model(&models.Setting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// traceRecorder keeps the errors GORM reports for each statement.
type traceRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *traceRecorder) LogMode(logger.LogLevel) logger.Interface      { return r }
func (r *traceRecorder) Info(context.Context, string, ...interface{})  {}
func (r *traceRecorder) Warn(context.Context, string, ...interface{})  {}
func (r *traceRecorder) Error(context.Context, string, ...interface{}) {}
func (r *traceRecorder) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func TestSettingRepositoryMissingKeyIsQuiet(t *testing.T) {
	rec := &traceRecorder{}
	db := dbtest.New(t).Session(&gorm.Session{Logger: rec})
	repos := NewRepositories(db)

	v, err := repos.Setting.GetValue(context.Background(), models.SettingExpiredListingPackageID)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NotEmpty(t, rec.errs)
	for _, err := range rec.errs {
		assert.False(t, errors.Is(err, gorm.ErrRecordNotFound))
	}
}

func TestFactoryReusesRepositories(t *testing.T) {
	db := dbtest.New(t)
	f := NewFactory(db)

	assert.Same(t, f.GetRepositories(), f.GetRepositories())
	assert.Same(t, db, f.DB())
	assert.NotNil(t, f.GetListingRepository())
}
