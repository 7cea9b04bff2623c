package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/app/repository"
	"github.com/ManuelReschke/Bizdir/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/Bizdir/internal/pkg/logging"
)

type fakeGateway struct {
	mu        sync.Mutex
	created   []CheckoutParams
	sessions  map[string]*CheckoutSession
	cancelled []string
	cancelErr map[string]error
	createErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*CheckoutSession{}, cancelErr: map[string]error{}}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p CheckoutParams) (*CheckoutSessionRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, p)
	id := fmt.Sprintf("cs_test_%d", len(g.created))
	return &CheckoutSessionRef{ID: id, URL: "https://checkout.example/" + id}, nil
}

func (g *fakeGateway) RetrieveCheckoutSession(_ context.Context, id string) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	cp := *s
	return &cp, nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.cancelErr[id]; err != nil {
		return err
	}
	g.cancelled = append(g.cancelled, id)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	upgraded []PlanUpgradedNotice
	payments []PaymentReceivedNotice
}

func (n *fakeNotifier) SendPlanUpgraded(_ context.Context, notice PlanUpgradedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.upgraded = append(n.upgraded, notice)
	return nil
}

func (n *fakeNotifier) SendPaymentReceived(_ context.Context, notice PaymentReceivedNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, notice)
	return nil
}

type countingExecutor struct {
	inner DowngradeExecutor
	mu    sync.Mutex
	calls []DowngradeExecution
}

func (e *countingExecutor) Execute(ctx context.Context, in DowngradeExecution) (*DowngradeResult, error) {
	e.mu.Lock()
	e.calls = append(e.calls, in)
	e.mu.Unlock()
	return e.inner.Execute(ctx, in)
}

type fixture struct {
	t        *testing.T
	db       *gorm.DB
	repos    *repository.Repositories
	repo     Repository
	gov      *GovernanceStore
	gateway  *fakeGateway
	notifier *fakeNotifier
	executor *countingExecutor
	owner    *models.User
	listing  *models.Listing
	free     *models.Package
	silver   *models.Package
	gold     *models.Package
	retired  *models.Package
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	log := logging.Discard()

	f := &fixture{
		t:        t,
		db:       db,
		repos:    repository.NewRepositories(db),
		repo:     NewRepository(db),
		gateway:  newFakeGateway(),
		notifier: &fakeNotifier{},
	}
	f.gov = NewGovernanceStore(db, f.repos.Setting, nil, log)
	f.executor = &countingExecutor{inner: NewExecutor(db, f.repo, f.repos.Package, f.gateway, log)}

	f.free = f.createPackage(&models.Package{Name: "Free", Price: decimal.Zero, MaxBadges: 1})
	f.silver = f.createPackage(&models.Package{Name: "Silver", Price: decimal.NewFromInt(10), DurationDays: 30, MaxBadges: 1})
	f.gold = f.createPackage(&models.Package{
		Name: "Gold", Price: decimal.NewFromInt(20), DurationDays: 30,
		AllowProducts: true, AllowMenu: true, AllowServices: true, MaxBadges: 5,
	})
	f.retired = f.createPackage(&models.Package{Name: "Platinum", Price: decimal.NewFromInt(50)})
	require.NoError(t, db.Model(f.retired).Update("is_active", false).Error)
	f.retired.IsActive = false

	f.owner = f.createUser("owner@example.com", models.ROLE_OWNER)
	f.listing = f.createListing(f.owner.ID, "ada-bakery", &f.gold.ID)
	return f
}

func (f *fixture) createPackage(p *models.Package) *models.Package {
	f.t.Helper()
	p.IsActive = true
	if p.BillingPeriod == "" {
		p.BillingPeriod = models.BillingPeriodOneTime
	}
	require.NoError(f.t, f.repos.Package.Create(context.Background(), p))
	return p
}

func (f *fixture) createUser(email, role string) *models.User {
	f.t.Helper()
	u := &models.User{Name: "Ada Owner", Email: email, Role: role, Status: models.STATUS_ACTIVE}
	require.NoError(f.t, f.repos.User.Create(context.Background(), u))
	return u
}

func (f *fixture) createListing(ownerID uint, slug string, packageID *uint) *models.Listing {
	f.t.Helper()
	expires := time.Now().UTC().AddDate(0, 0, 10)
	if packageID != nil {
		id := *packageID
		packageID = &id
	}
	l := &models.Listing{
		Slug:             slug,
		OwnerUserID:      ownerID,
		Name:             "Ada's Bakery",
		PackageID:        packageID,
		PackageExpiresAt: &expires,
		Status:           models.LISTING_STATUS_ACTIVE,
		Badges:           []models.ListingBadge{{Name: "b1"}, {Name: "b2"}, {Name: "b3"}},
		Products:         []models.ListingProduct{{Name: "Sourdough"}},
		MenuItems:        []models.ListingMenuItem{{Name: "Breakfast"}},
		Services:         []models.ListingService{{Name: "Catering"}},
	}
	require.NoError(f.t, f.db.Create(l).Error)
	return l
}

func (f *fixture) addSubscription(packageID uint, providerID string) *models.BillingSubscription {
	f.t.Helper()
	sub := &models.BillingSubscription{
		UserID:                 f.owner.ID,
		BusinessID:             f.listing.ID,
		PackageID:              packageID,
		Provider:               models.BillingProviderStripe,
		ProviderSubscriptionID: providerID,
		Status:                 models.BillingStatusActive,
	}
	require.NoError(f.t, f.db.Create(sub).Error)
	return sub
}

func (f *fixture) reloadListing() *models.Listing {
	f.t.Helper()
	var l models.Listing
	require.NoError(f.t, f.db.First(&l, f.listing.ID).Error)
	return &l
}

func (f *fixture) setMode(mode string) {
	f.t.Helper()
	require.NoError(f.t, f.gov.SetMode(context.Background(), mode))
}

func (f *fixture) engine() *Engine {
	return NewEngine(EngineDeps{
		Users:      f.repos.User,
		Listings:   f.repos.Listing,
		Packages:   f.repos.Package,
		Governance: f.gov,
		Executor:   f.executor,
		Repo:       f.repo,
		Gateway:    f.gateway,
		Notifier:   f.notifier,
		Config:     CheckoutConfig{BaseURL: "https://bizdir.example/", Currency: "gbp"},
		Log:        logging.Discard(),
	})
}

func (f *fixture) verifier(locker Locker) *Verifier {
	return NewVerifier(VerifierDeps{
		Users:    f.repos.User,
		Listings: f.repos.Listing,
		Packages: f.repos.Package,
		Repo:     f.repo,
		Gateway:  f.gateway,
		Notifier: f.notifier,
		Locker:   locker,
		Log:      logging.Discard(),
	})
}

// completedSession registers a finished checkout with the fake gateway.
func (f *fixture) completedSession(id string, pkg *models.Package, mode PaymentMode) *CheckoutSession {
	s := &CheckoutSession{
		ID:     id,
		Status: "complete",
		Mode:   mode.SessionMode(),
		Metadata: CheckoutMetadata{
			Flow:            FlowPlanUpgrade,
			UserID:          f.owner.ID,
			BusinessID:      f.listing.ID,
			SelectedPackage: pkg.ID,
			PaymentMode:     mode,
		}.Map(),
		AmountTotal:   MinorUnits(pkg.Price),
		Currency:      "gbp",
		CustomerEmail: "customer@example.com",
	}
	f.gateway.mu.Lock()
	f.gateway.sessions[id] = s
	f.gateway.mu.Unlock()
	return s
}

func (f *fixture) setListingPackage(pkg *models.Package) {
	f.t.Helper()
	require.NoError(f.t, f.db.Model(&models.Listing{}).Where("id = ?", f.listing.ID).Update("package_id", pkg.ID).Error)
	id := pkg.ID
	f.listing.PackageID = &id
}

func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func decimalFromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
