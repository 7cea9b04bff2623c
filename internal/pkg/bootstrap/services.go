// Package bootstrap wires the billing services from their infrastructure
// handles. The HTTP server and the one-shot commands share it.
package bootstrap

import (
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/controllers"
	"github.com/ManuelReschke/Bizdir/app/repository"
	"github.com/ManuelReschke/Bizdir/internal/pkg/billing"
	"github.com/ManuelReschke/Bizdir/internal/pkg/cache"
	"github.com/ManuelReschke/Bizdir/internal/pkg/env"
	"github.com/ManuelReschke/Bizdir/internal/pkg/listing"
	"github.com/ManuelReschke/Bizdir/internal/pkg/lock"
	"github.com/ManuelReschke/Bizdir/internal/pkg/metrics"
)

// Config carries the settings the services are built from.
type Config struct {
	BaseURL                 string
	Currency                string
	WebhookSecret           string
	DefaultExpiredPackageID *uint
	RequestTimeout          time.Duration
}

// ConfigFromEnv reads the billing settings.
func ConfigFromEnv(log logrus.FieldLogger) Config {
	cfg := Config{
		BaseURL:        env.GetEnv("APP_BASE_URL", "http://localhost:4000"),
		Currency:       strings.ToLower(env.GetEnv("BILLING_CURRENCY", "gbp")),
		WebhookSecret:  env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		RequestTimeout: env.GetEnvDuration("REQUEST_TIMEOUT", 20*time.Second),
	}
	if raw := strings.TrimSpace(env.GetEnv("DEFAULT_EXPIRED_LISTING_PACKAGE_ID", "")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			log.WithField("value", raw).Warn("ignoring invalid DEFAULT_EXPIRED_LISTING_PACKAGE_ID")
		} else {
			v := uint(id)
			cfg.DefaultExpiredPackageID = &v
		}
	}
	if cfg.WebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, webhook deliveries will be rejected")
	}
	return cfg
}

// Infra are the process wide handles.
type Infra struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Gateway  billing.PaymentGateway
	Mailer   billing.Mailer
	Metrics  *metrics.Billing
	Log      logrus.FieldLogger
	Packages billing.PackageSource
}

// Services are the wired billing components.
type Services struct {
	Repositories *repository.Repositories
	Engine       *billing.Engine
	Verifier     *billing.Verifier
	Governance   *billing.GovernanceStore
	Decisions    *billing.GovernanceService
	Expiry       *billing.ExpiryService
	Webhooks     *billing.WebhookService
	Listings     *listing.Service
}

// NewServices builds every billing component. Packages are read through
// the Redis cache when a client is given.
func NewServices(infra Infra, cfg Config) *Services {
	log := infra.Log
	repos := repository.NewRepositories(infra.DB)
	repo := billing.NewRepository(infra.DB)

	packages := infra.Packages
	if packages == nil {
		packages = repos.Package
		if infra.Redis != nil {
			packages = cache.NewPackageCache(infra.Redis, repos.Package, log)
		}
	}

	var locker billing.Locker
	if infra.Redis != nil {
		locker = lock.NewManager(infra.Redis, lock.DefaultOptions(), log)
	}

	notifier := billing.NewMailNotifier(infra.Mailer)
	gov := billing.NewGovernanceStore(infra.DB, repos.Setting, cfg.DefaultExpiredPackageID, log)
	executor := billing.NewExecutor(infra.DB, repo, packages, infra.Gateway, log)
	verifier := billing.NewVerifier(billing.VerifierDeps{
		Users:    repos.User,
		Listings: repos.Listing,
		Packages: packages,
		Repo:     repo,
		Gateway:  infra.Gateway,
		Notifier: notifier,
		Locker:   locker,
		Metrics:  infra.Metrics,
		Log:      log,
	})

	return &Services{
		Repositories: repos,
		Engine: billing.NewEngine(billing.EngineDeps{
			Users:      repos.User,
			Listings:   repos.Listing,
			Packages:   packages,
			Governance: gov,
			Executor:   executor,
			Repo:       repo,
			Gateway:    infra.Gateway,
			Notifier:   notifier,
			Metrics:    infra.Metrics,
			Config:     billing.CheckoutConfig{BaseURL: cfg.BaseURL, Currency: cfg.Currency},
			Log:        log,
		}),
		Verifier:   verifier,
		Governance: gov,
		Decisions:  billing.NewGovernanceService(gov, executor, repos.User, infra.Metrics, log),
		Expiry:     billing.NewExpiryService(repos.Listing, packages, gov, repo, log),
		Webhooks:   billing.NewWebhookService(repo, verifier, cfg.WebhookSecret, infra.Metrics, log),
		Listings:   listing.NewService(infra.DB, repos.Listing, infra.Metrics, log),
	}
}

// Controllers exposes the services to the HTTP layer.
func (s *Services) Controllers(timeout time.Duration, log logrus.FieldLogger) *controllers.Controllers {
	return controllers.New(controllers.Dependencies{
		Engine:         s.Engine,
		Verifier:       s.Verifier,
		Governance:     s.Governance,
		Decisions:      s.Decisions,
		Expiry:         s.Expiry,
		Webhooks:       s.Webhooks,
		Listings:       s.Listings,
		RequestTimeout: timeout,
		Log:            log,
	})
}
