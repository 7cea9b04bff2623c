// Package listing creates directory listings with globally unique slugs.
package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
	"github.com/ManuelReschke/Bizdir/internal/pkg/metrics"
	"github.com/ManuelReschke/Bizdir/internal/pkg/slug"
)

const (
	maxAttempts         = 5
	backoffInitial      = 20 * time.Millisecond
	backoffMax          = 500 * time.Millisecond
	backoffRandomFactor = 0.5
)

var validate = validator.New()

// CreateInput is the payload of a new listing.
type CreateInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=150"`
	Description string   `json:"description" validate:"max=5000"`
	Badges      []string `json:"badges" validate:"max=20,dive,required,max=100"`
	Products    []string `json:"products" validate:"max=100,dive,required,max=150"`
	MenuItems   []string `json:"menuItems" validate:"max=100,dive,required,max=150"`
	Services    []string `json:"services" validate:"max=100,dive,required,max=150"`
}

// CreateResult is a created or replayed listing.
type CreateResult struct {
	Listing  *models.Listing
	Replayed bool
	Attempts int
}

// SlugLookup finds the live listing holding a slug.
type SlugLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Listing, error)
}

// Service creates listings.
type Service struct {
	db         *gorm.DB
	slugs      SlugLookup
	metrics    *metrics.Billing
	log        logrus.FieldLogger
	newBackOff func() backoff.BackOff
}

// NewService creates a listing service.
func NewService(db *gorm.DB, slugs SlugLookup, m *metrics.Billing, log logrus.FieldLogger) *Service {
	return &Service{
		db:         db,
		slugs:      slugs,
		metrics:    m,
		log:        log,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffInitial
	b.MaxInterval = backoffMax
	b.RandomizationFactor = backoffRandomFactor
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Create inserts the listing under the first free slug derived from its
// name. A slug collision with a listing of the same owner is treated as a
// resubmission and returns that listing. Each attempt is all-or-nothing.
func (s *Service) Create(ctx context.Context, ownerUserID uint, in CreateInput) (*CreateResult, error) {
	if ownerUserID == 0 {
		return nil, apperr.ErrUnauthorized
	}
	if err := validate.Struct(in); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	base := slug.Normalize(in.Name)
	b := s.newBackOff()
	entry := s.log.WithFields(logrus.Fields{"owner_user_id": ownerUserID, "base_slug": base})

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate := slug.Candidate(base, attempt)

		l, err := s.createAttempt(ctx, ownerUserID, candidate, in)
		if err == nil {
			entry.WithFields(logrus.Fields{"business_id": l.ID, "slug": l.Slug, "attempt": attempt}).Info("listing created")
			return &CreateResult{Listing: l, Attempts: attempt}, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}

		holder, lookupErr := s.slugs.GetBySlug(ctx, candidate)
		switch {
		case lookupErr == nil && holder.OwnerUserID == ownerUserID:
			entry.WithFields(logrus.Fields{"business_id": holder.ID, "slug": holder.Slug}).Info("listing resubmission replayed")
			return &CreateResult{Listing: holder, Replayed: true, Attempts: attempt}, nil
		case lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("look up slug holder: %w", lookupErr)
		}

		if attempt == maxAttempts {
			break
		}
		s.metrics.SlugRetry()
		wait := b.NextBackOff()
		entry.WithFields(logrus.Fields{"slug": candidate, "attempt": attempt, "wait": wait}).Debug("slug taken, retrying")
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	entry.Warn("slug allocation exhausted")
	return nil, fmt.Errorf("%w: no free slug for %q after %d attempts", apperr.ErrConflict, base, maxAttempts)
}

func (s *Service) createAttempt(ctx context.Context, ownerUserID uint, candidate string, in CreateInput) (*models.Listing, error) {
	l := &models.Listing{
		Slug:        candidate,
		OwnerUserID: ownerUserID,
		Name:        in.Name,
		Description: in.Description,
		Status:      models.LISTING_STATUS_PENDING,
	}
	for _, name := range in.Badges {
		l.Badges = append(l.Badges, models.ListingBadge{Name: name, Enabled: true})
	}
	for _, name := range in.Products {
		l.Products = append(l.Products, models.ListingProduct{Name: name, Enabled: true})
	}
	for _, name := range in.MenuItems {
		l.MenuItems = append(l.MenuItems, models.ListingMenuItem{Name: name, Enabled: true})
	}
	for _, name := range in.Services {
		l.Services = append(l.Services, models.ListingService{Name: name, Enabled: true})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.Select("id", "role").Where("id = ?", ownerUserID).First(&owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown owner", apperr.ErrUnauthorized)
			}
			return err
		}
		if err := tx.Create(l).Error; err != nil {
			return err
		}
		if owner.Role == models.ROLE_USER {
			if err := tx.Model(&models.User{}).Where("id = ?", owner.ID).Update("role", models.ROLE_OWNER).Error; err != nil {
				return fmt.Errorf("promote owner: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
