package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/app/repository"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
)

const upsertAttempts = 3

var errStalePending = errors.New("pending downgrade request changed concurrently")

// Decision is an admin verdict on a downgrade request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision accepts "approve" and "reject".
func ParseDecision(raw string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(raw))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", apperr.Validation("unknown decision %q", raw)
	}
}

func (d Decision) status() string {
	if d == DecisionApprove {
		return models.DowngradeStatusApproved
	}
	return models.DowngradeStatusRejected
}

// GovernanceStore persists the downgrade policy and downgrade requests.
type GovernanceStore struct {
	db                      *gorm.DB
	settings                repository.SettingRepository
	defaultExpiredPackageID *uint
	log                     logrus.FieldLogger
	now                     func() time.Time
}

// NewGovernanceStore creates a store. defaultExpiredPackageID is used when
// the policy row carries no expired-listing package.
func NewGovernanceStore(db *gorm.DB, settings repository.SettingRepository, defaultExpiredPackageID *uint, log logrus.FieldLogger) *GovernanceStore {
	return &GovernanceStore{
		db:                      db,
		settings:                settings,
		defaultExpiredPackageID: defaultExpiredPackageID,
		log:                     log,
		now:                     time.Now,
	}
}

// Mode returns the downgrade mode, auto when unset.
func (s *GovernanceStore) Mode(ctx context.Context) (string, error) {
	v, err := s.settings.GetValue(ctx, models.SettingDowngradeMode)
	if err != nil {
		return "", fmt.Errorf("read downgrade mode: %w", err)
	}
	switch v {
	case models.DowngradeModeAdminApproval:
		return v, nil
	case "", models.DowngradeModeAuto:
		return models.DowngradeModeAuto, nil
	default:
		s.log.WithField("mode", v).Warn("unknown stored downgrade mode, using auto")
		return models.DowngradeModeAuto, nil
	}
}

// SetMode stores the downgrade mode.
func (s *GovernanceStore) SetMode(ctx context.Context, mode string) error {
	if mode != models.DowngradeModeAuto && mode != models.DowngradeModeAdminApproval {
		return apperr.Validation("unknown downgrade mode %q", mode)
	}
	return s.settings.SetValue(ctx, models.SettingDowngradeMode, mode)
}

// ExpiredListingPackageID returns the package expired listings fall back
// to, or nil when none is configured.
func (s *GovernanceStore) ExpiredListingPackageID(ctx context.Context) (*uint, error) {
	v, err := s.settings.GetValue(ctx, models.SettingExpiredListingPackageID)
	if err != nil {
		return nil, fmt.Errorf("read expired listing package: %w", err)
	}
	if v == "" {
		return s.defaultExpiredPackageID, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		s.log.WithField("value", v).Warn("invalid stored expired listing package id")
		return s.defaultExpiredPackageID, nil
	}
	out := uint(id)
	return &out, nil
}

// SetExpiredListingPackageID stores the fallback package. nil clears the
// stored value so the configured default applies again.
func (s *GovernanceStore) SetExpiredListingPackageID(ctx context.Context, id *uint) error {
	v := ""
	if id != nil {
		if *id == 0 {
			return apperr.Validation("expired listing package id must be positive")
		}
		v = strconv.FormatUint(uint64(*id), 10)
	}
	return s.settings.SetValue(ctx, models.SettingExpiredListingPackageID, v)
}

// Policy returns the full downgrade policy.
func (s *GovernanceStore) Policy(ctx context.Context) (models.DowngradePolicy, error) {
	mode, err := s.Mode(ctx)
	if err != nil {
		return models.DowngradePolicy{}, err
	}
	pkgID, err := s.ExpiredListingPackageID(ctx)
	if err != nil {
		return models.DowngradePolicy{}, err
	}
	return models.DowngradePolicy{Mode: mode, ExpiredListingPackageID: pkgID}, nil
}

// SetPolicy replaces the downgrade policy.
func (s *GovernanceStore) SetPolicy(ctx context.Context, p models.DowngradePolicy) error {
	if err := p.Validate(); err != nil {
		return apperr.Validation("%v", err)
	}
	if err := s.SetMode(ctx, p.Mode); err != nil {
		return err
	}
	return s.SetExpiredListingPackageID(ctx, p.ExpiredListingPackageID)
}

// CreateOrUpdatePendingDowngradeRequest keeps exactly one pending request per
// owner and listing. An existing pending request gets the new snapshot; the
// boolean reports whether a new request was inserted.
func (s *GovernanceStore) CreateOrUpdatePendingDowngradeRequest(ctx context.Context, in DowngradeRequestInput) (*models.DowngradeRequest, bool, error) {
	if in.OwnerUserID == 0 || in.BusinessID == 0 || in.TargetPackageID == 0 {
		return nil, false, apperr.Validation("owner, business and target package are required")
	}

	var lastErr error
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		req, created, err := s.upsertPending(ctx, in)
		if err == nil {
			return req, created, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) && !errors.Is(err, errStalePending) {
			return nil, false, fmt.Errorf("upsert pending downgrade request: %w", err)
		}
		lastErr = err
	}
	return nil, false, fmt.Errorf("%w: pending downgrade request kept changing: %v", apperr.ErrConflict, lastErr)
}

func (s *GovernanceStore) upsertPending(ctx context.Context, in DowngradeRequestInput) (*models.DowngradeRequest, bool, error) {
	key := models.DowngradePendingKey(in.OwnerUserID, in.BusinessID)
	now := s.now()

	var out models.DowngradeRequest
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.DowngradeRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pending_key = ?", key).
			First(&existing).Error

		switch {
		case err == nil:
			res := tx.Model(&models.DowngradeRequest{}).
				Where("id = ? AND version = ? AND status = ?", existing.ID, existing.Version, models.DowngradeStatusPending).
				Updates(map[string]interface{}{
					"current_package_id":   in.CurrentPackageID,
					"current_package_name": in.CurrentPackageName,
					"target_package_id":    in.TargetPackageID,
					"target_package_name":  in.TargetPackageName,
					"version":              gorm.Expr("version + 1"),
					"updated_at":           now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errStalePending
			}
			return tx.Where("id = ?", existing.ID).First(&out).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			out = models.DowngradeRequest{
				ID:                 uuid.NewString(),
				OwnerUserID:        in.OwnerUserID,
				BusinessID:         in.BusinessID,
				CurrentPackageID:   in.CurrentPackageID,
				CurrentPackageName: in.CurrentPackageName,
				TargetPackageID:    in.TargetPackageID,
				TargetPackageName:  in.TargetPackageName,
				Status:             models.DowngradeStatusPending,
				PendingKey:         &key,
				Version:            1,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			created = true
			return tx.Create(&out).Error

		default:
			return err
		}
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

// ListRequests returns requests newest first, optionally filtered by status.
func (s *GovernanceStore) ListRequests(ctx context.Context, status string) ([]models.DowngradeRequest, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	switch status {
	case "":
	case models.DowngradeStatusPending, models.DowngradeStatusApproved, models.DowngradeStatusRejected:
		q = q.Where("status = ?", status)
	default:
		return nil, apperr.Validation("unknown request status %q", status)
	}

	var reqs []models.DowngradeRequest
	if err := q.Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("list downgrade requests: %w", err)
	}
	return reqs, nil
}

// GetRequest loads one request by id.
func (s *GovernanceStore) GetRequest(ctx context.Context, id string) (*models.DowngradeRequest, error) {
	var req models.DowngradeRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, apperr.NotFound(err, "downgrade request")
	}
	return &req, nil
}

// Decide moves a pending request to approved or rejected. Deciding a request
// that is no longer pending returns it unchanged; the boolean reports
// whether this call made the transition.
func (s *GovernanceStore) Decide(ctx context.Context, id string, decision Decision, actor Actor) (*models.DowngradeRequest, bool, error) {
	if _, err := ParseDecision(string(decision)); err != nil {
		return nil, false, err
	}

	changed, err := s.decideIn(s.db.WithContext(ctx), id, decision, actor)
	if err != nil {
		return nil, false, err
	}
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return req, changed, nil
}

// decideIn is the guarded status change of Decide, run on tx so callers can
// commit it together with the downgrade itself.
func (s *GovernanceStore) decideIn(tx *gorm.DB, id string, decision Decision, actor Actor) (bool, error) {
	now := s.now()
	var decidedBy *uint
	if actor.UserID != 0 {
		decidedBy = &actor.UserID
	}
	res := tx.Model(&models.DowngradeRequest{}).
		Where("id = ? AND status = ?", id, models.DowngradeStatusPending).
		Updates(map[string]interface{}{
			"status":             decision.status(),
			"pending_key":        nil,
			"decided_at":         now,
			"decided_by_user_id": decidedBy,
			"decided_by_name":    actor.Name,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("decide downgrade request: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
