package billing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
	"github.com/ManuelReschke/Bizdir/internal/pkg/metrics"
)

// UserSource loads account owners.
type UserSource interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// ListingSource loads listings scoped to their owner.
type ListingSource interface {
	GetByIDForOwner(ctx context.Context, id, ownerUserID uint) (*models.Listing, error)
}

// CheckoutConfig holds what checkout sessions are built from.
type CheckoutConfig struct {
	BaseURL  string
	Currency string
}

// EngineDeps wires an Engine.
type EngineDeps struct {
	Users      UserSource
	Listings   ListingSource
	Packages   PackageSource
	Governance *GovernanceStore
	Executor   DowngradeExecutor
	Repo       Repository
	Gateway    PaymentGateway
	Notifier   Notifier
	Metrics    *metrics.Billing
	Config     CheckoutConfig
	Log        logrus.FieldLogger
}

// Engine decides what happens when an owner picks a package for a
// listing: a downgrade (direct or queued for approval), a free upgrade
// or a paid checkout.
type Engine struct {
	EngineDeps
	now func() time.Time
}

// NewEngine creates a plan transition engine.
func NewEngine(deps EngineDeps) *Engine {
	return &Engine{EngineDeps: deps, now: time.Now}
}

// RequestTransition moves the listing towards req.SelectedPackage.
func (e *Engine) RequestTransition(ctx context.Context, req TransitionRequest) (*TransitionOutcome, error) {
	out, err := e.requestTransition(ctx, req)
	if err != nil {
		e.Metrics.Transition("error")
		return nil, err
	}
	e.Metrics.Transition(string(out.Kind))
	return out, nil
}

func (e *Engine) requestTransition(ctx context.Context, req TransitionRequest) (*TransitionOutcome, error) {
	if req.BusinessID == 0 || req.SelectedPackage == 0 {
		return nil, apperr.Validation("businessId and selectedPackage are required")
	}
	mode, err := ParsePaymentMode(req.PaymentMode)
	if err != nil {
		return nil, err
	}

	owner, err := e.Users.GetByID(ctx, req.OwnerUserID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: unknown owner", apperr.ErrUnauthorized)
		}
		return nil, fmt.Errorf("load owner: %w", err)
	}

	listing, err := e.Listings.GetByIDForOwner(ctx, req.BusinessID, owner.ID)
	if err != nil {
		return nil, apperr.NotFound(err, "listing")
	}

	target, err := e.Packages.GetByID(ctx, req.SelectedPackage)
	if err != nil {
		return nil, apperr.NotFound(err, "package")
	}
	if !target.IsActive {
		return nil, fmt.Errorf("package: %w", apperr.ErrNotFound)
	}
	if listing.HasPackage(target.ID) {
		return nil, apperr.PolicyViolation("listing is already on package %d", target.ID)
	}

	current, err := e.currentPackage(ctx, listing)
	if err != nil {
		return nil, err
	}

	entry := e.Log.WithFields(logrus.Fields{
		"business_id":       listing.ID,
		"owner_user_id":     owner.ID,
		"target_package_id": target.ID,
	})

	if Classify(current, target) == KindDowngrade {
		return e.downgrade(ctx, entry, owner, listing, current, target)
	}

	if target.IsFree() {
		if _, err := e.Repo.ApplyPackage(ctx, owner.ID, listing.ID, target.ID, target.ExpiresAt(e.now())); err != nil {
			return nil, fmt.Errorf("apply free package: %w", err)
		}
		e.notifyUpgraded(ctx, entry, owner.Email, owner.Name, listing, target)
		entry.Info("listing moved to free package")
		return &TransitionOutcome{Kind: OutcomeUpgraded}, nil
	}

	return e.checkout(ctx, entry, owner, listing, target, mode)
}

func (e *Engine) currentPackage(ctx context.Context, listing *models.Listing) (*models.Package, error) {
	if listing.PackageID == nil {
		return nil, nil
	}
	pkg, err := e.Packages.GetByID(ctx, *listing.PackageID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load current package: %w", err)
	}
	return pkg, nil
}

func (e *Engine) downgrade(ctx context.Context, entry logrus.FieldLogger, owner *models.User, listing *models.Listing, current, target *models.Package) (*TransitionOutcome, error) {
	if target.IsFree() {
		return nil, apperr.PolicyViolation("downgrading to a free package is not allowed")
	}

	mode, err := e.Governance.Mode(ctx)
	if err != nil {
		return nil, err
	}

	if mode == models.DowngradeModeAdminApproval {
		req, created, err := e.Governance.CreateOrUpdatePendingDowngradeRequest(ctx, DowngradeRequestInput{
			OwnerUserID:        owner.ID,
			BusinessID:         listing.ID,
			CurrentPackageID:   &current.ID,
			CurrentPackageName: current.Name,
			TargetPackageID:    target.ID,
			TargetPackageName:  target.Name,
		})
		if err != nil {
			return nil, err
		}
		entry.WithFields(logrus.Fields{"request_id": req.ID, "created": created}).Info("downgrade queued for approval")
		return &TransitionOutcome{
			Kind:                  OutcomeDowngradeRequested,
			RequestID:             req.ID,
			RequiresAdminApproval: true,
		}, nil
	}

	res, err := e.Executor.Execute(ctx, DowngradeExecution{
		OwnerUserID:      owner.ID,
		OwnerEmail:       owner.Email,
		BusinessID:       listing.ID,
		CurrentPackageID: &current.ID,
		TargetPackageID:  target.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("execute downgrade: %w", err)
	}
	return &TransitionOutcome{
		Kind:                       OutcomeDowngraded,
		CancelledSubscriptionCount: len(res.CancelledSubscriptionIDs),
	}, nil
}

func (e *Engine) checkout(ctx context.Context, entry logrus.FieldLogger, owner *models.User, listing *models.Listing, target *models.Package, mode PaymentMode) (*TransitionOutcome, error) {
	params := CheckoutParams{
		PaymentMode:   mode,
		ProductName:   fmt.Sprintf("%s package for %s", target.Name, listing.Name),
		Currency:      e.Config.Currency,
		UnitAmount:    MinorUnits(target.Price),
		CustomerEmail: owner.Email,
		SuccessURL:    e.returnURL(listing.ID, target.ID, mode),
		CancelURL:     e.cancelURL(listing.ID),
		Metadata: CheckoutMetadata{
			Flow:            FlowPlanUpgrade,
			UserID:          owner.ID,
			BusinessID:      listing.ID,
			SelectedPackage: target.ID,
			PaymentMode:     mode,
		},
	}
	if mode == PaymentModeSubscription {
		params.IntervalDays = IntervalDays(target)
	}

	ref, err := e.Gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	entry.WithFields(logrus.Fields{"session_id": ref.ID, "payment_mode": mode}).Info("checkout session created")
	return &TransitionOutcome{Kind: OutcomeCheckout, URL: ref.URL, SessionID: ref.ID}, nil
}

// returnURL keeps the session placeholder literal; the gateway substitutes
// it on redirect.
func (e *Engine) returnURL(businessID, packageID uint, mode PaymentMode) string {
	q := url.Values{}
	q.Set("businessId", strconv.FormatUint(uint64(businessID), 10))
	q.Set("selectedPackage", strconv.FormatUint(uint64(packageID), 10))
	q.Set("paymentMode", string(mode))
	return strings.TrimRight(e.Config.BaseURL, "/") + "/billing/return?session_id={CHECKOUT_SESSION_ID}&" + q.Encode()
}

func (e *Engine) cancelURL(businessID uint) string {
	return fmt.Sprintf("%s/billing/cancel?businessId=%d", strings.TrimRight(e.Config.BaseURL, "/"), businessID)
}

func (e *Engine) notifyUpgraded(ctx context.Context, entry logrus.FieldLogger, email, name string, listing *models.Listing, pkg *models.Package) {
	if e.Notifier == nil {
		return
	}
	err := e.Notifier.SendPlanUpgraded(ctx, PlanUpgradedNotice{
		Email:        email,
		OwnerName:    name,
		BusinessName: listing.Name,
		PackageName:  pkg.Name,
		ExpiresAt:    pkg.ExpiresAt(e.now()),
	})
	if err != nil {
		entry.WithError(err).Warn("plan upgraded notification failed")
	}
}
