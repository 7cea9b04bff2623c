package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
	"github.com/ManuelReschke/Bizdir/internal/pkg/metrics"
)

// Locker serializes work on a key across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// VerifierDeps wires a Verifier.
type VerifierDeps struct {
	Users    UserSource
	Listings ListingSource
	Packages PackageSource
	Repo     Repository
	Gateway  PaymentGateway
	Notifier Notifier
	// Locker is optional; the checkout ledger alone keeps verification
	// idempotent.
	Locker  Locker
	Metrics *metrics.Billing
	Log     logrus.FieldLogger
}

// Verifier confirms a finished checkout with the gateway and applies the
// purchased package exactly once.
type Verifier struct {
	VerifierDeps
	now func() time.Time
}

// NewVerifier creates a checkout verifier.
func NewVerifier(deps VerifierDeps) *Verifier {
	return &Verifier{VerifierDeps: deps, now: time.Now}
}

// Verify checks the session against the client's claims and applies the
// package. Any mismatch fails with apperr.ErrPaymentVerification.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (*VerifyOutcome, error) {
	out, err := v.verify(ctx, req)
	switch {
	case err != nil:
		v.Metrics.Verification("rejected")
	case out.AlreadyUpgraded:
		v.Metrics.Verification("already_upgraded")
	default:
		v.Metrics.Verification("applied")
	}
	return out, err
}

func (v *Verifier) verify(ctx context.Context, req VerifyRequest) (*VerifyOutcome, error) {
	if IsPlaceholderSessionID(req.SessionID) {
		return nil, apperr.PaymentVerification("session id %q was never substituted", req.SessionID)
	}
	mode, err := ParsePaymentMode(req.PaymentMode)
	if err != nil || req.PaymentMode == "" {
		return nil, apperr.PaymentVerification("unknown payment mode %q", req.PaymentMode)
	}
	if req.BusinessID == 0 || req.SelectedPackage == 0 {
		return nil, apperr.Validation("businessId and selectedPackage are required")
	}

	if v.Locker == nil {
		return v.verifyLocked(ctx, req, mode)
	}
	var out *VerifyOutcome
	err = v.Locker.WithLock(ctx, "lock:checkout:"+req.SessionID, func(ctx context.Context) error {
		var err error
		out, err = v.verifyLocked(ctx, req, mode)
		return err
	})
	return out, err
}

func (v *Verifier) verifyLocked(ctx context.Context, req VerifyRequest, mode PaymentMode) (*VerifyOutcome, error) {
	session, err := v.Gateway.RetrieveCheckoutSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrPaymentVerification, err)
	}
	if err := matchSession(session, req, mode); err != nil {
		return nil, err
	}

	listing, err := v.Listings.GetByIDForOwner(ctx, req.BusinessID, req.OwnerUserID)
	if err != nil {
		return nil, apperr.NotFound(err, "listing")
	}
	pkg, err := v.Packages.GetByID(ctx, req.SelectedPackage)
	if err != nil {
		return nil, apperr.NotFound(err, "package")
	}

	entry := v.Log.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"business_id": listing.ID,
		"package_id":  pkg.ID,
	})
	if listing.HasPackage(pkg.ID) {
		entry.Info("checkout already applied")
		return &VerifyOutcome{OK: true, AlreadyUpgraded: true}, nil
	}

	applied, err := v.Repo.ApplyCheckout(ctx, ApplyCheckoutInput{
		OwnerUserID:       req.OwnerUserID,
		BusinessID:        listing.ID,
		PackageID:         pkg.ID,
		ExpiresAt:         pkg.ExpiresAt(v.now()),
		CheckoutSessionID: session.ID,
		SubscriptionID:    session.SubscriptionID,
	})
	if err != nil {
		return nil, fmt.Errorf("apply checkout: %w", err)
	}
	if !applied {
		entry.Info("checkout session already consumed")
		return &VerifyOutcome{OK: true, AlreadyUpgraded: true}, nil
	}
	entry.Info("checkout applied")

	v.notify(ctx, entry, req.OwnerUserID, session, listing, pkg)
	return &VerifyOutcome{OK: true}, nil
}

func matchSession(s *CheckoutSession, req VerifyRequest, mode PaymentMode) error {
	if !s.Complete() {
		return apperr.PaymentVerification("session status is %q", s.Status)
	}
	md, err := ParseCheckoutMetadata(s.Metadata)
	if err != nil {
		return err
	}
	switch {
	case md.UserID != req.OwnerUserID:
		return apperr.PaymentVerification("session belongs to another user")
	case md.BusinessID != req.BusinessID:
		return apperr.PaymentVerification("session is for another listing")
	case md.SelectedPackage != req.SelectedPackage:
		return apperr.PaymentVerification("session is for another package")
	case md.PaymentMode != mode:
		return apperr.PaymentVerification("session payment mode is %q", md.PaymentMode)
	case s.Mode != mode.SessionMode():
		return apperr.PaymentVerification("session mode is %q", s.Mode)
	}
	return nil
}

func (v *Verifier) notify(ctx context.Context, entry logrus.FieldLogger, ownerID uint, s *CheckoutSession, listing *models.Listing, pkg *models.Package) {
	if v.Notifier == nil {
		return
	}
	email, name := s.CustomerEmail, s.CustomerName
	if owner, err := v.Users.GetByID(ctx, ownerID); err == nil {
		if owner.Email != "" {
			email = owner.Email
		}
		if owner.Name != "" {
			name = owner.Name
		}
	}

	if s.AmountTotal > 0 {
		if err := v.Notifier.SendPaymentReceived(ctx, PaymentReceivedNotice{
			Email:        email,
			OwnerName:    name,
			BusinessName: listing.Name,
			PackageName:  pkg.Name,
			AmountTotal:  s.AmountTotal,
			Currency:     s.Currency,
			SessionID:    s.ID,
		}); err != nil {
			entry.WithError(err).Warn("payment received notification failed")
		}
	}
	if err := v.Notifier.SendPlanUpgraded(ctx, PlanUpgradedNotice{
		Email:        email,
		OwnerName:    name,
		BusinessName: listing.Name,
		PackageName:  pkg.Name,
		ExpiresAt:    pkg.ExpiresAt(v.now()),
	}); err != nil {
		entry.WithError(err).Warn("plan upgraded notification failed")
	}
}
