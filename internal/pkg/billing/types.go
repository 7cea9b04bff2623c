package billing

import (
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
)

// PaymentMode is how the owner pays for an upgrade.
type PaymentMode string

const (
	PaymentModeOneTime      PaymentMode = "one_time"
	PaymentModeSubscription PaymentMode = "subscription"
)

// ParsePaymentMode accepts the closed set of payment modes. An empty value
// means a one-time payment.
func ParsePaymentMode(raw string) (PaymentMode, error) {
	switch PaymentMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PaymentModeOneTime:
		return PaymentModeOneTime, nil
	case PaymentModeSubscription:
		return PaymentModeSubscription, nil
	default:
		return "", apperr.Validation("unknown payment mode %q", raw)
	}
}

// SessionMode is the gateway's checkout mode for m.
func (m PaymentMode) SessionMode() string {
	if m == PaymentModeSubscription {
		return "subscription"
	}
	return "payment"
}

// Flow tags what a checkout session was created for.
type Flow string

const FlowPlanUpgrade Flow = "plan_upgrade"

// ParseFlow rejects every flow this service does not create.
func ParseFlow(raw string) (Flow, error) {
	if Flow(raw) == FlowPlanUpgrade {
		return FlowPlanUpgrade, nil
	}
	return "", apperr.PaymentVerification("unknown checkout flow %q", raw)
}

const (
	metaFlow            = "flow"
	metaUserID          = "userId"
	metaBusinessID      = "businessId"
	metaSelectedPackage = "selectedPackage"
	metaPaymentMode     = "paymentMode"
)

// CheckoutMetadata is bound to a checkout session at creation and read
// back during verification.
type CheckoutMetadata struct {
	Flow            Flow
	UserID          uint
	BusinessID      uint
	SelectedPackage uint
	PaymentMode     PaymentMode
}

// Map encodes the metadata for the gateway.
func (m CheckoutMetadata) Map() map[string]string {
	return map[string]string{
		metaFlow:            string(m.Flow),
		metaUserID:          strconv.FormatUint(uint64(m.UserID), 10),
		metaBusinessID:      strconv.FormatUint(uint64(m.BusinessID), 10),
		metaSelectedPackage: strconv.FormatUint(uint64(m.SelectedPackage), 10),
		metaPaymentMode:     string(m.PaymentMode),
	}
}

// ParseCheckoutMetadata decodes gateway metadata. Missing or unrecognized
// values fail verification rather than defaulting.
func ParseCheckoutMetadata(md map[string]string) (CheckoutMetadata, error) {
	var out CheckoutMetadata

	flow, err := ParseFlow(md[metaFlow])
	if err != nil {
		return out, err
	}
	out.Flow = flow

	switch PaymentMode(md[metaPaymentMode]) {
	case PaymentModeOneTime, PaymentModeSubscription:
		out.PaymentMode = PaymentMode(md[metaPaymentMode])
	default:
		return out, apperr.PaymentVerification("unknown payment mode %q in session metadata", md[metaPaymentMode])
	}

	ids := []struct {
		key string
		dst *uint
	}{
		{metaUserID, &out.UserID},
		{metaBusinessID, &out.BusinessID},
		{metaSelectedPackage, &out.SelectedPackage},
	}
	for _, id := range ids {
		v, err := strconv.ParseUint(md[id.key], 10, 64)
		if err != nil || v == 0 {
			return out, apperr.PaymentVerification("invalid %s in session metadata", id.key)
		}
		*id.dst = uint(v)
	}
	return out, nil
}

// IsPlaceholderSessionID reports whether id is a return-URL template the
// client never substituted, such as "{CHECKOUT_SESSION_ID}".
func IsPlaceholderSessionID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return true
	}
	return strings.ContainsAny(id, "{}") || strings.Contains(id, "CHECKOUT_SESSION_ID")
}

// OutcomeKind names the branch a transition request took.
type OutcomeKind string

const (
	OutcomeDowngradeRequested OutcomeKind = "downgrade_requested"
	OutcomeDowngraded         OutcomeKind = "downgraded"
	OutcomeUpgraded           OutcomeKind = "upgraded"
	OutcomeCheckout           OutcomeKind = "checkout"
)

// TransitionRequest asks to move a listing to another package.
type TransitionRequest struct {
	OwnerUserID     uint
	BusinessID      uint
	SelectedPackage uint
	PaymentMode     string
}

// TransitionOutcome is the result of a transition request. Only the fields
// of Kind are set.
type TransitionOutcome struct {
	Kind                       OutcomeKind
	RequestID                  string
	RequiresAdminApproval      bool
	CancelledSubscriptionCount int
	URL                        string
	SessionID                  string
}

// VerifyRequest carries what the client claims about a finished checkout.
type VerifyRequest struct {
	SessionID       string
	OwnerUserID     uint
	BusinessID      uint
	SelectedPackage uint
	PaymentMode     string
}

// VerifyOutcome reports a successful verification.
type VerifyOutcome struct {
	OK              bool `json:"ok"`
	AlreadyUpgraded bool `json:"alreadyUpgraded,omitempty"`
}

// DowngradeExecution describes a downgrade to carry out. When
// CurrentPackageID is set the listing must still be on that package.
type DowngradeExecution struct {
	OwnerUserID      uint
	OwnerEmail       string
	BusinessID       uint
	CurrentPackageID *uint
	TargetPackageID  uint
	// InTx runs inside the downgrade transaction after the listing changed.
	// An error rolls the downgrade back.
	InTx func(tx *gorm.DB) error
}

// DowngradeResult lists the gateway subscriptions cancelled by a downgrade.
type DowngradeResult struct {
	CancelledSubscriptionIDs []string
}

// Actor identifies who decided a downgrade request.
type Actor struct {
	UserID uint
	Name   string
}

// DowngradeRequestInput is the snapshot stored on a pending request.
type DowngradeRequestInput struct {
	OwnerUserID        uint
	BusinessID         uint
	CurrentPackageID   *uint
	CurrentPackageName string
	TargetPackageID    uint
	TargetPackageName  string
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
