package billing

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PlanUpgradedNotice tells an owner their listing moved to a new package.
type PlanUpgradedNotice struct {
	Email        string
	OwnerName    string
	BusinessName string
	PackageName  string
	ExpiresAt    *time.Time
}

// PaymentReceivedNotice confirms a captured payment.
type PaymentReceivedNotice struct {
	Email        string
	OwnerName    string
	BusinessName string
	PackageName  string
	AmountTotal  int64
	Currency     string
	SessionID    string
}

// Notifier delivers owner notifications. Callers treat failures as
// non-fatal.
type Notifier interface {
	SendPlanUpgraded(ctx context.Context, n PlanUpgradedNotice) error
	SendPaymentReceived(ctx context.Context, n PaymentReceivedNotice) error
}

// Mailer sends a plain text mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailNotifier renders notices as plain text mails.
type MailNotifier struct {
	mailer Mailer
}

// NewMailNotifier creates a notifier on top of mailer.
func NewMailNotifier(mailer Mailer) *MailNotifier {
	return &MailNotifier{mailer: mailer}
}

func (n *MailNotifier) SendPlanUpgraded(ctx context.Context, notice PlanUpgradedNotice) error {
	if notice.Email == "" {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greetingName(notice.OwnerName))
	fmt.Fprintf(&b, "%s is now on the %s package.\n", notice.BusinessName, notice.PackageName)
	if notice.ExpiresAt != nil {
		fmt.Fprintf(&b, "The package runs until %s.\n", notice.ExpiresAt.Format("2 January 2006"))
	}
	b.WriteString("\nThank you for listing with us.\n")

	subject := fmt.Sprintf("Your listing is now on %s", notice.PackageName)
	return n.mailer.Send(ctx, notice.Email, subject, b.String())
}

func (n *MailNotifier) SendPaymentReceived(ctx context.Context, notice PaymentReceivedNotice) error {
	if notice.Email == "" {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greetingName(notice.OwnerName))
	fmt.Fprintf(&b, "We received your payment of %s for the %s package of %s.\n",
		FormatMinorUnits(notice.AmountTotal, notice.Currency), notice.PackageName, notice.BusinessName)
	fmt.Fprintf(&b, "Reference: %s\n", notice.SessionID)

	return n.mailer.Send(ctx, notice.Email, "Payment received", b.String())
}

func greetingName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}
