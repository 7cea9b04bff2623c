package billing

import "context"

// CheckoutParams describes a hosted checkout for one package.
type CheckoutParams struct {
	PaymentMode   PaymentMode
	ProductName   string
	Currency      string
	UnitAmount    int64
	IntervalDays  int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      CheckoutMetadata
}

// CheckoutSessionRef is what the client needs to start paying.
type CheckoutSessionRef struct {
	ID  string
	URL string
}

// CheckoutSession is the gateway's view of a session after the fact.
type CheckoutSession struct {
	ID             string
	Status         string
	Mode           string
	Metadata       map[string]string
	AmountTotal    int64
	Currency       string
	CustomerEmail  string
	CustomerName   string
	SubscriptionID string
}

// Complete reports whether the customer finished the checkout.
func (s *CheckoutSession) Complete() bool {
	return s.Status == "complete"
}

// PaymentGateway is the payment provider as seen by the billing services.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSessionRef, error)
	RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
