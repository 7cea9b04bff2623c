package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ManuelReschke/Bizdir/app/models"
	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
	"github.com/ManuelReschke/Bizdir/internal/pkg/metrics"
)

// ErrInvalidSignature marks a webhook delivery that failed signature checks.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// WebhookResult names how a delivery was handled.
type WebhookResult string

const (
	WebhookProcessed WebhookResult = "processed"
	WebhookDuplicate WebhookResult = "duplicate"
	WebhookIgnored   WebhookResult = "ignored"
	WebhookRejected  WebhookResult = "rejected"
)

// WebhookService records Stripe deliveries idempotently and feeds completed
// plan upgrade checkouts through the Verifier.
type WebhookService struct {
	repo     Repository
	verifier *Verifier
	secret   string
	metrics  *metrics.Billing
	log      logrus.FieldLogger
}

// NewWebhookService creates a webhook service for the signing secret.
func NewWebhookService(repo Repository, verifier *Verifier, secret string, m *metrics.Billing, log logrus.FieldLogger) *WebhookService {
	return &WebhookService{repo: repo, verifier: verifier, secret: secret, metrics: m, log: log}
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *WebhookService) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		eventID = "hash:" + payloadHash(in.PayloadJSON)
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// Handle processes one delivery. Verification mismatches are recorded and
// reported as rejected without an error so the gateway stops retrying;
// other failures return an error and the delivery is retried.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	result, err := s.handle(ctx, payload, signature)
	switch {
	case errors.Is(err, ErrInvalidSignature):
		s.metrics.WebhookEvent("invalid_signature")
	case err != nil:
		s.metrics.WebhookEvent("error")
	default:
		s.metrics.WebhookEvent(string(result))
	}
	return result, err
}

func (s *WebhookService) handle(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	event, sigErr := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if sigErr != nil {
		// Unverified deliveries are kept for audit under a payload hash so a
		// forged event id cannot shadow the real delivery.
		_, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
			Provider:        models.BillingProviderStripe,
			ProviderEventID: "unverified:" + payloadHash(string(payload)),
			EventType:       peekEventType(payload),
			PayloadJSON:     string(payload),
		})
		if err != nil {
			s.log.WithError(err).Error("record unverified webhook")
		} else if err := s.repo.MarkWebhookProcessed(ctx, stored.ID, sigErr.Error()); err != nil {
			s.log.WithError(err).WithField("event_id", stored.ProviderEventID).Error("mark webhook processed")
		}
		return WebhookRejected, fmt.Errorf("%w: %v", ErrInvalidSignature, sigErr)
	}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		return "", fmt.Errorf("persist webhook event: %w", err)
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		return WebhookDuplicate, nil
	}

	entry := s.log.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})
	result, procErr := s.dispatch(ctx, event)

	var errMsg string
	if procErr != nil {
		errMsg = procErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(ctx, stored.ID, errMsg); err != nil {
		entry.WithError(err).Error("mark webhook processed")
	}

	if procErr != nil {
		if errors.Is(procErr, apperr.ErrPaymentVerification) || errors.Is(procErr, apperr.ErrNotFound) ||
			errors.Is(procErr, apperr.ErrValidation) {
			entry.WithError(procErr).Warn("webhook checkout rejected")
			return WebhookRejected, nil
		}
		entry.WithError(procErr).Error("webhook processing failed")
		return "", procErr
	}
	return result, nil
}

func (s *WebhookService) dispatch(ctx context.Context, event stripe.Event) (WebhookResult, error) {
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return "", fmt.Errorf("%w: decode checkout session: %v", apperr.ErrValidation, err)
		}
		md, err := ParseCheckoutMetadata(cs.Metadata)
		if err != nil {
			// Sessions created by other flows are not ours to apply.
			return WebhookIgnored, nil
		}
		if _, err := s.verifier.Verify(ctx, VerifyRequest{
			SessionID:       cs.ID,
			OwnerUserID:     md.UserID,
			BusinessID:      md.BusinessID,
			SelectedPackage: md.SelectedPackage,
			PaymentMode:     string(md.PaymentMode),
		}); err != nil {
			return "", err
		}
		return WebhookProcessed, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", fmt.Errorf("%w: decode subscription: %v", apperr.ErrValidation, err)
		}
		found, err := s.repo.CancelSubscriptionByProviderID(ctx, models.BillingProviderStripe, sub.ID, time.Now())
		if err != nil {
			return "", err
		}
		if !found {
			return WebhookIgnored, nil
		}
		return WebhookProcessed, nil

	default:
		return WebhookIgnored, nil
	}
}

func payloadHash(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func peekEventType(payload []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(payload, &head)
	return head.Type
}
